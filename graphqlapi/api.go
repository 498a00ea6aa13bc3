// Package graphqlapi defines the read-mostly GraphQL surface's Go
// contract (spec.md §6.3): the query/mutation signatures and their
// result shapes, so that store, poller, and bisect are written against
// data needs a real server can satisfy without further redesign. No
// HTTP/GraphQL server is started by cmd/graphix (spec.md §1 Non-goals).
package graphqlapi

import (
	"context"

	"github.com/graphops/graphix/bisect"
	"github.com/graphops/graphix/store"
)

// DeploymentFilter narrows deployments(filter).
type DeploymentFilter struct {
	IPFSHash    *string
	NetworkName *string
}

// IndexerFilter narrows indexers(filter).
type IndexerFilter struct {
	Address *string
}

// ProofOfIndexingFilter narrows proofsOfIndexing(filter) over the
// append-only PoI history.
type ProofOfIndexingFilter struct {
	DeploymentIPFSHash *string
	IndexerAddress     *string
	BlockNumber        *uint64
}

// LiveProofOfIndexingFilter narrows liveProofsOfIndexing(filter).
type LiveProofOfIndexingFilter struct {
	DeploymentIPFSHash *string
	IndexerAddress     *string
}

// LaunchDivergenceInvestigationInput is the launchDivergenceInvestigation
// mutation's request argument, mirroring bisect.Request.
type LaunchDivergenceInvestigationInput struct {
	Pois               []string
	QueryBlockCaches   bool
	QueryEthCallCaches bool
	QueryEntityChanges bool
}

// InvestigationStatus is one of PENDING, IN_PROGRESS, or COMPLETE (spec.md
// §4.3 "Statuses exposed via API").
type InvestigationStatus string

const (
	StatusPending    InvestigationStatus = "PENDING"
	StatusInProgress InvestigationStatus = "IN_PROGRESS"
	StatusComplete   InvestigationStatus = "COMPLETE"
)

// LaunchDivergenceInvestigationResult is what
// launchDivergenceInvestigation returns immediately: the request is
// PENDING until a background worker completes it.
type LaunchDivergenceInvestigationResult struct {
	UUID   string
	Status InvestigationStatus
}

// API is the read-mostly GraphQL surface's Go contract. A real server
// implementation adapts an HTTP/GraphQL framework to this interface.
// store.Store and bisect.Investigator expose everything it needs except
// SetDeploymentName and DeleteNetwork, which have no store.Store method.
type API interface {
	Deployments(ctx context.Context, filter DeploymentFilter) ([]store.SgDeployment, error)
	Indexers(ctx context.Context, filter IndexerFilter) ([]store.Indexer, error)
	ProofsOfIndexing(ctx context.Context, filter ProofOfIndexingFilter) ([]store.PoI, error)
	LiveProofsOfIndexing(ctx context.Context, filter LiveProofOfIndexingFilter) ([]store.LivePoi, error)
	PoiAgreementRatios(ctx context.Context, indexerAddress string) ([]store.AgreementRatio, error)
	DivergenceInvestigationReport(ctx context.Context, uuid string) (*InvestigationStatusReport, error)
	Networks(ctx context.Context) ([]store.Network, error)

	LaunchDivergenceInvestigation(ctx context.Context, input LaunchDivergenceInvestigationInput) (*LaunchDivergenceInvestigationResult, error)
	SetDeploymentName(ctx context.Context, ipfsHash, name string) error
	DeleteNetwork(ctx context.Context, name string) error
}

// InvestigationStatusReport is divergenceInvestigationReport(uuid)'s
// result: the status alone while pending or running, plus the decoded
// report body once complete.
type InvestigationStatusReport struct {
	UUID   string
	Status InvestigationStatus
	Report *bisect.InvestigationReport
}
