package store

import (
	"time"
)

// Network is a blockchain network that one or more subgraph deployments
// index against, e.g. "mainnet" or "arbitrum-one".
type Network struct {
	tableName struct{} `pg:"networks"`

	Name      string `pg:",pk"`
	CAIP2     string
	CreatedAt time.Time
}

// Block is a reference to a specific block on a Network, identified by
// both number and hash so that indexers reporting the same number on
// different forks are distinguishable.
type Block struct {
	tableName struct{} `pg:"blocks"`

	NetworkName string `pg:",pk"`
	Number      uint64 `pg:",pk,use_zero"`
	Hash        string `pg:",pk"`
}

// SgDeployment is a subgraph deployment, identified by its IPFS CID
// ("Qm...").
type SgDeployment struct {
	tableName struct{} `pg:"sg_deployments"`

	IPFSHash    string `pg:",pk"`
	NetworkName string
	CreatedAt   time.Time
}

// SgName associates a human readable subgraph name with a deployment, as
// resolved off the network subgraph. The latest name for a deployment
// wins; older rows are overwritten rather than kept as history.
type SgName struct {
	tableName struct{} `pg:"sg_names"`

	DeploymentIPFSHash string `pg:",pk"`
	Name               string
}

// Indexer is a participant in the network under polling, keyed by its
// 20-byte address (lowercase hex, 0x-prefixed).
type Indexer struct {
	tableName struct{} `pg:"indexers"`

	Address     string `pg:",pk"`
	DisplayName string
	URL         string
	CreatedAt   time.Time
}

// IndexerVersion records the version string an indexer reported the last
// time its metadata was refreshed.
type IndexerVersion struct {
	tableName struct{} `pg:"indexer_versions"`

	IndexerAddress string    `pg:",pk"`
	CreatedAt      time.Time `pg:",pk"`
	Version        string
	Commit         string
	Error          string
}

// IndexerNetworkSubgraphMetadata mirrors the network subgraph's view of an
// indexer: stake, allocations and geo info that makes it eligible for
// polling. Refreshed by the Poller; only the most recent row per indexer
// is retained.
type IndexerNetworkSubgraphMetadata struct {
	tableName struct{} `pg:"indexer_network_subgraph_metadata"`

	IndexerAddress  string `pg:",pk"`
	StakedTokens    string
	AllocationCount int
	RewardsEarned   string
	Geohash         string
	URL             string
	RefreshedAt     time.Time
}

// PoI is a single Proof of Indexing report collected from an indexer for
// a deployment at a block. History is append-only; uniqueness is
// (deployment, indexer, block).
//
// tableName is pinned explicitly: go-pg's default inflection turns "PoI"
// into "po_is" (Underscore then Pluralize), not "pois".
type PoI struct {
	tableName struct{} `pg:"pois"`

	ID                 int64 `pg:",pk"`
	DeploymentIPFSHash string
	IndexerAddress     string
	NetworkName        string
	BlockNumber        uint64
	BlockHash          string
	Hash               string
	CreatedAt          time.Time
}

// LivePoi is the most recently observed PoI for a given (indexer,
// deployment) pair. It is kept separate from PoI, the append-only
// history, because the Poller and DivergenceInvestigator both need fast
// access to "what did this indexer report most recently" without
// scanning history.
type LivePoi struct {
	tableName struct{} `pg:"live_pois"`

	DeploymentIPFSHash string `pg:",pk"`
	IndexerAddress     string `pg:",pk"`
	PoiID              int64
	NetworkName        string
	BlockNumber        uint64
	BlockHash          string
	Hash               string
	UpdatedAt          time.Time
}

// FailedQuery records a query that could not be completed against an
// indexer, for operator visibility and for the FailedQueries metric.
type FailedQuery struct {
	tableName struct{} `pg:"failed_queries"`

	ID                 int64 `pg:",pk"`
	IndexerAddress     string
	QueryName          string
	DeploymentIPFSHash string
	RawQuery           string
	ResponseBody       string
	Error              string
	RequestedAt        time.Time
}

// PendingDivergenceInvestigationRequest is a row in the persisted job
// queue that DivergenceInvestigator drains. A row is deleted once its
// investigation has produced a DivergenceInvestigationReport. RequestJSON
// holds the opaque `{pois, queryBlockCaches, ...}` request body.
type PendingDivergenceInvestigationRequest struct {
	tableName struct{} `pg:"pending_divergence_investigation_requests"`

	UUID        string `pg:",pk"`
	RequestJSON string
	CreatedAt   time.Time
}

// DivergenceInvestigationReport is the terminal record of a bisection
// run, an immutable JSON report keyed by the UUID of the request that
// produced it.
type DivergenceInvestigationReport struct {
	tableName struct{} `pg:"divergence_investigation_reports"`

	UUID       string `pg:",pk"`
	ReportJSON string
	CreatedAt  time.Time
}

// BisectStep is a single probe taken during a bisection run: the block
// examined and whether the two indexers' PoIs agreed at that block. Kept
// inside a report's ReportJSON rather than as a separate table, per
// DESIGN.md.
type BisectStep struct {
	BlockNumber uint64    `json:"blockNumber"`
	Agree       bool      `json:"agree"`
	ProbedAt    time.Time `json:"probedAt"`
}

// ApiToken authorizes a caller to invoke the mutating part of the
// GraphQL surface (submitting an investigation request, etc). Only the
// hash of the full token is stored; PublicPrefix is shown back to
// operators so they can identify a token without the secret.
type ApiToken struct {
	tableName struct{} `pg:"api_tokens"`

	PublicPrefix string `pg:",pk"`
	TokenHash    string
	Permission   string
	Notes        string
	CreatedAt    time.Time
}

// Config is a single row holding the most recently applied
// configuration file, kept as an append-only audit trail.
type Config struct {
	tableName struct{} `pg:"configs"`

	ID        int64 `pg:",pk"`
	JSON      string
	CreatedAt time.Time
}

// models lists every type that participates in schema creation and
// reflection-driven persistence helpers.
var models = []interface{}{
	(*Network)(nil),
	(*Block)(nil),
	(*SgDeployment)(nil),
	(*SgName)(nil),
	(*Indexer)(nil),
	(*IndexerVersion)(nil),
	(*IndexerNetworkSubgraphMetadata)(nil),
	(*PoI)(nil),
	(*LivePoi)(nil),
	(*FailedQuery)(nil),
	(*PendingDivergenceInvestigationRequest)(nil),
	(*DivergenceInvestigationReport)(nil),
	(*ApiToken)(nil),
	(*Config)(nil),
}
