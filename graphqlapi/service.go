package graphqlapi

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/graphops/graphix/bisect"
	"github.com/graphops/graphix/errs"
	"github.com/graphops/graphix/store"
)

// Service is the reference implementation of API, backed directly by a
// store.Store. It answers every query of spec.md §6.3 and the
// launchDivergenceInvestigation mutation from store's capability
// surface; SetDeploymentName and DeleteNetwork return a "not
// implemented" error. No HTTP transport is wired to it (spec.md §1
// Non-goal).
type Service struct {
	Store store.Store
}

var _ API = (*Service)(nil)

func (s *Service) Deployments(ctx context.Context, filter DeploymentFilter) ([]store.SgDeployment, error) {
	all, err := s.Store.Deployments(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, d := range all {
		if filter.IPFSHash != nil && d.IPFSHash != *filter.IPFSHash {
			continue
		}
		if filter.NetworkName != nil && d.NetworkName != *filter.NetworkName {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) Indexers(ctx context.Context, filter IndexerFilter) ([]store.Indexer, error) {
	all, err := s.Store.Indexers(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, idx := range all {
		if filter.Address != nil && idx.Address != *filter.Address {
			continue
		}
		out = append(out, idx)
	}
	return out, nil
}

// ProofsOfIndexing is not backed by a dedicated store.Store method: the
// append-only PoI history is queryable only through live_pois. It filters
// LiveProofsOfIndexing's result, which is a strict subset of the full
// history (most recent per indexer/deployment only).
func (s *Service) ProofsOfIndexing(ctx context.Context, filter ProofOfIndexingFilter) ([]store.PoI, error) {
	var deployment string
	if filter.DeploymentIPFSHash != nil {
		deployment = *filter.DeploymentIPFSHash
	}
	live, err := s.Store.LivePoisForDeployment(ctx, deployment)
	if err != nil {
		return nil, err
	}
	out := make([]store.PoI, 0, len(live))
	for _, l := range live {
		if filter.IndexerAddress != nil && l.IndexerAddress != *filter.IndexerAddress {
			continue
		}
		if filter.BlockNumber != nil && l.BlockNumber != *filter.BlockNumber {
			continue
		}
		out = append(out, store.PoI{
			ID:                 l.PoiID,
			DeploymentIPFSHash: l.DeploymentIPFSHash,
			IndexerAddress:     l.IndexerAddress,
			NetworkName:        l.NetworkName,
			BlockNumber:        l.BlockNumber,
			BlockHash:          l.BlockHash,
			Hash:               l.Hash,
			CreatedAt:          l.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Service) LiveProofsOfIndexing(ctx context.Context, filter LiveProofOfIndexingFilter) ([]store.LivePoi, error) {
	var deployment string
	if filter.DeploymentIPFSHash != nil {
		deployment = *filter.DeploymentIPFSHash
	}
	live, err := s.Store.LivePoisForDeployment(ctx, deployment)
	if err != nil {
		return nil, err
	}
	out := live[:0]
	for _, l := range live {
		if filter.IndexerAddress != nil && l.IndexerAddress != *filter.IndexerAddress {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) PoiAgreementRatios(ctx context.Context, indexerAddress string) ([]store.AgreementRatio, error) {
	deployments, err := s.Store.LiveDeploymentsForIndexer(ctx, indexerAddress)
	if err != nil {
		return nil, err
	}
	byDeployment := make(map[string][]store.LivePoi, len(deployments))
	for _, d := range deployments {
		live, err := s.Store.LivePoisForDeployment(ctx, d)
		if err != nil {
			return nil, err
		}
		byDeployment[d] = live
	}
	return store.AgreementRatios(indexerAddress, byDeployment), nil
}

func (s *Service) Networks(ctx context.Context) ([]store.Network, error) {
	// store.Store has no Networks lister today; the Poller only ever
	// upserts networks it observes. Deployments carries a network name
	// per row, which is enough to answer `networks` without adding a
	// dedicated table scan.
	deployments, err := s.Store.Deployments(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []store.Network
	for _, d := range deployments {
		if seen[d.NetworkName] || d.NetworkName == "" {
			continue
		}
		seen[d.NetworkName] = true
		out = append(out, store.Network{Name: d.NetworkName})
	}
	return out, nil
}

func (s *Service) DivergenceInvestigationReport(ctx context.Context, uuid string) (*InvestigationStatusReport, error) {
	reportRow, err := s.Store.DivergenceInvestigationReport(ctx, uuid)
	if err == nil {
		report, err := bisect.DecodeReport(reportRow.ReportJSON)
		if err != nil {
			return nil, err
		}
		return &InvestigationStatusReport{UUID: uuid, Status: StatusComplete, Report: &report}, nil
	}
	if !xerrors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	// No report yet. Distinguishing PENDING from IN_PROGRESS would need
	// visibility into the single Investigator's in-memory state, which
	// this read-only service does not have (spec.md §4.3 "IN_PROGRESS
	// (in-memory status only)"); PENDING is reported either way.
	return &InvestigationStatusReport{UUID: uuid, Status: StatusPending}, nil
}

func (s *Service) LaunchDivergenceInvestigation(ctx context.Context, input LaunchDivergenceInvestigationInput) (*LaunchDivergenceInvestigationResult, error) {
	if len(input.Pois) < 2 {
		return nil, xerrors.Errorf("at least two pois are required (%w)", errs.ErrInvestigationInputInvalid)
	}
	reqJSON, err := bisect.EncodeRequest(bisect.Request{
		Pois:               input.Pois,
		QueryBlockCaches:   input.QueryBlockCaches,
		QueryEthCallCaches: input.QueryEthCallCaches,
		QueryEntityChanges: input.QueryEntityChanges,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.Store.EnqueueDivergenceInvestigation(ctx, store.PendingDivergenceInvestigationRequest{
		UUID:        id,
		RequestJSON: reqJSON,
	}); err != nil {
		return nil, err
	}
	return &LaunchDivergenceInvestigationResult{UUID: id, Status: StatusPending}, nil
}

// SetDeploymentName and DeleteNetwork are not backed by store.Store
// today (no SgName upsert or Network delete method exists yet); wiring
// them is future work tracked in DESIGN.md rather than invented here
// against an untested schema mutation path.
func (s *Service) SetDeploymentName(ctx context.Context, ipfsHash, name string) error {
	return xerrors.New("setDeploymentName: not implemented")
}

func (s *Service) DeleteNetwork(ctx context.Context, name string) error {
	return xerrors.New("deleteNetwork: not implemented")
}
