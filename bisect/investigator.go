package bisect

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/graphops/graphix/errs"
	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/store"
)

var log = logging.Logger("graphix/bisect")

const defaultPollInterval = 5 * time.Second

// Investigator drains pending_divergence_investigation_requests one at a
// time, running bisection over every pair of resolved PoIs and
// persisting the resulting report, satisfying schedule.Job so it can run
// alongside the Poller under the same schedule.Scheduler (spec.md §4.3
// "Persistence").
type Investigator struct {
	Store        store.Store
	ClientFor    func(address, endpoint string) indexer.Client
	PollInterval time.Duration
}

// New builds an Investigator with the default poll interval.
func New(s store.Store, clientFor func(address, endpoint string) indexer.Client) *Investigator {
	return &Investigator{Store: s, ClientFor: clientFor, PollInterval: defaultPollInterval}
}

func (inv *Investigator) interval() time.Duration {
	if inv.PollInterval <= 0 {
		return defaultPollInterval
	}
	return inv.PollInterval
}

// Run polls the pending queue until ctx is done. A crash or restart
// leaves any in-flight request in the pending table, to be retried on
// the next poll (spec.md §4.3 "A process crash mid-run leaves the
// request in pending").
func (inv *Investigator) Run(ctx context.Context) error {
	ticker := time.NewTicker(inv.interval())
	defer ticker.Stop()

	if err := inv.drainOne(ctx); err != nil {
		log.Errorw("investigation failed", "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := inv.drainOne(ctx); err != nil {
				log.Errorw("investigation failed", "error", err.Error())
			}
		}
	}
}

func (inv *Investigator) Params() map[string]interface{} {
	return map[string]interface{}{"pollIntervalSeconds": inv.interval().Seconds()}
}

// drainOne pops and completes the oldest pending request, if any.
func (inv *Investigator) drainOne(ctx context.Context) error {
	req, err := inv.Store.NextPendingDivergenceInvestigation(ctx)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}

	report := inv.investigate(ctx, req.UUID, req.RequestJSON)

	reportJSON, err := encodeReport(report)
	if err != nil {
		return err
	}
	return inv.Store.CompleteDivergenceInvestigation(ctx, store.DivergenceInvestigationReport{
		UUID:       req.UUID,
		ReportJSON: reportJSON,
	})
}

// investigate runs the full request-level protocol: decode, resolve
// every PoI hash, pair them up, and bisect each pair.
func (inv *Investigator) investigate(ctx context.Context, uuid, requestJSON string) InvestigationReport {
	out := InvestigationReport{UUID: uuid}

	req, err := decodeRequest(requestJSON)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	resolved, err := inv.resolveAll(ctx, req.Pois)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	indexers, err := inv.Store.Indexers(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	urlByAddress := make(map[string]string, len(indexers))
	for _, idx := range indexers {
		urlByAddress[idx.Address] = idx.URL
	}

	earliest, err := inv.earliestBlock(ctx, resolved, urlByAddress)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	for _, p := range pairs(resolved) {
		clientA := inv.ClientFor(p.A.IndexerAddress, urlByAddress[p.A.IndexerAddress])
		clientB := inv.ClientFor(p.B.IndexerAddress, urlByAddress[p.B.IndexerAddress])
		out.Runs = append(out.Runs, runPair(ctx, p, clientA, clientB, earliest, req))
	}
	if len(out.Runs) > 0 && allRunsFailed(out.Runs) {
		log.Warnw("investigation could not resolve any pair",
			"uuid", uuid, "error", errs.ErrBisectionUnresolvable.Error())
	}
	return out
}

func allRunsFailed(runs []BisectionRunReport) bool {
	for _, r := range runs {
		if r.Error == "" {
			return false
		}
	}
	return true
}

// resolveAll resolves every requested PoI hash to (indexer, deployment,
// block) via live_pois, rejecting the whole request if any hash fails to
// resolve or resolves to a different deployment than the others (spec.md
// §4.3 "Request").
func (inv *Investigator) resolveAll(ctx context.Context, hashes []string) ([]resolvedPoi, error) {
	out := make([]resolvedPoi, 0, len(hashes))
	var deployment string
	var block uint64

	for _, h := range hashes {
		live, err := inv.Store.ResolveLivePoi(ctx, h)
		if err != nil {
			return nil, errUnresolvedPoi(h)
		}
		if deployment == "" {
			deployment, block = live.DeploymentIPFSHash, live.BlockNumber
		} else if live.DeploymentIPFSHash != deployment || live.BlockNumber != block {
			return nil, errMismatchedPois
		}
		out = append(out, resolvedPoi{
			Hash:           h,
			IndexerAddress: live.IndexerAddress,
			NetworkName:    live.NetworkName,
			DeploymentHash: live.DeploymentIPFSHash,
			BlockNumber:    live.BlockNumber,
			BlockHash:      live.BlockHash,
		})
	}
	return out, nil
}

// earliestBlock is the tightest common lower bound the Seeking phase may
// search down to: the max of every involved indexer's currently reported
// earliestBlock for the deployment (an indexer cannot answer for a block
// it has pruned).
func (inv *Investigator) earliestBlock(ctx context.Context, resolved []resolvedPoi, urlByAddress map[string]string) (uint64, error) {
	var earliest uint64
	seen := map[string]bool{}
	for _, r := range resolved {
		if seen[r.IndexerAddress] {
			continue
		}
		seen[r.IndexerAddress] = true

		client := inv.ClientFor(r.IndexerAddress, urlByAddress[r.IndexerAddress])
		statuses, err := client.IndexingStatuses(ctx)
		if err != nil {
			continue
		}
		for _, st := range statuses {
			if st.DeploymentIPFSHash == r.DeploymentHash && st.EarliestBlock.Number > earliest {
				earliest = st.EarliestBlock.Number
			}
		}
	}
	return earliest, nil
}

func errUnresolvedPoi(h string) error {
	return xerrors.Errorf("poi hash %s does not resolve to a live poi: %w", h, errs.ErrInvestigationInputInvalid)
}

var errMismatchedPois = xerrors.Errorf("submitted pois resolve to different deployments or blocks: %w", errs.ErrInvestigationInputInvalid)
