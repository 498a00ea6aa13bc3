// Package poller implements the periodic cross-checking round: resolve
// the indexer pool, fetch indexing statuses and PoIs with a bounded
// concurrency fan-out, choose a comparison block per deployment, and
// persist observations.
package poller

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"golang.org/x/sync/errgroup"

	"github.com/graphops/graphix/config"
	"github.com/graphops/graphix/errs"
	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/metrics"
	"github.com/graphops/graphix/networksubgraph"
	"github.com/graphops/graphix/store"
)

const defaultConcurrency = 32

// Poller runs one cross-checking round at a time; Round is not
// reentrant, matching the teacher's single-watcher-per-loop-tick idiom.
type Poller struct {
	Store       store.Store
	NsClient    networksubgraph.Client
	ClientFor   func(address, endpoint string) indexer.Client
	Concurrency int

	// StaleIndexerCutoff is the number of consecutive rounds an indexer
	// may fail indexing_statuses before it is pruned from the active
	// pool used for metadata refresh (still retained historically).
	// Supplemented feature, not in the original spec's distilled core.
	StaleIndexerCutoff int

	staleMu  sync.Mutex
	misses   map[string]int
}

func New(s store.Store, ns networksubgraph.Client, clientFor func(address, endpoint string) indexer.Client) *Poller {
	return &Poller{
		Store:              s,
		NsClient:           ns,
		ClientFor:          clientFor,
		Concurrency:        defaultConcurrency,
		StaleIndexerCutoff: 5,
		misses:             map[string]int{},
	}
}

// statusResult is the outcome of step 2 for one indexer.
type statusResult struct {
	entry    poolEntry
	statuses []indexer.IndexingStatus
	err      error
}

// Round runs one full polling round to completion: a single indexer or
// deployment failure never aborts it (spec.md §4.1 "Failure policy"). A
// store error while persisting one indexer's observations is logged and
// the round continues with the other indexers; Round always returns nil.
func (p *Poller) Round(ctx context.Context, cfg *config.File) error {
	defer metrics.Timer(ctx, metrics.RoundDuration)()

	pool := resolvePool(ctx, cfg.Sources, p.NsClient, p.ClientFor)
	metrics.RecordValue(ctx, metrics.PoolSize, int64(len(pool)))

	statusResults := p.fetchIndexingStatuses(ctx, pool)

	byDeployment := groupByDeployment(statusResults)

	// Every deployment's fetch-and-persist stage runs concurrently; the
	// errgroup is the round's barrier, so metadata refresh and stale
	// pruning below never start against a half-observed round.
	g, gctx := errgroup.WithContext(ctx)
	for deployment, reported := range byDeployment {
		deployment, reported := deployment, reported
		block, ok := chooseBlock(cfg.BlockChoicePolicy, reported)
		if !ok {
			continue
		}
		g.Go(func() error {
			p.fetchAndPersistPois(gctx, deployment, block, statusResults)
			return nil
		})
	}
	_ = g.Wait()

	p.refreshMetadataAsync(ctx, pool)
	p.pruneStale(statusResults)

	return nil
}

func (p *Poller) fetchIndexingStatuses(ctx context.Context, pool []poolEntry) []statusResult {
	wp := workerpool.New(p.concurrency())
	results := make([]statusResult, len(pool))
	var mu sync.Mutex

	for i, entry := range pool {
		i, entry := i, entry
		wp.Submit(func() {
			callCtx, cancel := context.WithTimeout(ctx, indexer.StatusesTimeout)
			defer cancel()

			statuses, err := entry.Client.IndexingStatuses(callCtx)

			mu.Lock()
			results[i] = statusResult{entry: entry, statuses: statuses, err: err}
			mu.Unlock()

			success := "1"
			if err != nil {
				success = "0"
				_ = p.Store.RecordFailedQuery(ctx, store.FailedQuery{
					IndexerAddress: entry.Address,
					QueryName:      "indexingStatuses",
					Error:          err.Error(),
				})
			}
			tagCtx := metrics.WithTagValue(ctx, metrics.Indexer, entry.Address)
			tagCtx = metrics.WithTagValue(tagCtx, metrics.Success, success)
			metrics.RecordInc(tagCtx, metrics.IndexingStatusesRequests)
		})
	}
	wp.StopWait()
	return results
}

// groupByDeployment collects each indexer's reported latest block per
// deployment.
func groupByDeployment(results []statusResult) map[string][]reportedBlock {
	byDeployment := map[string][]reportedBlock{}

	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, st := range r.statuses {
			byDeployment[st.DeploymentIPFSHash] = append(byDeployment[st.DeploymentIPFSHash], reportedBlock{
				IndexerAddress: r.entry.Address,
				Number:         st.LatestBlock.Number,
			})
		}
	}
	return byDeployment
}

// fetchAndPersistPois runs step 4 and 5 for one deployment's chosen
// block: fan out public_pois to every indexer that reported the
// deployment at or past that block, validate, and persist per indexer.
func (p *Poller) fetchAndPersistPois(ctx context.Context, deployment string, block uint64, statusResults []statusResult) {
	wp := workerpool.New(p.concurrency())

	for _, r := range statusResults {
		if r.err != nil {
			continue
		}
		var networkName string
		var blockHash string
		reports := false
		for _, st := range r.statuses {
			if st.DeploymentIPFSHash == deployment && st.LatestBlock.Number >= block {
				reports = true
				networkName = st.NetworkName
				if st.LatestBlock.Number == block {
					blockHash = st.LatestBlock.Hash
				}
			}
		}
		if !reports {
			continue
		}

		entry := r.entry
		wp.Submit(func() {
			p.fetchAndPersistOne(ctx, entry, deployment, networkName, block, blockHash)
		})
	}
	wp.StopWait()
}

func (p *Poller) fetchAndPersistOne(ctx context.Context, entry poolEntry, deployment, networkName string, block uint64, blockHash string) {
	callCtx, cancel := context.WithTimeout(ctx, indexer.PoisTimeout)
	defer cancel()

	req := []indexer.PoiRequest{{DeploymentIPFSHash: deployment, BlockNumber: block, BlockHash: blockHash}}

	// The retry-once policy lives in indexer.HTTPClient's transport
	// (cenkalti/backoff/v4), not here: every Client implementation gets
	// it for free, including the Interceptor's wrapped target.
	results, err := entry.Client.PublicPois(callCtx, req)

	tagCtx := metrics.WithTagValue(ctx, metrics.Indexer, entry.Address)
	if err != nil {
		tagCtx = metrics.WithTagValue(tagCtx, metrics.Success, "0")
		metrics.RecordInc(tagCtx, metrics.PublicPoisRequests)
		_ = p.Store.RecordFailedQuery(ctx, store.FailedQuery{
			IndexerAddress:     entry.Address,
			QueryName:          "publicProofsOfIndexing",
			DeploymentIPFSHash: deployment,
			Error:              err.Error(),
		})
		return
	}
	tagCtx = metrics.WithTagValue(tagCtx, metrics.Success, "1")
	metrics.RecordInc(tagCtx, metrics.PublicPoisRequests)

	var pois []store.PoI
	var blocks []store.Block
	for _, res := range results {
		if !validPoiHash(res.Hash) || res.BlockHash == "" {
			metrics.RecordInc(metrics.WithTagValue(ctx, metrics.Indexer, entry.Address), metrics.FailedQueries)
			_ = p.Store.RecordFailedQuery(ctx, store.FailedQuery{
				IndexerAddress:     entry.Address,
				QueryName:          "publicProofsOfIndexing",
				DeploymentIPFSHash: deployment,
				Error:              errs.ErrMalformedResponse.Error(),
			})
			continue
		}
		pois = append(pois, store.PoI{
			DeploymentIPFSHash: res.DeploymentIPFSHash,
			IndexerAddress:     entry.Address,
			NetworkName:        networkName,
			BlockNumber:        res.BlockNumber,
			BlockHash:          res.BlockHash,
			Hash:               res.Hash,
		})
		blocks = append(blocks, store.Block{NetworkName: networkName, Number: res.BlockNumber, Hash: res.BlockHash})
	}
	if len(pois) == 0 {
		return
	}

	obs := store.RoundObservation{
		IndexerAddress: entry.Address,
		IndexerURL:     entry.URL,
		Networks:       []store.Network{{Name: networkName}},
		Deployments:    []store.SgDeployment{{IPFSHash: deployment, NetworkName: networkName}},
		Blocks:         blocks,
		Pois:           pois,
	}
	if err := p.Store.PersistRound(ctx, obs); err != nil {
		log.Errorw("persisting round observation failed", "indexer", entry.Address, "error", err.Error())
	}
}

// validPoiHash checks that a PoI hash is 0x-prefixed hex decoding to
// exactly 32 bytes. Letter case is not checked.
func validPoiHash(h string) bool {
	if !strings.HasPrefix(h, "0x") {
		return false
	}
	raw, err := hex.DecodeString(h[2:])
	if err != nil {
		return false
	}
	return len(raw) == 32
}

// refreshMetadataAsync skips indexers that have missed indexing_statuses
// for StaleIndexerCutoff or more consecutive rounds, and for every other
// pooled indexer upserts its parent row (so the version/metadata inserts
// below satisfy the indexers foreign key even for an indexer that
// reported no valid PoI), then refreshes its self-reported version and,
// for networkSubgraph-sourced entries, its stake/allocation snapshot
// (spec.md §4.1 step 6).
func (p *Poller) refreshMetadataAsync(ctx context.Context, pool []poolEntry) {
	p.staleMu.Lock()
	active := make([]poolEntry, 0, len(pool))
	for _, entry := range pool {
		if p.StaleIndexerCutoff <= 0 || p.misses[entry.Address] < p.StaleIndexerCutoff {
			active = append(active, entry)
		}
	}
	p.staleMu.Unlock()

	go func() {
		wp := workerpool.New(p.concurrency())
		for _, entry := range active {
			entry := entry
			wp.Submit(func() {
				if err := p.Store.UpsertIndexer(ctx, store.Indexer{Address: entry.Address, URL: entry.URL}); err != nil {
					log.Errorw("upserting indexer failed", "indexer", entry.Address, "error", err.Error())
					return
				}

				callCtx, cancel := context.WithTimeout(ctx, indexer.MetadataTimeout)
				defer cancel()

				if v, err := entry.Client.Version(callCtx); err == nil {
					_ = p.Store.RecordIndexerVersion(ctx, store.IndexerVersion{
						IndexerAddress: entry.Address,
						Version:        v.Version,
						Commit:         v.Commit,
					})
				}

				if entry.Metadata != nil {
					_ = p.Store.UpsertIndexerMetadata(ctx, *entry.Metadata)
				}
			})
		}
		wp.StopWait()
	}()
}

func (p *Poller) concurrency() int {
	if p.Concurrency <= 0 {
		return defaultConcurrency
	}
	return p.Concurrency
}

// pruneStale updates each indexer's count of consecutive
// indexing_statuses misses, which refreshMetadataAsync uses to leave out
// indexers at or past StaleIndexerCutoff, and exposes the number of such
// indexers via the graphix_pool_stale_indexers gauge. Historical rows
// are never deleted.
func (p *Poller) pruneStale(results []statusResult) {
	p.staleMu.Lock()
	defer p.staleMu.Unlock()

	for _, r := range results {
		if r.err != nil {
			p.misses[r.entry.Address]++
		} else {
			p.misses[r.entry.Address] = 0
		}
	}

	var stale int64
	for _, misses := range p.misses {
		if misses >= p.StaleIndexerCutoff {
			stale++
		}
	}
	metrics.RecordValue(context.Background(), metrics.StaleIndexers, stale)
}
