package bisect

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/metrics"
	"github.com/graphops/graphix/store"
)

// probeTimeout bounds a single bisection step's pair of PublicPois
// calls, per spec.md §4.3 Bisecting "Per-step timeout".
const probeTimeout = 30 * time.Second

// errNoCommonAncestor's Error() text is the literal machine-readable
// code spec.md §4.3 requires in BisectionRunReport.Error; it is not
// wrapped in errs.ErrBisectionUnresolvable so that string stays exact
// (see investigator.go for where that sentinel is exercised instead).
var errNoCommonAncestor = xerrors.New("no_common_ancestor")

// probeResult is what one side of a bisection step observed.
type probeResult struct {
	hash      string
	blockHash string
}

// probeBoth queries clientA and clientB for their PoI at block,
// returning both results and whether they agree. An error from either
// side is a timeout/failure for the step.
func probeBoth(ctx context.Context, clientA, clientB indexer.Client, deployment string, block uint64) (a, b probeResult, agree bool, err error) {
	callCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req := []indexer.PoiRequest{{DeploymentIPFSHash: deployment, BlockNumber: block}}

	resA, errA := clientA.PublicPois(callCtx, req)
	resB, errB := clientB.PublicPois(callCtx, req)
	if errA != nil {
		return probeResult{}, probeResult{}, false, xerrors.Errorf("probing %s at block %d: %w", clientA.Name(), block, errA)
	}
	if errB != nil {
		return probeResult{}, probeResult{}, false, xerrors.Errorf("probing %s at block %d: %w", clientB.Name(), block, errB)
	}
	if len(resA) == 0 || len(resB) == 0 || resA[0].Hash == "" || resB[0].Hash == "" {
		return probeResult{}, probeResult{}, false, xerrors.Errorf("empty poi response at block %d", block)
	}

	a = probeResult{hash: resA[0].Hash, blockHash: resA[0].BlockHash}
	b = probeResult{hash: resB[0].Hash, blockHash: resB[0].BlockHash}
	return a, b, a.hash == b.hash, nil
}

// runPair executes the whole Seeking → Bisecting → Narrowed →
// Collecting → Done|Failed state machine for one pair (spec.md §4.3).
func runPair(ctx context.Context, p pair, clientA, clientB indexer.Client, earliest uint64, req Request) (out BisectionRunReport) {
	stopTimer := metrics.Timer(ctx, metrics.BisectionDuration)
	defer stopTimer()
	defer func() {
		metrics.RecordCount(ctx, metrics.BisectionSteps, len(out.Bisects))
	}()

	out = BisectionRunReport{
		IndexerA: p.A.IndexerAddress,
		IndexerB: p.B.IndexerAddress,
		Poi1:     p.A.Hash,
		Poi2:     p.B.Hash,
	}

	if p.A.DeploymentHash != p.B.DeploymentHash || p.A.BlockNumber != p.B.BlockNumber {
		out.Error = "pois resolve to different (deployment, block)"
		return out
	}

	hi := p.A.BlockNumber
	if earliest >= hi {
		out.Error = errNoCommonAncestor.Error()
		return out
	}

	// Seeking: the deployment's earliest known block is the tightest
	// lower bound worth trying; if the indexers already disagree there,
	// no agreeing ancestor exists in range.
	lo := earliest
	_, _, agree, err := probeBoth(ctx, clientA, clientB, p.A.DeploymentHash, lo)
	if err != nil {
		out.Error = fmt.Sprintf("bisection_timeout@%d", lo)
		return out
	}
	out.Bisects = append(out.Bisects, store.BisectStep{BlockNumber: lo, Agree: agree, ProbedAt: time.Now().UTC()})
	if !agree {
		out.Error = errNoCommonAncestor.Error()
		return out
	}

	// Bisecting.
	hiBlockHashA, hiBlockHashB := p.A.BlockHash, p.B.BlockHash
	for hi-lo > 1 {
		m := lo + (hi-lo)/2

		mA, mB, agree, err := probeBoth(ctx, clientA, clientB, p.A.DeploymentHash, m)
		if err != nil {
			out.Error = fmt.Sprintf("bisection_timeout@%d", m)
			return out
		}
		out.Bisects = append(out.Bisects, store.BisectStep{BlockNumber: m, Agree: agree, ProbedAt: time.Now().UTC()})

		if agree {
			lo = m
		} else {
			hi = m
			hiBlockHashA, hiBlockHashB = mA.blockHash, mB.blockHash
		}
	}

	// Narrowed(hi): hi is the first block A and B disagree at.
	out.DivergenceBlockBounds = &BlockBounds{LowerBound: lo, UpperBound: hi}

	// Collecting: gather whichever caches the request asked for.
	out.CollectedA = collect(ctx, clientA, p.A.IndexerAddress, p.A.NetworkName, p.A.DeploymentHash, hi, hiBlockHashA, req)
	out.CollectedB = collect(ctx, clientB, p.B.IndexerAddress, p.B.NetworkName, p.B.DeploymentHash, hi, hiBlockHashB, req)

	return out
}

func collect(ctx context.Context, client indexer.Client, address, network, deployment string, block uint64, blockHash string, req Request) *CollectionResult {
	if !req.QueryBlockCaches && !req.QueryEthCallCaches && !req.QueryEntityChanges {
		return nil
	}
	out := &CollectionResult{IndexerAddress: address}

	if req.QueryBlockCaches {
		entry, err := client.BlockCache(ctx, network, blockHash)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.BlockCache = &entry
		}
	}
	if req.QueryEthCallCaches {
		entries, err := client.EthCallCache(ctx, network, blockHash)
		if err != nil {
			if out.Error == "" {
				out.Error = err.Error()
			}
		} else {
			out.EthCallCache = entries
		}
	}
	if req.QueryEntityChanges {
		changes, err := client.EntityChanges(ctx, deployment, block)
		if err != nil {
			if out.Error == "" {
				out.Error = err.Error()
			}
		} else {
			out.EntityChanges = changes
		}
	}
	return out
}
