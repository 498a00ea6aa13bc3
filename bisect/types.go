// Package bisect implements the DivergenceInvestigator: given a set of
// PoIs known to belong to the same (deployment, block), it locates, for
// every pair of indexers involved, the first block at which their
// computations diverge, and assembles a human-auditable report.
package bisect

import (
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/store"
)

// Request is the decoded shape of a PendingDivergenceInvestigationRequest's
// RequestJSON.
type Request struct {
	Pois               []string `json:"pois"`
	QueryBlockCaches   bool     `json:"queryBlockCaches,omitempty"`
	QueryEthCallCaches bool     `json:"queryEthCallCaches,omitempty"`
	QueryEntityChanges bool     `json:"queryEntityChanges,omitempty"`
}

// EncodeRequest marshals a Request for PendingDivergenceInvestigationRequest.RequestJSON.
func EncodeRequest(r Request) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", xerrors.Errorf("encoding investigation request: %w", err)
	}
	return string(b), nil
}

func decodeRequest(raw string) (Request, error) {
	var r Request
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Request{}, xerrors.Errorf("decoding investigation request: %w", err)
	}
	return r, nil
}

// BlockBounds is the [lowerBound, upperBound] pair a bisection run
// converges to: the two adjacent blocks where the compared indexers last
// agree and first disagree.
type BlockBounds struct {
	LowerBound uint64 `json:"lowerBound"`
	UpperBound uint64 `json:"upperBound"`
}

// CollectionResult is what Collecting gathered for one indexer at the
// narrowed divergence block. A per-field fetch failure is recorded in
// Error rather than failing the whole run (spec.md §4.3 Collecting).
type CollectionResult struct {
	IndexerAddress string                       `json:"indexerAddress"`
	BlockCache     *indexer.BlockCacheEntry      `json:"blockCache,omitempty"`
	EthCallCache   []indexer.EthCallCacheEntry   `json:"ethCallCache,omitempty"`
	EntityChanges  []indexer.EntityChange        `json:"entityChanges,omitempty"`
	Error          string                        `json:"error,omitempty"`
}

// BisectionRunReport is one pair's outcome, matching
// original_source's BisectionRunReport (spec.md §4.3, SPEC_FULL.md
// "Supplemented feature"). Bisects holds one store.BisectStep per probed
// block, not just the final bounds.
type BisectionRunReport struct {
	IndexerA              string              `json:"indexerA"`
	IndexerB              string              `json:"indexerB"`
	Poi1                  string              `json:"poi1"`
	Poi2                  string              `json:"poi2"`
	DivergenceBlockBounds *BlockBounds        `json:"divergenceBlockBounds,omitempty"`
	Bisects               []store.BisectStep  `json:"bisects"`
	CollectedA            *CollectionResult   `json:"collectedA,omitempty"`
	CollectedB            *CollectionResult   `json:"collectedB,omitempty"`
	Error                 string              `json:"error,omitempty"`
}

// InvestigationReport is the full decoded shape of a
// DivergenceInvestigationReport's ReportJSON: one BisectionRunReport per
// unordered pair of resolved PoIs, or a top-level Error if the request
// itself could not be resolved (spec.md §4.3 "Request").
type InvestigationReport struct {
	UUID  string                `json:"uuid"`
	Runs  []BisectionRunReport  `json:"runs,omitempty"`
	Error string                `json:"error,omitempty"`
}

func encodeReport(r InvestigationReport) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", xerrors.Errorf("encoding investigation report: %w", err)
	}
	return string(b), nil
}

// DecodeReport parses a DivergenceInvestigationReport's ReportJSON, for
// GraphQL surface consumers (spec.md §6.3).
func DecodeReport(raw string) (InvestigationReport, error) {
	var r InvestigationReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return InvestigationReport{}, xerrors.Errorf("decoding investigation report: %w", err)
	}
	return r, nil
}
