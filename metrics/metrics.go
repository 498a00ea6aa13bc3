// Package metrics defines the process-wide OpenCensus views exposed over
// Prometheus, per the teacher's views-registration idiom.
package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 30000, 50000, 100000, 200000, 500000, 1000000, 2000000, 5000000)

var (
	Indexer, _    = tag.NewKey("indexer")
	Success, _    = tag.NewKey("success")
	Deployment, _ = tag.NewKey("deployment")
	Source, _     = tag.NewKey("source")
)

// Measures named to match spec.md §6.5 exactly.
var (
	IndexingStatusesRequests = stats.Int64("indexing_statuses_requests", "Number of indexingStatuses requests issued to an indexer", stats.UnitDimensionless)
	PublicPoisRequests       = stats.Int64("public_proofs_of_indexing_requests", "Number of publicProofsOfIndexing requests issued to an indexer", stats.UnitDimensionless)
	PoolSize                 = stats.Int64("pool_size", "Number of indexers currently in the polling pool", stats.UnitDimensionless)
	StaleIndexers            = stats.Int64("pool_stale_indexers", "Number of indexers pruned from active metadata refresh for not reporting", stats.UnitDimensionless)
	RoundDuration            = stats.Float64("round_duration_ms", "Duration of a Poller round", stats.UnitMilliseconds)
	BisectionSteps           = stats.Int64("bisection_steps", "Number of PoI probes issued during a bisection run", stats.UnitDimensionless)
	BisectionDuration        = stats.Float64("bisection_duration_ms", "Duration of a bisection run", stats.UnitMilliseconds)
	FailedQueries            = stats.Int64("failed_queries", "Number of failed_queries rows written", stats.UnitDimensionless)
)

var DefaultViews = []*view.View{
	{
		Name:        IndexingStatusesRequests.Name() + "_total",
		Measure:     IndexingStatusesRequests,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Indexer, Success},
	},
	{
		Name:        PublicPoisRequests.Name() + "_total",
		Measure:     PublicPoisRequests,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Indexer, Success},
	},
	{
		Measure:     PoolSize,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Source},
	},
	{
		Measure:     StaleIndexers,
		Aggregation: view.LastValue(),
	},
	{
		Measure:     RoundDuration,
		Aggregation: defaultMillisecondsDistribution,
	},
	{
		Name:        BisectionSteps.Name() + "_total",
		Measure:     BisectionSteps,
		Aggregation: view.Sum(),
	},
	{
		Measure:     BisectionDuration,
		Aggregation: defaultMillisecondsDistribution,
	},
	{
		Name:        FailedQueries.Name() + "_total",
		Measure:     FailedQueries,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Indexer},
	},
}

// SinceInMilliseconds returns the duration of time since the provided time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

// Timer is a function stopwatch: calling it starts the timer, calling the
// returned function records the duration against m.
func Timer(ctx context.Context, m *stats.Float64Measure) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
	}
}

// RecordInc increments a counter by one.
func RecordInc(ctx context.Context, m *stats.Int64Measure) {
	stats.Record(ctx, m.M(1))
}

// RecordCount increments a counter by count.
func RecordCount(ctx context.Context, m *stats.Int64Measure, count int) {
	stats.Record(ctx, m.M(int64(count)))
}

// RecordValue records an absolute gauge value.
func RecordValue(ctx context.Context, m *stats.Int64Measure, val int64) {
	stats.Record(ctx, m.M(val))
}

// WithTagValue upserts a tag value into ctx, for use with the measures above.
func WithTagValue(ctx context.Context, k tag.Key, v string) context.Context {
	ctx, _ = tag.New(ctx, tag.Upsert(k, v))
	return ctx
}
