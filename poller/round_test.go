package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphops/graphix/config"
	"github.com/graphops/graphix/indexer"
	"github.com/graphops/graphix/networksubgraph"
	"github.com/graphops/graphix/store"
)

type stubClient struct {
	name     string
	statuses []indexer.IndexingStatus
	poi      string
	failPois bool
}

func (s *stubClient) Name() string { return s.name }
func (s *stubClient) IndexingStatuses(ctx context.Context) ([]indexer.IndexingStatus, error) {
	return s.statuses, nil
}
func (s *stubClient) PublicPois(ctx context.Context, requests []indexer.PoiRequest) ([]indexer.PoiResult, error) {
	if s.failPois {
		return nil, assertErr
	}
	out := make([]indexer.PoiResult, len(requests))
	for i, r := range requests {
		out[i] = indexer.PoiResult{DeploymentIPFSHash: r.DeploymentIPFSHash, BlockNumber: r.BlockNumber, BlockHash: "0x" + repeatHex("11"), Hash: s.poi}
	}
	return out, nil
}
func (s *stubClient) Version(ctx context.Context) (indexer.VersionInfo, error) { return indexer.VersionInfo{}, nil }
func (s *stubClient) BlockCache(ctx context.Context, network, blockHash string) (indexer.BlockCacheEntry, error) {
	return indexer.BlockCacheEntry{}, nil
}
func (s *stubClient) EthCallCache(ctx context.Context, network, blockHash string) ([]indexer.EthCallCacheEntry, error) {
	return nil, nil
}
func (s *stubClient) EntityChanges(ctx context.Context, deployment string, block uint64) ([]indexer.EntityChange, error) {
	return nil, nil
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

var assertErr = stubErr("boom")

func repeatHex(s string) string {
	out := ""
	for i := 0; i < 32; i++ {
		out += s
	}
	return out
}

func TestRoundPersistsAgreeingPois(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	statusA := indexer.IndexingStatus{DeploymentIPFSHash: "Qm1", NetworkName: "mainnet", LatestBlock: indexer.BlockPointer{Number: 100}}
	statusB := statusA

	clients := map[string]*stubClient{
		"a": {name: "a", statuses: []indexer.IndexingStatus{statusA}, poi: "0x" + repeatHex("aa")},
		"b": {name: "b", statuses: []indexer.IndexingStatus{statusB}, poi: "0x" + repeatHex("aa")},
	}

	p := New(s, nil, func(address, endpoint string) indexer.Client { return clients[address] })

	cfg := &config.File{
		BlockChoicePolicy: config.PolicyEarliest,
		Sources: []config.ConfigSource{
			{Type: "indexer", Indexer: &config.IndexerSource{Address: "a", IndexNodeEndpoint: "http://a"}},
			{Type: "indexer", Indexer: &config.IndexerSource{Address: "b", IndexNodeEndpoint: "http://b"}},
		},
	}

	require.NoError(t, p.Round(ctx, cfg))

	live, err := s.LivePoisForDeployment(ctx, "Qm1")
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, live[0].Hash, live[1].Hash)
}

func TestRoundSkipsDeploymentWithSingleReporter(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	clients := map[string]*stubClient{
		"a": {name: "a", statuses: []indexer.IndexingStatus{{DeploymentIPFSHash: "Qm1", LatestBlock: indexer.BlockPointer{Number: 100}}}, poi: "0x" + repeatHex("aa")},
	}
	p := New(s, nil, func(address, endpoint string) indexer.Client { return clients[address] })

	cfg := &config.File{
		BlockChoicePolicy: config.PolicyEarliest,
		Sources: []config.ConfigSource{
			{Type: "indexer", Indexer: &config.IndexerSource{Address: "a", IndexNodeEndpoint: "http://a"}},
		},
	}
	require.NoError(t, p.Round(ctx, cfg))

	live, err := s.LivePoisForDeployment(ctx, "Qm1")
	require.NoError(t, err)
	assert.Empty(t, live)
}

type stubNsClient struct {
	records []networksubgraph.IndexerRecord
}

func (s *stubNsClient) Indexers(ctx context.Context, sortBy networksubgraph.SortKey, stakeThreshold string, limit int) ([]networksubgraph.IndexerRecord, error) {
	return s.records, nil
}
func (s *stubNsClient) ResolveEndpoint(ctx context.Context, address string) (string, error) {
	return "", assertErr
}

// TestRoundCreatesIndexerBeforeMetadata guards against the FK-violation
// bug where an indexer's pois/live_pois/indexer_versions rows were
// written without ever creating the indexers row they reference: a
// networkSubgraph-sourced entry with no reported deployments still gets
// its Indexer row, with the source's URL, on the very first round.
func TestRoundCreatesIndexerBeforeMetadata(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	clients := map[string]*stubClient{
		"a": {name: "a"},
	}
	ns := &stubNsClient{records: []networksubgraph.IndexerRecord{
		{Address: "a", URL: "http://a", StakedTokens: "1000", AllocationCount: 3},
	}}

	p := New(s, ns, func(address, endpoint string) indexer.Client { return clients[address] })
	cfg := &config.File{
		BlockChoicePolicy: config.PolicyEarliest,
		Sources: []config.ConfigSource{
			{Type: "networkSubgraph", NetworkSubgraph: &config.NetworkSubgraphSource{Limit: 10}},
		},
	}
	require.NoError(t, p.Round(ctx, cfg))

	require.Eventually(t, func() bool {
		indexers, err := s.Indexers(ctx)
		return err == nil && len(indexers) == 1
	}, time.Second, time.Millisecond)

	indexers, err := s.Indexers(ctx)
	require.NoError(t, err)
	require.Len(t, indexers, 1)
	assert.Equal(t, "http://a", indexers[0].URL)
}

// failCountingStore records every FailedQuery passed to it so tests can
// inspect the failed_queries rows a round writes.
type failCountingStore struct {
	*store.MemStore
	mu     sync.Mutex
	failed []store.FailedQuery
}

func (f *failCountingStore) RecordFailedQuery(ctx context.Context, fq store.FailedQuery) error {
	f.mu.Lock()
	f.failed = append(f.failed, fq)
	f.mu.Unlock()
	return f.MemStore.RecordFailedQuery(ctx, fq)
}

func TestRoundRecordsFailedQueryOnIndexerError(t *testing.T) {
	ctx := context.Background()
	s := &failCountingStore{MemStore: store.NewMemStore()}

	clients := map[string]*stubClient{
		"a": {name: "a", statuses: []indexer.IndexingStatus{{DeploymentIPFSHash: "Qm1", LatestBlock: indexer.BlockPointer{Number: 100}}}, failPois: true},
		"b": {name: "b", statuses: []indexer.IndexingStatus{{DeploymentIPFSHash: "Qm1", LatestBlock: indexer.BlockPointer{Number: 100}}}, poi: "0x" + repeatHex("aa")},
	}
	p := New(s, nil, func(address, endpoint string) indexer.Client { return clients[address] })

	cfg := &config.File{
		BlockChoicePolicy: config.PolicyEarliest,
		Sources: []config.ConfigSource{
			{Type: "indexer", Indexer: &config.IndexerSource{Address: "a", IndexNodeEndpoint: "http://a"}},
			{Type: "indexer", Indexer: &config.IndexerSource{Address: "b", IndexNodeEndpoint: "http://b"}},
		},
	}
	require.NoError(t, p.Round(ctx, cfg))

	live, err := s.LivePoisForDeployment(ctx, "Qm1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].IndexerAddress)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.failed, 1)
	assert.Equal(t, "a", s.failed[0].IndexerAddress)
	assert.Equal(t, "publicProofsOfIndexing", s.failed[0].QueryName)
}
