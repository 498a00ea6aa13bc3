package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorePersistRoundPromotesLivePoi(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	obs := RoundObservation{
		IndexerAddress: "0xa",
		Networks:       []Network{{Name: "mainnet"}},
		Deployments:    []SgDeployment{{IPFSHash: "Qm1", NetworkName: "mainnet"}},
		Blocks:         []Block{{NetworkName: "mainnet", Number: 100, Hash: "0xblock"}},
		Pois: []PoI{
			{DeploymentIPFSHash: "Qm1", IndexerAddress: "0xa", NetworkName: "mainnet", BlockNumber: 100, BlockHash: "0xblock", Hash: "0xaa"},
		},
	}
	require.NoError(t, s.PersistRound(ctx, obs))

	live, err := s.LivePoisForDeployment(ctx, "Qm1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "0xaa", live[0].Hash)
	assert.Equal(t, uint64(100), live[0].BlockNumber)

	resolved, err := s.ResolveLivePoi(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "0xa", resolved.IndexerAddress)
}

func TestMemStorePersistRoundCreatesIndexer(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	obs := RoundObservation{
		IndexerAddress: "0xa",
		IndexerURL:     "http://a.example",
		Deployments:    []SgDeployment{{IPFSHash: "Qm1"}},
		Pois: []PoI{
			{DeploymentIPFSHash: "Qm1", IndexerAddress: "0xa", BlockNumber: 100, Hash: "0xaa"},
		},
	}
	require.NoError(t, s.PersistRound(ctx, obs))

	indexers, err := s.Indexers(ctx)
	require.NoError(t, err)
	require.Len(t, indexers, 1)
	assert.Equal(t, "0xa", indexers[0].Address)
	assert.Equal(t, "http://a.example", indexers[0].URL)
}

func TestMemStorePersistRoundOverwritesLivePoiOnNewObservation(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	first := RoundObservation{
		Deployments: []SgDeployment{{IPFSHash: "Qm1"}},
		Pois: []PoI{
			{DeploymentIPFSHash: "Qm1", IndexerAddress: "0xa", BlockNumber: 100, Hash: "0xaa"},
		},
	}
	second := RoundObservation{
		Pois: []PoI{
			{DeploymentIPFSHash: "Qm1", IndexerAddress: "0xa", BlockNumber: 101, Hash: "0xbb"},
		},
	}
	require.NoError(t, s.PersistRound(ctx, first))
	require.NoError(t, s.PersistRound(ctx, second))

	live, err := s.LivePoisForDeployment(ctx, "Qm1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "0xbb", live[0].Hash)
	assert.Equal(t, uint64(101), live[0].BlockNumber)
}

func TestMemStoreDivergenceInvestigationQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	req := PendingDivergenceInvestigationRequest{UUID: "req-1", RequestJSON: `{"pois":["0xaa","0xbb"]}`}
	require.NoError(t, s.EnqueueDivergenceInvestigation(ctx, req))

	next, err := s.NextPendingDivergenceInvestigation(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "req-1", next.UUID)

	report := DivergenceInvestigationReport{UUID: "req-1", ReportJSON: `{"status":"complete"}`}
	require.NoError(t, s.CompleteDivergenceInvestigation(ctx, report))

	next, err = s.NextPendingDivergenceInvestigation(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	got, err := s.DivergenceInvestigationReport(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, report.ReportJSON, got.ReportJSON)
}

func TestMemStoreResolveLivePoiNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.ResolveLivePoi(ctx, "0xdeadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}
