package graphqlapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphops/graphix/store"
)

func seedTwoAgreeingIndexers(t *testing.T, s *store.MemStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.PersistRound(ctx, store.RoundObservation{
		IndexerAddress: "a",
		Networks:       []store.Network{{Name: "mainnet"}},
		Deployments:    []store.SgDeployment{{IPFSHash: "Qm1", NetworkName: "mainnet"}},
		Pois:           []store.PoI{{DeploymentIPFSHash: "Qm1", IndexerAddress: "a", NetworkName: "mainnet", BlockNumber: 100, BlockHash: "0xb", Hash: "0xaa"}},
	}))
	require.NoError(t, s.PersistRound(ctx, store.RoundObservation{
		IndexerAddress: "b",
		Pois:           []store.PoI{{DeploymentIPFSHash: "Qm1", IndexerAddress: "b", NetworkName: "mainnet", BlockNumber: 100, BlockHash: "0xb", Hash: "0xaa"}},
	}))
}

func TestServiceDeploymentsAndIndexers(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	seedTwoAgreeingIndexers(t, s)
	require.NoError(t, s.UpsertIndexer(ctx, store.Indexer{Address: "a"}))
	require.NoError(t, s.UpsertIndexer(ctx, store.Indexer{Address: "b"}))

	svc := &Service{Store: s}

	deployments, err := svc.Deployments(ctx, DeploymentFilter{})
	require.NoError(t, err)
	assert.Len(t, deployments, 1)

	indexers, err := svc.Indexers(ctx, IndexerFilter{})
	require.NoError(t, err)
	assert.Len(t, indexers, 2)
}

func TestServicePoiAgreementRatios(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	seedTwoAgreeingIndexers(t, s)

	svc := &Service{Store: s}
	ratios, err := svc.PoiAgreementRatios(ctx, "a")
	require.NoError(t, err)
	require.Len(t, ratios, 1)
	assert.Equal(t, 2, ratios[0].TotalIndexers)
	assert.True(t, ratios[0].InConsensus)
}

func TestServiceLaunchAndFetchDivergenceInvestigation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	svc := &Service{Store: s}

	result, err := svc.LaunchDivergenceInvestigation(ctx, LaunchDivergenceInvestigationInput{Pois: []string{"0xaa", "0xbb"}})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)

	status, err := svc.DivergenceInvestigationReport(ctx, result.UUID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)
	assert.Nil(t, status.Report)
}

func TestServiceLaunchRejectsSinglePoi(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	svc := &Service{Store: s}

	_, err := svc.LaunchDivergenceInvestigation(ctx, LaunchDivergenceInvestigationInput{Pois: []string{"0xaa"}})
	assert.Error(t, err)
}
