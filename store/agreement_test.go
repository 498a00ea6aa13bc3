package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgreementRatiosTwoAgreeingIndexers(t *testing.T) {
	byDeployment := map[string][]LivePoi{
		"Qm1": {
			{IndexerAddress: "a", Hash: "0xaa", BlockNumber: 100},
			{IndexerAddress: "b", Hash: "0xaa", BlockNumber: 100},
		},
	}

	ratios := AgreementRatios("a", byDeployment)
	assert.Len(t, ratios, 1)
	assert.Equal(t, 2, ratios[0].TotalIndexers)
	assert.Equal(t, 2, ratios[0].NAgreeingIndexers)
	assert.True(t, ratios[0].HasConsensus)
	assert.True(t, ratios[0].InConsensus)
}

func TestAgreementRatiosDisagreementDetection(t *testing.T) {
	byDeployment := map[string][]LivePoi{
		"Qm1": {
			{IndexerAddress: "a", Hash: "0xaa", BlockNumber: 100},
			{IndexerAddress: "b", Hash: "0xaa", BlockNumber: 100},
			{IndexerAddress: "c", Hash: "0xbb", BlockNumber: 100},
		},
	}

	ratios := AgreementRatios("c", byDeployment)
	assert.Len(t, ratios, 1)
	r := ratios[0]
	assert.Equal(t, 3, r.TotalIndexers)
	assert.Equal(t, 1, r.NAgreeingIndexers)
	assert.Equal(t, 2, r.NDisagreeingIndexers)
	assert.True(t, r.HasConsensus)
	assert.False(t, r.InConsensus)
}

func TestAgreementRatiosNoStrictMajority(t *testing.T) {
	byDeployment := map[string][]LivePoi{
		"Qm1": {
			{IndexerAddress: "a", Hash: "0xaa", BlockNumber: 100},
			{IndexerAddress: "b", Hash: "0xbb", BlockNumber: 100},
		},
	}

	ratios := AgreementRatios("a", byDeployment)
	assert.Len(t, ratios, 1)
	assert.False(t, ratios[0].HasConsensus)
	assert.False(t, ratios[0].InConsensus)
}

func TestAgreementRatiosSkipsDeploymentsWithoutOwnLivePoi(t *testing.T) {
	byDeployment := map[string][]LivePoi{
		"Qm1": {
			{IndexerAddress: "b", Hash: "0xaa", BlockNumber: 100},
		},
	}

	ratios := AgreementRatios("a", byDeployment)
	assert.Empty(t, ratios)
}
