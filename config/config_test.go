package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`
databaseUrl: postgres://localhost/graphix
sources:
  - type: indexer
    address: "0xabc"
    indexNodeEndpoint: "http://indexer1:8030"
`))
	require.NoError(t, err)
	assert.Equal(t, uint16(3030), cfg.GraphQL.Port)
	assert.Equal(t, uint16(9184), cfg.PrometheusPort)
	assert.Equal(t, uint64(120), cfg.PollingPeriodInSeconds)
	assert.Equal(t, PolicyMaxSyncedBlocks, cfg.BlockChoicePolicy)
	require.Len(t, cfg.Sources, 1)
	require.NotNil(t, cfg.Sources[0].Indexer)
	assert.Equal(t, "0xabc", cfg.Sources[0].Indexer.Address)
}

func TestFromReaderAllowsMissingDatabaseURL(t *testing.T) {
	// databaseUrl is normally supplied by the --database-url flag after
	// FromFile/FromReader returns, so the load path must not reject its
	// absence; Validate is what enforces it, once the flag is applied.
	cfg, err := FromReader(strings.NewReader(`sources: []`))
	require.NoError(t, err)
	assert.Empty(t, cfg.DatabaseURL)

	assert.Error(t, cfg.Validate())
	cfg.DatabaseURL = "postgres://localhost/graphix"
	assert.NoError(t, cfg.Validate())
}

func TestFromReaderDecodesEverySourceType(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`
databaseUrl: postgres://localhost/graphix
sources:
  - type: indexer
    address: "0xa"
    indexNodeEndpoint: "http://a:8030"
  - type: indexerByAddress
    address: "0xb"
  - type: networkSubgraph
    endpoint: "http://network.thegraph.com"
    stakeThreshold: "100000"
    query: byStakedTokens
    limit: 50
  - type: interceptor
    name: fake-1
    target: "0xa"
    poiByte: 170
`))
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 4)
	assert.NotNil(t, cfg.Sources[0].Indexer)
	assert.NotNil(t, cfg.Sources[1].IndexerByAddress)
	require.NotNil(t, cfg.Sources[2].NetworkSubgraph)
	assert.Equal(t, QueryByStakedTokens, cfg.Sources[2].NetworkSubgraph.Query)
	require.NotNil(t, cfg.Sources[3].Interceptor)
	assert.EqualValues(t, 170, cfg.Sources[3].Interceptor.PoiByte)
}

func TestFromReaderRejectsUnknownSourceType(t *testing.T) {
	_, err := FromReader(strings.NewReader(`
databaseUrl: postgres://localhost/graphix
sources:
  - type: bogus
`))
	assert.Error(t, err)
}
