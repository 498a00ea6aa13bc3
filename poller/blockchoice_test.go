package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphops/graphix/config"
)

func TestChooseBlockEarliest(t *testing.T) {
	reported := []reportedBlock{
		{IndexerAddress: "a", Number: 100},
		{IndexerAddress: "b", Number: 120},
		{IndexerAddress: "c", Number: 140},
	}
	block, ok := chooseBlock(config.PolicyEarliest, reported)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), block)
}

func TestChooseBlockMaxSyncedBlocksMajority(t *testing.T) {
	reported := []reportedBlock{
		{IndexerAddress: "a", Number: 80},
		{IndexerAddress: "b", Number: 90},
		{IndexerAddress: "c", Number: 100},
		{IndexerAddress: "d", Number: 110},
		{IndexerAddress: "e", Number: 120},
	}
	block, ok := chooseBlock(config.PolicyMaxSyncedBlocks, reported)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), block)
}

func TestChooseBlockSkipsSingleReporter(t *testing.T) {
	_, ok := chooseBlock(config.PolicyEarliest, []reportedBlock{{IndexerAddress: "a", Number: 100}})
	assert.False(t, ok)
}
