package bisect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairsEnumeratesAllUnorderedCombinations(t *testing.T) {
	pois := []resolvedPoi{
		{Hash: "0x1"}, {Hash: "0x2"}, {Hash: "0x3"}, {Hash: "0x4"},
	}
	got := pairs(pois)
	assert.Len(t, got, 6) // floor(4*3/2) = 6

	seen := map[string]bool{}
	for _, p := range got {
		seen[p.A.Hash+p.B.Hash] = true
	}
	assert.True(t, seen["0x10x2"])
	assert.True(t, seen["0x30x4"])
}

func TestPairsEmptyForSingleton(t *testing.T) {
	assert.Empty(t, pairs([]resolvedPoi{{Hash: "0x1"}}))
}
