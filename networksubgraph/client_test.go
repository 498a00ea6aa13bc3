package networksubgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeetsThreshold(t *testing.T) {
	assert.True(t, meetsThreshold("100000", "100000"))
	assert.True(t, meetsThreshold("100001", "100000"))
	assert.False(t, meetsThreshold("99999", "100000"))
	assert.True(t, meetsThreshold("100000000000000000000", "99999999999999999999"))
	assert.True(t, meetsThreshold("5", ""))
}

func TestCompareDecimalStringsIgnoresLeadingZeros(t *testing.T) {
	assert.Equal(t, 0, compareDecimalStrings("007", "7"))
	assert.Equal(t, -1, compareDecimalStrings("9", "10"))
	assert.Equal(t, 1, compareDecimalStrings("10", "9"))
}
