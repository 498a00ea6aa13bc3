package poller

import (
	"sort"

	"github.com/graphops/graphix/config"
)

// reportedBlock is one indexer's latest synced block for a deployment,
// the input to block-choice policy selection (spec.md §4.1 step 3).
type reportedBlock struct {
	IndexerAddress string
	Number         uint64
}

// chooseBlock picks the comparison block number for a deployment's
// reported latest blocks under policy. ok is false if fewer than two
// indexers reported (the deployment is recorded in the catalog but
// skipped for PoI comparison).
func chooseBlock(policy config.BlockChoicePolicy, reported []reportedBlock) (uint64, bool) {
	if len(reported) < 2 {
		return 0, false
	}

	switch policy {
	case config.PolicyEarliest:
		min := reported[0].Number
		for _, r := range reported[1:] {
			if r.Number < min {
				min = r.Number
			}
		}
		return min, true
	case config.PolicyMaxSyncedBlocks, "":
		return maxSyncedBlocks(reported), true
	default:
		return maxSyncedBlocks(reported), true
	}
}

// maxSyncedBlocks finds the maximum n such that a strict majority of
// reporters (floor(len(reported)/2)+1) reported latestBlock.number >= n,
// preferring the higher n on ties (spec.md §4.1 step 3).
func maxSyncedBlocks(reported []reportedBlock) uint64 {
	numbers := make([]uint64, len(reported))
	for i, r := range reported {
		numbers[i] = r.Number
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] > numbers[j] })

	required := len(reported)/2 + 1
	if required > len(reported) {
		required = len(reported)
	}
	// numbers[required-1] is the required-th largest value: at least
	// `required` indexers reported a number >= it.
	return numbers[required-1]
}
