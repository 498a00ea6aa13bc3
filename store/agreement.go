package store

// AgreementRatio is one row of the agreement-ratio computation (spec.md
// §4.2): for a given indexer and deployment, how many indexers' live
// PoIs, its own included, agree with its own.
type AgreementRatio struct {
	Deployment        string
	Poi               string
	Block             uint64
	TotalIndexers     int
	NAgreeingIndexers int
	NDisagreeingIndexers int
	HasConsensus      bool
	InConsensus       bool
}

// AgreementRatios computes one AgreementRatio per deployment for which
// indexerAddress has a live PoI. byDeployment maps each deployment of
// interest to its live PoIs (callers pass the LivePoisForDeployment
// result for each deployment indexerAddress participates in). It is a
// pure function with no store dependency beyond the read queries that
// produced byDeployment, so it is unit-testable
// without a database.
func AgreementRatios(indexerAddress string, byDeployment map[string][]LivePoi) []AgreementRatio {
	var out []AgreementRatio
	for deployment, live := range byDeployment {
		var mine *LivePoi
		for i := range live {
			if live[i].IndexerAddress == indexerAddress {
				mine = &live[i]
				break
			}
		}
		if mine == nil {
			continue
		}

		total := len(live)
		counts := make(map[string]int, total)
		for _, l := range live {
			counts[l.Hash]++
		}

		agreeing := counts[mine.Hash]
		disagreeing := total - agreeing

		consensusHash, consensusCount := modeHash(counts)
		hasConsensus := total > 0 && consensusCount*2 > total
		inConsensus := hasConsensus && mine.Hash == consensusHash

		out = append(out, AgreementRatio{
			Deployment:            deployment,
			Poi:                   mine.Hash,
			Block:                 mine.BlockNumber,
			TotalIndexers:         total,
			NAgreeingIndexers:     agreeing,
			NDisagreeingIndexers:  disagreeing,
			HasConsensus:          hasConsensus,
			InConsensus:           inConsensus,
		})
	}
	return out
}

// modeHash returns the most frequent hash and its count. Ties are
// reported as whichever hash iteration happens to visit first; callers
// only rely on the count for the hasConsensus strict-majority check, so
// the tie-break itself is immaterial (spec.md §4.2: "hasConsensus =
// false regardless of the argmax" when there's no strict majority).
func modeHash(counts map[string]int) (string, int) {
	var best string
	var bestCount int
	for h, c := range counts {
		if c > bestCount {
			best, bestCount = h, c
		}
	}
	return best, bestCount
}
