package bisect

// resolvedPoi is one submitted PoI hash resolved to the (indexer,
// deployment, block) it belongs to.
type resolvedPoi struct {
	Hash           string
	IndexerAddress string
	NetworkName    string
	DeploymentHash string
	BlockNumber    uint64
	BlockHash      string
}

// pair is one unordered combination of two resolvedPois to bisect.
type pair struct {
	A, B resolvedPoi
}

// pairs enumerates all ⌊n(n−1)/2⌋ unordered pairs of a distinct-PoI
// input list, per spec.md §4.3 "Pairing".
func pairs(pois []resolvedPoi) []pair {
	var out []pair
	for i := 0; i < len(pois); i++ {
		for j := i + 1; j < len(pois); j++ {
			out = append(out, pair{A: pois[i], B: pois[j]})
		}
	}
	return out
}
