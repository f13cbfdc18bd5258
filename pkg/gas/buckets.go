package gas

import "sort"

// computationBuckets is the ascending cost ladder computation charges are
// rounded up to at finalization, so small variance in executed
// instructions does not produce a unique gas cost per transaction.
var computationBuckets = []uint64{50, 100, 200, 400, 800, 1600, 3200, 6400, 12800, 25600}

// bucketComputationCost rounds raw up to the smallest bucket that covers
// it, or the top bucket if raw exceeds the ladder's range.
func bucketComputationCost(raw uint64) uint64 {
	i := sort.Search(len(computationBuckets), func(i int) bool { return computationBuckets[i] >= raw })
	if i == len(computationBuckets) {
		return computationBuckets[len(computationBuckets)-1]
	}
	return computationBuckets[i]
}
