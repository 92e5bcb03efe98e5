package evaluation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// VoiResult holds the two conditional entropies that make up the variation
// of information. Split is the information in the reconstruction not
// explained by the ground truth, H(Rec|GT); Merge is the reverse, H(GT|Rec).
type VoiResult struct {
	Split float64
	Merge float64
}

// Total is the variation of information, the sum of both conditional
// entropies.
func (v VoiResult) Total() float64 { return v.Split + v.Merge }

// voiFromGraph computes the variation of information from the exact
// co-occurrence contingency table, in bits. With ignoreBackground set,
// voxels carrying the background label on the ground-truth side are dropped
// from the table first.
func voiFromGraph(graph *OverlapGraph, ignoreBackground bool, background uint64) VoiResult {
	table := graph.contingency()

	gtCounts := make(map[uint64]int)
	recCounts := make(map[uint64]int)
	total := 0
	for key, n := range table {
		if ignoreBackground && key.GT == background {
			continue
		}
		gtCounts[key.GT] += n
		recCounts[key.Rec] += n
		total += n
	}
	if total == 0 {
		return VoiResult{}
	}

	var split, merge float64
	for key, n := range table {
		if ignoreBackground && key.GT == background {
			continue
		}
		p := float64(n) / float64(total)
		split -= p * math.Log2(float64(n)/float64(gtCounts[key.GT]))
		merge -= p * math.Log2(float64(n)/float64(recCounts[key.Rec]))
	}

	return VoiResult{Split: split, Merge: merge}
}

// randFromGraph computes the RAND index — the fraction of voxel pairs whose
// same-region/different-region status agrees between the two segmentations —
// from the exact contingency table, via pair counting. With ignoreBackground
// set, ground-truth background voxels are dropped first.
func randFromGraph(graph *OverlapGraph, ignoreBackground bool, background uint64) float64 {
	table := graph.contingency()

	gtCounts := make(map[uint64]int)
	recCounts := make(map[uint64]int)
	total := 0
	sumPairs := 0.0
	for key, n := range table {
		if ignoreBackground && key.GT == background {
			continue
		}
		gtCounts[key.GT] += n
		recCounts[key.Rec] += n
		total += n
		sumPairs += choose2(n)
	}
	allPairs := choose2(total)
	if allPairs == 0 {
		return 1
	}

	gtPairs := 0.0
	for _, n := range gtCounts {
		gtPairs += choose2(n)
	}
	recPairs := 0.0
	for _, n := range recCounts {
		recPairs += choose2(n)
	}

	// agreements = pairs together in both + pairs apart in both
	return (allPairs + 2*sumPairs - gtPairs - recPairs) / allPairs
}

// choose2 returns n over 2 as a float to keep the pair counts exact for
// volumes beyond int32 range.
func choose2(n int) float64 {
	return float64(n) * float64(n-1) / 2
}

// detectionOverlapFromGraph computes the mean, over all foreground
// ground-truth regions, of the best-match overlap fraction: the largest
// exact overlap with a single foreground reconstruction region divided by
// the region size.
func detectionOverlapFromGraph(graph *OverlapGraph, background uint64) float64 {
	var fractions []float64
	for _, gt := range graph.GTLabels() {
		if gt == background {
			continue
		}
		size := graph.GTSize(gt)
		if size == 0 {
			continue
		}
		best := 0
		for _, rec := range graph.RecPartners(gt) {
			if rec == background {
				continue
			}
			if raw := graph.Raw(gt, rec); raw > best {
				best = raw
			}
		}
		fractions = append(fractions, float64(best)/float64(size))
	}
	if len(fractions) == 0 {
		return 0
	}
	return stat.Mean(fractions, nil)
}
