package evaluation

import (
	"testing"
)

// TestSplitScenario verifies the 2x2 region split into two 2x1 regions:
// exactly one split entry, nothing else, background handling disabled
func TestSplitScenario(t *testing.T) {
	gt := labelVolume(t, 4, 4,
		[]uint64{
			0, 0, 0, 0,
			0, 1, 1, 0,
			0, 1, 1, 0,
			0, 0, 0, 0,
		})
	rec := labelVolume(t, 4, 4,
		[]uint64{
			0, 0, 0, 0,
			0, 1, 2, 0,
			0, 1, 2, 0,
			0, 0, 0, 0,
		})

	errs := classify(t, gt, rec, 0, false)

	splits := errs.SplitLabels()
	if !equalLabels(splits, []uint64{1}) {
		t.Fatalf("Expected exactly one split label 1, got %v", splits)
	}
	if !equalLabels(errs.Splits(1), []uint64{1, 2}) {
		t.Errorf("Expected label 1 split into {1, 2}, got %v", errs.Splits(1))
	}
	if len(errs.MergeLabels()) != 0 {
		t.Errorf("Expected no merges, got %v", errs.MergeLabels())
	}
	if errs.NumFalsePositives() != 0 || errs.NumFalseNegatives() != 0 {
		t.Errorf("Expected no fp/fn, got %d/%d", errs.NumFalsePositives(), errs.NumFalseNegatives())
	}
}

// TestOffsetScenario verifies the offset-by-one region: split+merge pair at
// tolerance 0, full match at tolerance 1
func TestOffsetScenario(t *testing.T) {
	gt, rec := offsetPair(t)

	strict := classify(t, gt, rec, 0, true)
	if strict.NumSplits() != 1 || strict.NumMerges() != 1 {
		t.Errorf("Expected one split and one merge at tolerance 0, got %d/%d",
			strict.NumSplits(), strict.NumMerges())
	}

	tolerant := classify(t, gt, rec, 1.0, true)
	if tolerant.Total() != 0 {
		t.Errorf("Expected no errors at tolerance 1, got %d", tolerant.Total())
	}
	if rec, ok := tolerant.MatchedGT(1); !ok || rec != 2 {
		t.Errorf("Expected ground truth 1 matched to reconstruction 2, got %d (ok=%v)", rec, ok)
	}
	if gt, ok := tolerant.MatchedRec(2); !ok || gt != 1 {
		t.Errorf("Expected reconstruction 2 matched to ground truth 1, got %d (ok=%v)", gt, ok)
	}
}

// TestFalsePositiveScenario verifies a reconstruction region that only
// overlaps background: false positive with background handling, excluded
// without
func TestFalsePositiveScenario(t *testing.T) {
	gt := labelVolume(t, 6, 2,
		[]uint64{
			1, 1, 0, 0, 0, 0,
			1, 1, 0, 0, 0, 0,
		})
	rec := labelVolume(t, 6, 2,
		[]uint64{
			1, 1, 0, 0, 9, 9,
			1, 1, 0, 0, 9, 9,
		})

	withBg := classify(t, gt, rec, 0, true)
	if !equalLabels(withBg.FalsePositives(), []uint64{9}) {
		t.Errorf("Expected false positive {9}, got %v", withBg.FalsePositives())
	}
	if withBg.NumSplits() != 0 || withBg.NumMerges() != 0 || withBg.NumFalseNegatives() != 0 {
		t.Error("Expected only a false positive")
	}

	noBg := classify(t, gt, rec, 0, false)
	if noBg.NumFalsePositives() != 0 {
		t.Errorf("Expected no false positives without background handling, got %v", noBg.FalsePositives())
	}
	if _, ok := noBg.MatchedRec(9); ok {
		t.Error("Region 9 must not be matched without background handling")
	}
	if len(noBg.MergeLabels()) != 0 || len(noBg.SplitLabels()) != 0 {
		t.Error("Region 9 must be excluded from all categories")
	}
}

// TestFalseNegative verifies a ground truth region with no reconstruction
// counterpart
func TestFalseNegative(t *testing.T) {
	gt := line(t, 0, 0, 3, 3, 3, 0)
	rec := line(t, 0, 0, 0, 0, 0, 0)

	errs := classify(t, gt, rec, 0, true)
	if !equalLabels(errs.FalseNegatives(), []uint64{3}) {
		t.Errorf("Expected false negative {3}, got %v", errs.FalseNegatives())
	}
	if errs.Total() != 1 {
		t.Errorf("Expected total 1, got %d", errs.Total())
	}
}

// TestMergeScenario verifies two ground truth regions covered by one
// reconstruction region
func TestMergeScenario(t *testing.T) {
	gt := line(t, 1, 1, 1, 2, 2, 2)
	rec := line(t, 7, 7, 7, 7, 7, 7)

	errs := classify(t, gt, rec, 0, false)

	if !equalLabels(errs.MergeLabels(), []uint64{7}) {
		t.Fatalf("Expected merge label 7, got %v", errs.MergeLabels())
	}
	if !equalLabels(errs.Merges(7), []uint64{1, 2}) {
		t.Errorf("Expected 7 merging {1, 2}, got %v", errs.Merges(7))
	}
	if errs.NumMerges() != 1 {
		t.Errorf("Expected one merge error, got %d", errs.NumMerges())
	}
	// each ground truth region sees only region 7
	if _, ok := errs.MatchedGT(1); !ok {
		t.Error("Ground truth 1 should be matched on its side")
	}
	if _, ok := errs.MatchedGT(2); !ok {
		t.Error("Ground truth 2 should be matched on its side")
	}
}

// TestIdentityCase verifies zero errors for identical volumes at any
// tolerance
func TestIdentityCase(t *testing.T) {
	vol := labelVolume(t, 4, 2,
		[]uint64{
			1, 1, 0, 2,
			1, 0, 0, 2,
		},
		[]uint64{
			1, 1, 0, 2,
			3, 3, 0, 2,
		})

	for _, tolerance := range []float64{0, 1, 2.5} {
		for _, hasBg := range []bool{true, false} {
			errs := classify(t, vol, vol.Clone(), tolerance, hasBg)
			if errs.Total() != 0 {
				t.Errorf("Identity case at tolerance %g (bg=%v): expected 0 errors, got %d",
					tolerance, hasBg, errs.Total())
			}
		}
	}
}

// TestToleranceMonotonicity verifies that growing the tolerance never
// increases the number of splits and merges
func TestToleranceMonotonicity(t *testing.T) {
	gt := labelVolume(t, 8, 4,
		[]uint64{
			1, 1, 1, 1, 0, 2, 2, 2,
			1, 1, 1, 1, 0, 2, 2, 2,
			0, 0, 0, 0, 0, 0, 0, 0,
			3, 3, 3, 0, 0, 4, 4, 4,
		})
	rec := labelVolume(t, 8, 4,
		[]uint64{
			0, 1, 1, 5, 5, 0, 2, 2,
			0, 1, 1, 5, 5, 0, 2, 2,
			0, 0, 0, 0, 0, 0, 0, 0,
			3, 3, 6, 6, 0, 4, 4, 0,
		})

	last := -1
	for _, tolerance := range []float64{0, 1, 2, 3} {
		errs := classify(t, gt, rec, tolerance, true)
		total := errs.NumSplits() + errs.NumMerges()
		if last >= 0 && total > last {
			t.Errorf("Split+merge count increased from %d to %d at tolerance %g", last, total, tolerance)
		}
		last = total
	}
}

// TestPartitionProperty verifies that every foreground label lands in
// exactly one category
func TestPartitionProperty(t *testing.T) {
	// deterministic pseudo-random label volumes
	next := uint64(12345)
	random := func(n uint64) uint64 {
		next = next*6364136223846793005 + 1442695040888963407
		return (next >> 33) % n
	}

	width, height, depth := 8, 8, 4
	gtData := make([]uint64, width*height*depth)
	recData := make([]uint64, width*height*depth)
	for i := range gtData {
		gtData[i] = random(5)
		recData[i] = random(6)
	}

	gt := labelVolume(t, width, height, chunk(gtData, width*height)...)
	rec := labelVolume(t, width, height, chunk(recData, width*height)...)

	for _, tolerance := range []float64{0, 1} {
		errs := classify(t, gt, rec, tolerance, true)

		for label := uint64(1); label < 5; label++ {
			if !gt.Contains(label) {
				continue
			}
			n := 0
			if _, ok := errs.MatchedGT(label); ok {
				n++
			}
			if len(errs.Splits(label)) > 0 {
				n++
			}
			for _, fn := range errs.FalseNegatives() {
				if fn == label {
					n++
				}
			}
			if n != 1 {
				t.Errorf("Ground truth label %d appears in %d categories at tolerance %g", label, n, tolerance)
			}
		}

		for label := uint64(1); label < 6; label++ {
			if !rec.Contains(label) {
				continue
			}
			n := 0
			if _, ok := errs.MatchedRec(label); ok {
				n++
			}
			if len(errs.Merges(label)) > 0 {
				n++
			}
			for _, fp := range errs.FalsePositives() {
				if fp == label {
					n++
				}
			}
			if n != 1 {
				t.Errorf("Reconstruction label %d appears in %d categories at tolerance %g", label, n, tolerance)
			}
		}
	}
}

func chunk(data []uint64, size int) [][]uint64 {
	var out [][]uint64
	for i := 0; i < len(data); i += size {
		out = append(out, data[i:i+size])
	}
	return out
}
