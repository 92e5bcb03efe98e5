package evaluation

import (
	"math"
	"testing"
)

// TestVoiIdentity verifies zero variation of information for identical
// segmentations
func TestVoiIdentity(t *testing.T) {
	vol := line(t, 0, 1, 1, 2, 2, 2)
	graph := buildGraph(t, vol, vol.Clone(), 0)

	voi := voiFromGraph(graph, false, 0)
	if voi.Split != 0 || voi.Merge != 0 {
		t.Errorf("Expected zero VOI for identical volumes, got split=%g merge=%g", voi.Split, voi.Merge)
	}
}

// TestVoiSplit verifies the conditional entropy of a clean two-way split
func TestVoiSplit(t *testing.T) {
	// one 4-voxel region split into two halves: H(Rec|GT) = 1 bit,
	// H(GT|Rec) = 0
	gt := line(t, 1, 1, 1, 1)
	rec := line(t, 2, 2, 3, 3)
	graph := buildGraph(t, gt, rec, 0)

	voi := voiFromGraph(graph, false, 0)
	if math.Abs(voi.Split-1.0) > 1e-12 {
		t.Errorf("Expected split VOI of 1 bit, got %g", voi.Split)
	}
	if voi.Merge != 0 {
		t.Errorf("Expected zero merge VOI, got %g", voi.Merge)
	}
	if math.Abs(voi.Total()-1.0) > 1e-12 {
		t.Errorf("Expected total VOI 1, got %g", voi.Total())
	}
}

// TestVoiIgnoreBackground verifies that ground truth background voxels can
// be excluded
func TestVoiIgnoreBackground(t *testing.T) {
	// disagreement only on background voxels
	gt := line(t, 0, 0, 1, 1)
	rec := line(t, 4, 5, 6, 6)
	graph := buildGraph(t, gt, rec, 0)

	full := voiFromGraph(graph, false, 0)
	if full.Total() == 0 {
		t.Error("Expected nonzero VOI when background is considered")
	}

	ignored := voiFromGraph(graph, true, 0)
	if ignored.Total() != 0 {
		t.Errorf("Expected zero VOI when background is ignored, got %g", ignored.Total())
	}
}

// TestRandIdentity verifies a RAND index of 1 for identical segmentations
func TestRandIdentity(t *testing.T) {
	vol := line(t, 0, 1, 1, 2, 2, 2)
	graph := buildGraph(t, vol, vol.Clone(), 0)

	if ri := randFromGraph(graph, false, 0); ri != 1 {
		t.Errorf("Expected RAND index 1, got %g", ri)
	}
}

// TestRandSplit verifies the pair counting on a two-way split
func TestRandSplit(t *testing.T) {
	// 4 voxels, one gt region, rec split in two: of the 6 voxel pairs,
	// the 4 cross-half pairs disagree
	gt := line(t, 1, 1, 1, 1)
	rec := line(t, 2, 2, 3, 3)
	graph := buildGraph(t, gt, rec, 0)

	want := 2.0 / 6.0
	if ri := randFromGraph(graph, false, 0); math.Abs(ri-want) > 1e-12 {
		t.Errorf("Expected RAND index %g, got %g", want, ri)
	}
}

// TestDetectionOverlap verifies the mean best-match overlap fraction
func TestDetectionOverlap(t *testing.T) {
	// region 1 covered 3/4 by its best partner, region 2 fully covered
	gt := line(t, 1, 1, 1, 1, 2, 2)
	rec := line(t, 7, 7, 7, 8, 9, 9)
	graph := buildGraph(t, gt, rec, 0)

	want := (3.0/4.0 + 1.0) / 2
	if do := detectionOverlapFromGraph(graph, 0); math.Abs(do-want) > 1e-12 {
		t.Errorf("Expected detection overlap %g, got %g", want, do)
	}
}

// TestDetectionOverlapIgnoresBackground verifies that background does not
// count as a counterpart
func TestDetectionOverlapIgnoresBackground(t *testing.T) {
	gt := line(t, 1, 1, 0, 0)
	rec := line(t, 0, 0, 0, 0)
	graph := buildGraph(t, gt, rec, 0)

	if do := detectionOverlapFromGraph(graph, 0); do != 0 {
		t.Errorf("Expected zero detection overlap for an unreconstructed region, got %g", do)
	}
}
