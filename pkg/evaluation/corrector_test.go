package evaluation

import (
	"testing"

	"github.com/rs/zerolog"

	"tedeval/pkg/volume"
)

// correct runs the full builder/classifier/corrector chain once.
func correct(t *testing.T, gt, rec *volume.LabelVolume, tolerance float64) *volume.LabelVolume {
	t.Helper()
	graph := buildGraph(t, gt, rec, tolerance)
	errs := NewClassifier(true, 0, 0, zerolog.Nop()).Classify(graph)
	return NewCorrector(zerolog.Nop()).Apply(rec, graph, errs)
}

// TestCorrectorResolvesToleranceMismatch verifies that an absorbed boundary
// disagreement is rewritten to the matched label
func TestCorrectorResolvesToleranceMismatch(t *testing.T) {
	gt, rec := offsetPair(t)

	corrected := correct(t, gt, rec, 1.0)

	// the reconstruction voxel left uncovered at the leading edge now
	// carries the matched label
	if got := corrected.At(0, 0, 0); got != 2 {
		t.Errorf("Expected corrected label 2 at x=0, got %d", got)
	}
	// the genuine region voxels are untouched
	for x := 1; x <= 10; x++ {
		if corrected.At(x, 0, 0) != 2 {
			t.Errorf("Expected label 2 at x=%d, got %d", x, corrected.At(x, 0, 0))
		}
	}
	// the input reconstruction is not modified
	if rec.At(0, 0, 0) != 0 {
		t.Error("Corrector modified its input")
	}
}

// TestCorrectorLeavesGenuineErrors verifies that splits are not corrected
func TestCorrectorLeavesGenuineErrors(t *testing.T) {
	gt := line(t, 0, 1, 1, 1, 1, 1, 1, 0)
	rec := line(t, 0, 1, 1, 1, 2, 2, 2, 0)

	corrected := correct(t, gt, rec, 0)

	if !corrected.Equal(rec) {
		t.Error("Corrector changed a genuinely split reconstruction")
	}
}

// TestCorrectorNoOpOnExactMatch verifies the no-op copy
func TestCorrectorNoOpOnExactMatch(t *testing.T) {
	gt := line(t, 0, 1, 1, 0, 2, 2)
	rec := gt.Clone()

	corrected := correct(t, gt, rec, 1.0)

	if !corrected.Equal(rec) {
		t.Error("Corrector changed an exact reconstruction")
	}
}

// TestCorrectorIdempotent verifies that correcting an already corrected
// volume produces no further changes
func TestCorrectorIdempotent(t *testing.T) {
	gt, rec := offsetPair(t)

	once := correct(t, gt, rec, 1.0)
	twice := correct(t, gt, once, 1.0)

	if !twice.Equal(once) {
		t.Error("Correction is not idempotent")
	}
}
