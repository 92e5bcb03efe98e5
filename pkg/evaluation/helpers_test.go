package evaluation

import (
	"testing"

	"github.com/rs/zerolog"

	"tedeval/pkg/volume"
)

// labelVolume builds a volume from per-slice rows of labels, isotropic
// resolution 1.
func labelVolume(t *testing.T, width, height int, slices ...[]uint64) *volume.LabelVolume {
	t.Helper()
	data := make([]uint64, 0, width*height*len(slices))
	for _, s := range slices {
		if len(s) != width*height {
			t.Fatalf("Slice has %d values, expected %d", len(s), width*height)
		}
		data = append(data, s...)
	}
	v, err := volume.FromData(data, width, height, len(slices), volume.IsotropicResolution(1.0))
	if err != nil {
		t.Fatalf("Failed to build volume: %v", err)
	}
	return v
}

// line builds a single-row volume from a label sequence.
func line(t *testing.T, labels ...uint64) *volume.LabelVolume {
	t.Helper()
	return labelVolume(t, len(labels), 1, labels)
}

// classify runs the builder and classifier with the given tolerance and
// background handling.
func classify(t *testing.T, gt, rec *volume.LabelVolume, tolerance float64, hasBackground bool) *TolerantEditDistanceErrors {
	t.Helper()
	graph := buildGraph(t, gt, rec, tolerance)
	classifier := NewClassifier(hasBackground, 0, 0, zerolog.Nop())
	return classifier.Classify(graph)
}

func buildGraph(t *testing.T, gt, rec *volume.LabelVolume, tolerance float64) *OverlapGraph {
	t.Helper()
	graph, err := NewBuilder(tolerance, 1, zerolog.Nop()).Build(gt, rec)
	if err != nil {
		t.Fatalf("Failed to build overlap graph: %v", err)
	}
	return graph
}

func equalLabels(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// offsetPair returns a 10-voxel ground-truth region and an identically
// shaped reconstruction region shifted by one voxel.
func offsetPair(t *testing.T) (gt, rec *volume.LabelVolume) {
	t.Helper()
	gt = line(t, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0)
	rec = line(t, 0, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 0)
	return gt, rec
}
