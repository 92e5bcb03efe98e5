package evaluation

import (
	"github.com/rs/zerolog"

	"tedeval/pkg/volume"
)

// Corrector rewrites the reconstruction voxels whose labeling disagreed with
// the ground truth by no more than the tolerance, producing a reconstruction
// in which only the genuine split, merge, false positive and false negative
// errors remain.
type Corrector struct {
	log zerolog.Logger
}

// NewCorrector creates a corrector.
func NewCorrector(log zerolog.Logger) *Corrector {
	return &Corrector{log: log}
}

// Apply returns a copy of the reconstruction in which every absorbed voxel
// of a cleanly matched ground-truth region carries that region's matched
// reconstruction label. Voxels of split or merged regions are left
// untouched, so the correction never changes the reconstruction topology.
// When the classification found nothing to correct, the result is an
// unmodified copy; applying the corrector to its own output is a no-op.
func (c *Corrector) Apply(rec *volume.LabelVolume, graph *OverlapGraph, errs *TolerantEditDistanceErrors) *volume.LabelVolume {
	corrected := rec.Clone()

	applied := 0
	for _, corr := range graph.corrections {
		match, ok := errs.MatchedGT(corr.gt)
		if !ok || match != corr.label {
			continue
		}
		corrected.SetAtIndex(corr.index, corr.label)
		applied++
	}

	c.log.Debug().
		Int("candidates", len(graph.corrections)).
		Int("applied", applied).
		Msg("corrected reconstruction")

	return corrected
}
