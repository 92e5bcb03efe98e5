package evaluation

import (
	"math"

	"github.com/rs/zerolog"
)

// Classifier walks the overlap graph and assigns every region to exactly one
// error category.
//
// A region's partners are its dominant counterpart plus every label on the
// other side whose unabsorbed exact overlap reaches the minimum fraction of
// the region's size. One partner means a match, several mean a split (ground
// truth side) or merge (reconstruction side). When background handling is
// enabled, background participates as a partner — a region whose only
// partner is background is a false negative or false positive — but is never
// itself classified. With background handling disabled, all overlaps with
// the background label are dropped and regions left without partners are
// excluded from every category.
type Classifier struct {
	// HasBackground enables background handling; Background is the label
	// treated as background on both sides.
	HasBackground bool
	Background    uint64

	// MinOverlapRatio is the minimum unabsorbed overlap, as a fraction of
	// the region size, for a non-dominant label to count as a partner. At
	// 0, a single unabsorbed voxel suffices.
	MinOverlapRatio float64

	log zerolog.Logger
}

// NewClassifier creates a classifier with the given background handling.
func NewClassifier(hasBackground bool, background uint64, minOverlapRatio float64, log zerolog.Logger) *Classifier {
	return &Classifier{
		HasBackground:   hasBackground,
		Background:      background,
		MinOverlapRatio: minOverlapRatio,
		log:             log,
	}
}

// Classify partitions all foreground labels of both volumes into the error
// categories.
func (c *Classifier) Classify(graph *OverlapGraph) *TolerantEditDistanceErrors {
	errs := newErrors(c.HasBackground, c.Background)

	for _, gt := range graph.GTLabels() {
		if c.excludeLabel(gt) {
			continue
		}
		partners := c.gtPartners(graph, gt)
		switch {
		case len(partners) == 0:
			c.log.Debug().Uint64("gt_label", gt).Msg("ground truth region has no partners, excluded")
		case len(partners) == 1:
			if c.isBackground(partners[0]) {
				errs.falseNegatives = append(errs.falseNegatives, gt)
			} else {
				errs.gtMatches[gt] = partners[0]
			}
		default:
			errs.splits[gt] = partners
		}
	}

	for _, rec := range graph.RecLabels() {
		if c.excludeLabel(rec) {
			continue
		}
		partners := c.recPartners(graph, rec)
		switch {
		case len(partners) == 0:
			c.log.Debug().Uint64("rec_label", rec).Msg("reconstruction region has no partners, excluded")
		case len(partners) == 1:
			if c.isBackground(partners[0]) {
				errs.falsePositives = append(errs.falsePositives, rec)
			} else {
				errs.recMatches[rec] = partners[0]
			}
		default:
			errs.merges[rec] = partners
		}
	}

	return errs
}

// excludeLabel reports whether a label is never classified as a region
// itself. The background label only ever appears as a partner.
func (c *Classifier) excludeLabel(label uint64) bool {
	return label == c.Background
}

// isBackground reports whether a partner label is the enabled background.
func (c *Classifier) isBackground(label uint64) bool {
	return c.HasBackground && label == c.Background
}

// dropPair reports whether overlaps with this partner label are ignored
// entirely (background with background handling disabled).
func (c *Classifier) dropPair(label uint64) bool {
	return !c.HasBackground && label == c.Background
}

func (c *Classifier) partnerThreshold(size int) int {
	t := int(math.Ceil(c.MinOverlapRatio * float64(size)))
	if t < 1 {
		t = 1
	}
	return t
}

// gtPartners enumerates the reconstruction partners of a ground-truth
// region. The dominant partner qualifies by dominance; any other label needs
// unabsorbed overlap at or above the threshold. Sorted by label.
func (c *Classifier) gtPartners(graph *OverlapGraph, gt uint64) []uint64 {
	dom, absorbedValid := c.effectiveGTDominant(graph, gt)
	threshold := c.partnerThreshold(graph.GTSize(gt))

	var partners []uint64
	for _, rec := range graph.RecPartners(gt) {
		if c.dropPair(rec) || graph.Raw(gt, rec) == 0 {
			continue
		}
		if rec == dom {
			partners = append(partners, rec)
			continue
		}
		unabsorbed := graph.Raw(gt, rec)
		if absorbedValid {
			unabsorbed = graph.gtUnabsorbed(gt, rec)
		}
		if unabsorbed >= threshold {
			partners = append(partners, rec)
		}
	}
	return partners
}

// recPartners is the reconstruction-side mirror of gtPartners.
func (c *Classifier) recPartners(graph *OverlapGraph, rec uint64) []uint64 {
	dom, absorbedValid := c.effectiveRecDominant(graph, rec)
	threshold := c.partnerThreshold(graph.RecSize(rec))

	var partners []uint64
	for _, gt := range graph.GTPartners(rec) {
		if c.dropPair(gt) || graph.Raw(gt, rec) == 0 {
			continue
		}
		if gt == dom {
			partners = append(partners, gt)
			continue
		}
		unabsorbed := graph.Raw(gt, rec)
		if absorbedValid {
			unabsorbed = graph.recUnabsorbed(rec, gt)
		}
		if unabsorbed >= threshold {
			partners = append(partners, gt)
		}
	}
	return partners
}

// effectiveGTDominant returns the dominant partner to use for
// classification. With background handling disabled and a background
// dominant, dominance falls back to the largest foreground overlap; the
// absorption counts recorded during the build targeted the background region
// and are not applicable then, which the second return signals.
func (c *Classifier) effectiveGTDominant(graph *OverlapGraph, gt uint64) (uint64, bool) {
	dom, ok := graph.GTDominant(gt)
	if !ok {
		return 0, false
	}
	if !c.dropPair(dom) {
		return dom, true
	}

	best, bestRaw := uint64(0), 0
	for _, rec := range graph.RecPartners(gt) {
		if c.dropPair(rec) {
			continue
		}
		if raw := graph.Raw(gt, rec); raw > bestRaw || (raw == bestRaw && raw > 0 && rec < best) {
			best, bestRaw = rec, raw
		}
	}
	if bestRaw == 0 {
		return 0, false
	}
	return best, false
}

// effectiveRecDominant is the reconstruction-side mirror of
// effectiveGTDominant.
func (c *Classifier) effectiveRecDominant(graph *OverlapGraph, rec uint64) (uint64, bool) {
	dom, ok := graph.RecDominant(rec)
	if !ok {
		return 0, false
	}
	if !c.dropPair(dom) {
		return dom, true
	}

	best, bestRaw := uint64(0), 0
	for _, gt := range graph.GTPartners(rec) {
		if c.dropPair(gt) {
			continue
		}
		if raw := graph.Raw(gt, rec); raw > bestRaw || (raw == bestRaw && raw > 0 && gt < best) {
			best, bestRaw = gt, raw
		}
	}
	if bestRaw == 0 {
		return 0, false
	}
	return best, false
}
