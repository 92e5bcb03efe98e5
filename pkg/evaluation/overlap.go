// Package evaluation implements the tolerant edit distance correspondence
// between a ground-truth and a reconstruction label volume: the bipartite
// overlap graph, the split/merge/false-positive/false-negative
// classification, the tolerance-absorbed boundary correction, and the
// summary metrics derived from the same overlap statistics.
package evaluation

import (
	"sort"
)

// labelPair keys the contingency table by one ground-truth and one
// reconstruction label.
type labelPair struct {
	GT, Rec uint64
}

// OverlapEntry is one edge of the bipartite overlap graph: the voxel
// co-occurrence between a ground-truth region and a reconstruction region.
type OverlapEntry struct {
	// GT and Rec identify the two regions.
	GT, Rec uint64

	// Raw is the exact voxel co-occurrence count.
	Raw int

	// GTNear counts voxels of the ground-truth region that lie within the
	// tolerance distance of the reconstruction region.
	GTNear int

	// RecNear counts voxels of the reconstruction region that lie within
	// the tolerance distance of the ground-truth region.
	RecNear int
}

// OverlapGraph is the bipartite overlap graph plus the per-side bookkeeping
// the classifier and corrector need. It is built once per evaluation run and
// read-only afterwards.
type OverlapGraph struct {
	entries map[labelPair]*OverlapEntry

	// gtSizes and recSizes are the exact voxel counts per region.
	gtSizes  map[uint64]int
	recSizes map[uint64]int

	// gtDominant maps each ground-truth label to its reconstruction
	// partner with the largest exact overlap; recDominant is the mirror.
	gtDominant  map[uint64]uint64
	recDominant map[uint64]uint64

	// gtAbsorbed[g][r] counts voxels of ground-truth region g carrying
	// reconstruction label r that lie within tolerance of g's dominant
	// partner. recAbsorbed[r][g] is the mirror on the reconstruction side.
	gtAbsorbed  map[uint64]map[uint64]int
	recAbsorbed map[uint64]map[uint64]int

	// corrections lists the voxels whose reconstruction label can be
	// rewritten to the dominant partner of their ground-truth region
	// without exceeding the tolerance.
	corrections []correction
}

// correction is one reconstruction voxel whose label disagreement is fully
// absorbed by the tolerance.
type correction struct {
	index int
	gt    uint64
	label uint64
}

func newOverlapGraph() *OverlapGraph {
	return &OverlapGraph{
		entries:     make(map[labelPair]*OverlapEntry),
		gtSizes:     make(map[uint64]int),
		recSizes:    make(map[uint64]int),
		gtDominant:  make(map[uint64]uint64),
		recDominant: make(map[uint64]uint64),
		gtAbsorbed:  make(map[uint64]map[uint64]int),
		recAbsorbed: make(map[uint64]map[uint64]int),
	}
}

func (g *OverlapGraph) entry(gt, rec uint64) *OverlapEntry {
	key := labelPair{GT: gt, Rec: rec}
	e, ok := g.entries[key]
	if !ok {
		e = &OverlapEntry{GT: gt, Rec: rec}
		g.entries[key] = e
	}
	return e
}

// Entry returns the overlap entry for a label pair, or nil if the two
// regions have no overlap within tolerance.
func (g *OverlapGraph) Entry(gt, rec uint64) *OverlapEntry {
	return g.entries[labelPair{GT: gt, Rec: rec}]
}

// Raw returns the exact overlap count for a label pair.
func (g *OverlapGraph) Raw(gt, rec uint64) int {
	if e := g.Entry(gt, rec); e != nil {
		return e.Raw
	}
	return 0
}

// Tolerant returns the within-tolerance overlap count for a label pair. It
// is the larger of the two directional counts, clamped so that it never
// exceeds the size of either region.
func (g *OverlapGraph) Tolerant(gt, rec uint64) int {
	e := g.Entry(gt, rec)
	if e == nil {
		return 0
	}
	t := e.GTNear
	if e.RecNear > t {
		t = e.RecNear
	}
	if limit := g.gtSizes[gt]; t > limit {
		t = limit
	}
	if limit := g.recSizes[rec]; t > limit {
		t = limit
	}
	return t
}

// GTSize returns the exact voxel count of a ground-truth region.
func (g *OverlapGraph) GTSize(label uint64) int { return g.gtSizes[label] }

// RecSize returns the exact voxel count of a reconstruction region.
func (g *OverlapGraph) RecSize(label uint64) int { return g.recSizes[label] }

// GTLabels returns all ground-truth labels with at least one voxel, sorted.
func (g *OverlapGraph) GTLabels() []uint64 {
	return sortedKeys(g.gtSizes)
}

// RecLabels returns all reconstruction labels with at least one voxel,
// sorted.
func (g *OverlapGraph) RecLabels() []uint64 {
	return sortedKeys(g.recSizes)
}

// RecPartners returns the reconstruction labels overlapping a ground-truth
// label, exactly or within tolerance, sorted.
func (g *OverlapGraph) RecPartners(gt uint64) []uint64 {
	var partners []uint64
	for key := range g.entries {
		if key.GT == gt {
			partners = append(partners, key.Rec)
		}
	}
	sort.Slice(partners, func(i, j int) bool { return partners[i] < partners[j] })
	return partners
}

// GTPartners returns the ground-truth labels overlapping a reconstruction
// label, exactly or within tolerance, sorted.
func (g *OverlapGraph) GTPartners(rec uint64) []uint64 {
	var partners []uint64
	for key := range g.entries {
		if key.Rec == rec {
			partners = append(partners, key.GT)
		}
	}
	sort.Slice(partners, func(i, j int) bool { return partners[i] < partners[j] })
	return partners
}

// GTDominant returns the reconstruction partner with the largest exact
// overlap with the given ground-truth label. The second return is false for
// labels absent from the volume.
func (g *OverlapGraph) GTDominant(gt uint64) (uint64, bool) {
	d, ok := g.gtDominant[gt]
	return d, ok
}

// RecDominant returns the ground-truth partner with the largest exact
// overlap with the given reconstruction label.
func (g *OverlapGraph) RecDominant(rec uint64) (uint64, bool) {
	d, ok := g.recDominant[rec]
	return d, ok
}

// gtUnabsorbed returns the exact overlap between g's region and rec that the
// tolerance could not absorb into g's dominant partner.
func (g *OverlapGraph) gtUnabsorbed(gt, rec uint64) int {
	n := g.Raw(gt, rec)
	if abs, ok := g.gtAbsorbed[gt]; ok {
		n -= abs[rec]
	}
	if n < 0 {
		n = 0
	}
	return n
}

// recUnabsorbed is the reconstruction-side mirror of gtUnabsorbed.
func (g *OverlapGraph) recUnabsorbed(rec, gt uint64) int {
	n := g.Raw(gt, rec)
	if abs, ok := g.recAbsorbed[rec]; ok {
		n -= abs[gt]
	}
	if n < 0 {
		n = 0
	}
	return n
}

// contingency flattens the exact co-occurrence counts of the graph, the
// input to the VOI and RAND computations.
func (g *OverlapGraph) contingency() map[labelPair]int {
	table := make(map[labelPair]int, len(g.entries))
	for key, e := range g.entries {
		if e.Raw > 0 {
			table[key] = e.Raw
		}
	}
	return table
}

func sortedKeys(m map[uint64]int) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
