package evaluation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tedeval/pkg/volume"
)

// ErrShapeMismatch signals that the ground-truth and reconstruction volumes
// differ in voxel dimensions. This is a fatal precondition violation.
var ErrShapeMismatch = errors.New("ground truth and reconstruction dimensions differ")

// Builder computes the bipartite overlap graph between a ground-truth and a
// reconstruction label volume, with a spatial tolerance applied.
type Builder struct {
	// Tolerance is the maximum physical distance (same unit as the volume
	// resolution) within which a boundary disagreement is absorbed.
	Tolerance float64

	// Workers bounds the number of concurrent slice workers; 0 means one
	// per CPU.
	Workers int

	log zerolog.Logger
}

// NewBuilder creates a correspondence builder with the given tolerance.
func NewBuilder(tolerance float64, workers int, log zerolog.Logger) *Builder {
	return &Builder{
		Tolerance: tolerance,
		Workers:   workers,
		log:       log,
	}
}

// offset is one element of the tolerance structuring element.
type offset struct {
	dx, dy, dz int
}

// neighborhoodOffsets precomputes the voxel offsets whose physical distance
// is within the tolerance. The tolerance is given in physical units and
// converted to a per-axis voxel radius using the volume resolution, so an
// anisotropic resolution yields an anisotropic neighborhood. The zero offset
// is always included.
func neighborhoodOffsets(tolerance float64, res volume.Resolution) []offset {
	rx := axisRadius(tolerance, res.X)
	ry := axisRadius(tolerance, res.Y)
	rz := axisRadius(tolerance, res.Z)

	t2 := tolerance * tolerance
	var offsets []offset
	for dz := -rz; dz <= rz; dz++ {
		for dy := -ry; dy <= ry; dy++ {
			for dx := -rx; dx <= rx; dx++ {
				d2 := float64(dx)*float64(dx)*res.X*res.X +
					float64(dy)*float64(dy)*res.Y*res.Y +
					float64(dz)*float64(dz)*res.Z*res.Z
				if d2 <= t2 {
					offsets = append(offsets, offset{dx, dy, dz})
				}
			}
		}
	}
	if len(offsets) == 0 {
		offsets = append(offsets, offset{})
	}
	return offsets
}

func axisRadius(tolerance, resolution float64) int {
	if tolerance <= 0 {
		return 0
	}
	if resolution <= 0 {
		resolution = 1
	}
	return int(math.Floor(tolerance / resolution))
}

// sliceShard accumulates the per-slice results of the tolerant pass; shards
// are merged into the graph once all workers finish.
type sliceShard struct {
	gtNear      map[labelPair]int
	recNear     map[labelPair]int
	gtAbsorbed  map[uint64]map[uint64]int
	recAbsorbed map[uint64]map[uint64]int
	corrections []correction
}

// Build computes the overlap graph for the given volume pair. Both volumes
// are treated as read-only; the pass over the volume is parallelized across
// depth slices.
func (b *Builder) Build(gt, rec *volume.LabelVolume) (*OverlapGraph, error) {
	if !gt.SameShape(rec) {
		return nil, fmt.Errorf("%w: %dx%dx%d vs %dx%dx%d", ErrShapeMismatch,
			gt.Width(), gt.Height(), gt.Depth(),
			rec.Width(), rec.Height(), rec.Depth())
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	graph := newOverlapGraph()

	b.accumulateExact(gt, rec, graph, workers)
	b.findDominantPartners(graph)

	offsets := neighborhoodOffsets(b.Tolerance, gt.Resolution())
	b.log.Debug().
		Float64("tolerance", b.Tolerance).
		Int("offsets", len(offsets)).
		Int("workers", workers).
		Msg("running tolerant correspondence pass")

	if err := b.accumulateTolerant(gt, rec, graph, offsets, workers); err != nil {
		return nil, err
	}

	b.log.Debug().
		Int("gt_regions", len(graph.gtSizes)).
		Int("rec_regions", len(graph.recSizes)).
		Int("overlap_pairs", len(graph.entries)).
		Msg("overlap graph complete")

	return graph, nil
}

// accumulateExact performs the single exact co-occurrence pass: per-slice
// counts accumulated independently and merged at the end.
func (b *Builder) accumulateExact(gt, rec *volume.LabelVolume, graph *OverlapGraph, workers int) {
	depth := gt.Depth()
	sliceLen := gt.Width() * gt.Height()
	shards := make([]map[labelPair]int, depth)

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for z := 0; z < depth; z++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(z int) {
			defer wg.Done()
			defer func() { <-sem }()

			counts := make(map[labelPair]int)
			base := z * sliceLen
			for i := base; i < base+sliceLen; i++ {
				counts[labelPair{GT: gt.AtIndex(i), Rec: rec.AtIndex(i)}]++
			}
			shards[z] = counts
		}(z)
	}
	wg.Wait()

	for _, counts := range shards {
		for key, n := range counts {
			graph.entry(key.GT, key.Rec).Raw += n
			graph.gtSizes[key.GT] += n
			graph.recSizes[key.Rec] += n
		}
	}
}

// findDominantPartners picks, for every label on either side, the partner
// with the largest exact overlap. Ties break toward the smaller label so the
// choice is deterministic. Dominance is decided before the tolerant pass and
// does not depend on the tolerance.
func (b *Builder) findDominantPartners(graph *OverlapGraph) {
	for key, e := range graph.entries {
		if e.Raw == 0 {
			continue
		}
		if best, ok := graph.gtDominant[key.GT]; !ok ||
			e.Raw > graph.Raw(key.GT, best) ||
			(e.Raw == graph.Raw(key.GT, best) && key.Rec < best) {
			graph.gtDominant[key.GT] = key.Rec
		}
		if best, ok := graph.recDominant[key.Rec]; !ok ||
			e.Raw > graph.Raw(best, key.Rec) ||
			(e.Raw == graph.Raw(best, key.Rec) && key.GT < best) {
			graph.recDominant[key.Rec] = key.GT
		}
	}
}

// accumulateTolerant performs the tolerant pass: for every voxel, the labels
// present in its tolerance neighborhood on both sides. A voxel of region g
// with a neighborhood containing reconstruction region r counts toward the
// within-tolerance overlap of (g, r); a disagreeing voxel whose neighborhood
// contains the dominant partner of its region is absorbed and recorded as a
// correctable discrepancy.
func (b *Builder) accumulateTolerant(gt, rec *volume.LabelVolume, graph *OverlapGraph, offsets []offset, workers int) error {
	depth := gt.Depth()
	width := gt.Width()
	height := gt.Height()
	shards := make([]*sliceShard, depth)

	var eg errgroup.Group
	eg.SetLimit(workers)
	for z := 0; z < depth; z++ {
		z := z
		eg.Go(func() error {
			shard := &sliceShard{
				gtNear:      make(map[labelPair]int),
				recNear:     make(map[labelPair]int),
				gtAbsorbed:  make(map[uint64]map[uint64]int),
				recAbsorbed: make(map[uint64]map[uint64]int),
			}

			var gtSet, recSet []uint64
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					g0 := gt.At(x, y, z)
					r0 := rec.At(x, y, z)

					gtSet, recSet = neighborhoodLabels(gt, rec, x, y, z, offsets, gtSet[:0], recSet[:0])

					for _, r := range recSet {
						shard.gtNear[labelPair{GT: g0, Rec: r}]++
					}
					for _, g := range gtSet {
						shard.recNear[labelPair{GT: g, Rec: r0}]++
					}

					if dom, ok := graph.gtDominant[g0]; ok && r0 != dom && containsLabel(recSet, dom) {
						addCount(shard.gtAbsorbed, g0, r0)
						shard.corrections = append(shard.corrections, correction{
							index: gt.Index(x, y, z),
							gt:    g0,
							label: dom,
						})
					}
					if dom, ok := graph.recDominant[r0]; ok && g0 != dom && containsLabel(gtSet, dom) {
						addCount(shard.recAbsorbed, r0, g0)
					}
				}
			}

			shards[z] = shard
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, shard := range shards {
		for key, n := range shard.gtNear {
			graph.entry(key.GT, key.Rec).GTNear += n
		}
		for key, n := range shard.recNear {
			graph.entry(key.GT, key.Rec).RecNear += n
		}
		mergeCounts(graph.gtAbsorbed, shard.gtAbsorbed)
		mergeCounts(graph.recAbsorbed, shard.recAbsorbed)
		graph.corrections = append(graph.corrections, shard.corrections...)
	}

	return nil
}

// neighborhoodLabels collects the distinct ground-truth and reconstruction
// labels within the tolerance neighborhood of a voxel, reusing the provided
// scratch slices.
func neighborhoodLabels(gt, rec *volume.LabelVolume, x, y, z int, offsets []offset, gtSet, recSet []uint64) ([]uint64, []uint64) {
	width, height, depth := gt.Width(), gt.Height(), gt.Depth()
	for _, o := range offsets {
		nx, ny, nz := x+o.dx, y+o.dy, z+o.dz
		if nx < 0 || nx >= width || ny < 0 || ny >= height || nz < 0 || nz >= depth {
			continue
		}
		if g := gt.At(nx, ny, nz); !containsLabel(gtSet, g) {
			gtSet = append(gtSet, g)
		}
		if r := rec.At(nx, ny, nz); !containsLabel(recSet, r) {
			recSet = append(recSet, r)
		}
	}
	return gtSet, recSet
}

// containsLabel reports membership in the small neighborhood label sets; a
// linear scan beats a map for the handful of labels a neighborhood holds.
func containsLabel(set []uint64, label uint64) bool {
	for _, l := range set {
		if l == label {
			return true
		}
	}
	return false
}

func addCount(m map[uint64]map[uint64]int, outer, inner uint64) {
	if m[outer] == nil {
		m[outer] = make(map[uint64]int)
	}
	m[outer][inner]++
}

func mergeCounts(dst, src map[uint64]map[uint64]int) {
	for outer, counts := range src {
		if dst[outer] == nil {
			dst[outer] = make(map[uint64]int)
		}
		for inner, n := range counts {
			dst[outer][inner] += n
		}
	}
}
