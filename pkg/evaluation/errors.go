package evaluation

import (
	"fmt"
	"io"
	"sort"
)

// TolerantEditDistanceErrors is the classified outcome of a correspondence
// run: which ground-truth regions were split, which reconstruction regions
// merged, and — when background handling is enabled — which regions are
// false positives or false negatives. Every ground-truth label with at
// least one overlap-graph edge lands in exactly one of matched, split or
// false negative; symmetrically for reconstruction labels.
type TolerantEditDistanceErrors struct {
	// matches maps each cleanly matched ground-truth label to its
	// reconstruction partner, and the reverse.
	gtMatches  map[uint64]uint64
	recMatches map[uint64]uint64

	// splits maps a ground-truth label to all reconstruction labels it
	// was split into; merges maps a reconstruction label to all
	// ground-truth labels merged into it.
	splits map[uint64][]uint64
	merges map[uint64][]uint64

	// falsePositives and falseNegatives are only populated when a
	// background label is considered.
	falsePositives []uint64
	falseNegatives []uint64

	hasBackground bool
	background    uint64
}

func newErrors(hasBackground bool, background uint64) *TolerantEditDistanceErrors {
	return &TolerantEditDistanceErrors{
		gtMatches:  make(map[uint64]uint64),
		recMatches: make(map[uint64]uint64),
		splits:     make(map[uint64][]uint64),
		merges:     make(map[uint64][]uint64),

		hasBackground: hasBackground,
		background:    background,
	}
}

// HasBackgroundLabel reports whether background handling was enabled for
// this classification.
func (e *TolerantEditDistanceErrors) HasBackgroundLabel() bool { return e.hasBackground }

// BackgroundLabel returns the configured background label. Only meaningful
// when HasBackgroundLabel is true.
func (e *TolerantEditDistanceErrors) BackgroundLabel() uint64 { return e.background }

// MatchedGT reports whether the given ground-truth label matched a single
// reconstruction region, and which one.
func (e *TolerantEditDistanceErrors) MatchedGT(gt uint64) (uint64, bool) {
	rec, ok := e.gtMatches[gt]
	return rec, ok
}

// MatchedRec reports whether the given reconstruction label matched a single
// ground-truth region, and which one.
func (e *TolerantEditDistanceErrors) MatchedRec(rec uint64) (uint64, bool) {
	gt, ok := e.recMatches[rec]
	return gt, ok
}

// SplitLabels returns all ground-truth labels that were split, sorted.
func (e *TolerantEditDistanceErrors) SplitLabels() []uint64 {
	return sortedMapKeys(e.splits)
}

// Splits returns the reconstruction labels a ground-truth label was split
// into, sorted. Empty for labels that were not split.
func (e *TolerantEditDistanceErrors) Splits(gt uint64) []uint64 {
	return append([]uint64(nil), e.splits[gt]...)
}

// MergeLabels returns all reconstruction labels that merged ground-truth
// regions, sorted.
func (e *TolerantEditDistanceErrors) MergeLabels() []uint64 {
	return sortedMapKeys(e.merges)
}

// Merges returns the ground-truth labels merged into a reconstruction label,
// sorted. Empty for labels that did not merge anything.
func (e *TolerantEditDistanceErrors) Merges(rec uint64) []uint64 {
	return append([]uint64(nil), e.merges[rec]...)
}

// FalsePositives returns the reconstruction labels whose only substantial
// ground-truth counterpart is background, sorted.
func (e *TolerantEditDistanceErrors) FalsePositives() []uint64 {
	return append([]uint64(nil), e.falsePositives...)
}

// FalseNegatives returns the ground-truth labels whose only substantial
// reconstruction counterpart is background, sorted.
func (e *TolerantEditDistanceErrors) FalseNegatives() []uint64 {
	return append([]uint64(nil), e.falseNegatives...)
}

// NumSplits counts split errors: one label split into n parts counts n-1.
func (e *TolerantEditDistanceErrors) NumSplits() int {
	n := 0
	for _, parts := range e.splits {
		n += len(parts) - 1
	}
	return n
}

// NumMerges counts merge errors: n labels merged into one counts n-1.
func (e *TolerantEditDistanceErrors) NumMerges() int {
	n := 0
	for _, parts := range e.merges {
		n += len(parts) - 1
	}
	return n
}

// NumFalsePositives counts false positive regions.
func (e *TolerantEditDistanceErrors) NumFalsePositives() int { return len(e.falsePositives) }

// NumFalseNegatives counts false negative regions.
func (e *TolerantEditDistanceErrors) NumFalseNegatives() int { return len(e.falseNegatives) }

// Total is the tolerant edit distance: the total number of split, merge,
// false positive and false negative errors.
func (e *TolerantEditDistanceErrors) Total() int {
	return e.NumSplits() + e.NumMerges() + e.NumFalsePositives() + e.NumFalseNegatives()
}

// WriteSplits writes one line per split ground-truth label: the label
// followed by the reconstruction labels it was split into, tab-separated.
func (e *TolerantEditDistanceErrors) WriteSplits(w io.Writer) error {
	for _, gt := range e.SplitLabels() {
		if err := writeLabelLine(w, gt, e.splits[gt]); err != nil {
			return err
		}
	}
	return nil
}

// WriteMerges writes one line per merging reconstruction label: the label
// followed by the ground-truth labels merged into it, tab-separated.
func (e *TolerantEditDistanceErrors) WriteMerges(w io.Writer) error {
	for _, rec := range e.MergeLabels() {
		if err := writeLabelLine(w, rec, e.merges[rec]); err != nil {
			return err
		}
	}
	return nil
}

// WriteFalsePositives writes one false positive reconstruction label per
// line.
func (e *TolerantEditDistanceErrors) WriteFalsePositives(w io.Writer) error {
	for _, rec := range e.falsePositives {
		if _, err := fmt.Fprintf(w, "%d\n", rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteFalseNegatives writes one false negative ground-truth label per line.
func (e *TolerantEditDistanceErrors) WriteFalseNegatives(w io.Writer) error {
	for _, gt := range e.falseNegatives {
		if _, err := fmt.Fprintf(w, "%d\n", gt); err != nil {
			return err
		}
	}
	return nil
}

func writeLabelLine(w io.Writer, label uint64, partners []uint64) error {
	if _, err := fmt.Fprintf(w, "%d", label); err != nil {
		return err
	}
	for _, p := range partners {
		if _, err := fmt.Fprintf(w, "\t%d", p); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func sortedMapKeys(m map[uint64][]uint64) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
