package evaluation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tedeval/pkg/volume"
)

// ErrNoSuchOutput signals that a caller requested an output the current
// configuration never produces, such as the corrected reconstruction of a
// run that skipped the tolerant edit distance. It is an expected condition:
// callers treat it as "feature not requested" and carry on.
var ErrNoSuchOutput = errors.New("output not produced by this configuration")

// ErrNoBackground signals that a requested metric needs background handling
// but no background label is configured.
var ErrNoBackground = errors.New("metric requires a background label")

// errNotRun guards result accessors called before Run.
var errNotRun = errors.New("error report has not been run")

// Parameters configures which metrics an error report computes and how.
type Parameters struct {
	// HeaderOnly requests only the report header; no volumes are
	// processed.
	HeaderOnly bool

	// ReportTed enables the tolerant edit distance, the error listing and
	// the corrected reconstruction.
	ReportTed bool

	// ReportRand enables the RAND index.
	ReportRand bool

	// ReportVoi enables the variation of information.
	ReportVoi bool

	// ReportDetectionOverlap enables the detection overlap.
	ReportDetectionOverlap bool

	// IgnoreBackground drops ground-truth background voxels from the VOI
	// and RAND computation.
	IgnoreBackground bool

	// GrowSlices grows reconstruction regions into background, slice by
	// slice, before computing VOI and RAND.
	GrowSlices bool

	// HasBackground enables background handling; Background is the
	// reserved label.
	HasBackground bool
	Background    uint64

	// Tolerance is the boundary tolerance in physical units.
	Tolerance float64

	// MinOverlapRatio is the classifier's partner threshold.
	MinOverlapRatio float64

	// Workers bounds the correspondence workers; 0 means one per CPU.
	Workers int
}

// DefaultParameters mirrors the defaults of the original evaluation tool:
// tolerant edit distance and detection overlap on, the rest off, background
// label 0.
func DefaultParameters() Parameters {
	return Parameters{
		ReportTed:              true,
		ReportDetectionOverlap: true,
		HasBackground:          true,
		Background:             0,
		Tolerance:              1.0,
	}
}

// ErrorReport orchestrates the correspondence builder, classifier, corrector
// and the auxiliary metrics for one ground-truth/reconstruction pair, and
// renders the textual reports.
type ErrorReport struct {
	params Parameters
	log    zerolog.Logger

	ran       bool
	errs      *TolerantEditDistanceErrors
	corrected *volume.LabelVolume

	voi          VoiResult
	randIndex    float64
	detection    float64
	hasVoi       bool
	hasRand      bool
	hasDetection bool
}

// NewErrorReport creates an error report with the given parameters.
func NewErrorReport(params Parameters, log zerolog.Logger) *ErrorReport {
	return &ErrorReport{params: params, log: log}
}

// Run evaluates the reconstruction against the ground truth. Precondition
// violations (shape mismatch, missing background configuration) abort the
// run; afterwards all enabled metrics and outputs are available.
func (r *ErrorReport) Run(gt, rec *volume.LabelVolume) error {
	if r.params.HeaderOnly {
		return nil
	}
	if (r.params.IgnoreBackground || r.params.GrowSlices) && !r.params.HasBackground {
		return fmt.Errorf("%w: ignoreBackground/growSlices requested", ErrNoBackground)
	}

	builder := NewBuilder(r.params.Tolerance, r.params.Workers, r.log)
	graph, err := builder.Build(gt, rec)
	if err != nil {
		return err
	}

	if r.params.ReportTed {
		classifier := NewClassifier(r.params.HasBackground, r.params.Background, r.params.MinOverlapRatio, r.log)
		r.errs = classifier.Classify(graph)
		r.corrected = NewCorrector(r.log).Apply(rec, graph, r.errs)

		r.log.Info().
			Int("splits", r.errs.NumSplits()).
			Int("merges", r.errs.NumMerges()).
			Int("false_positives", r.errs.NumFalsePositives()).
			Int("false_negatives", r.errs.NumFalseNegatives()).
			Msg("tolerant edit distance computed")
	}

	if r.params.ReportVoi || r.params.ReportRand {
		statsGraph := graph
		if r.params.GrowSlices {
			grown := volume.GrowSlices(rec, r.params.Background)
			statsBuilder := NewBuilder(0, r.params.Workers, r.log)
			statsGraph, err = statsBuilder.Build(gt, grown)
			if err != nil {
				return err
			}
		}
		if r.params.ReportVoi {
			r.voi = voiFromGraph(statsGraph, r.params.IgnoreBackground, r.params.Background)
			r.hasVoi = true
		}
		if r.params.ReportRand {
			r.randIndex = randFromGraph(statsGraph, r.params.IgnoreBackground, r.params.Background)
			r.hasRand = true
		}
	}

	if r.params.ReportDetectionOverlap {
		r.detection = detectionOverlapFromGraph(graph, r.params.Background)
		r.hasDetection = true
	}

	r.ran = true
	return nil
}

// column is one entry of the tabular report. The same list drives the
// header and the value line, so their order and count always agree.
type column struct {
	name  string
	value func() string
}

func (r *ErrorReport) columns() []column {
	var cols []column
	if r.params.ReportTed {
		cols = append(cols,
			column{"ted_split", func() string { return fmt.Sprintf("%d", r.errs.NumSplits()) }},
			column{"ted_merge", func() string { return fmt.Sprintf("%d", r.errs.NumMerges()) }},
		)
		if r.params.HasBackground {
			cols = append(cols,
				column{"ted_fp", func() string { return fmt.Sprintf("%d", r.errs.NumFalsePositives()) }},
				column{"ted_fn", func() string { return fmt.Sprintf("%d", r.errs.NumFalseNegatives()) }},
			)
		}
		cols = append(cols,
			column{"ted_total", func() string { return fmt.Sprintf("%d", r.errs.Total()) }},
		)
	}
	if r.params.ReportVoi {
		cols = append(cols,
			column{"voi_split", func() string { return formatFloat(r.voi.Split) }},
			column{"voi_merge", func() string { return formatFloat(r.voi.Merge) }},
			column{"voi", func() string { return formatFloat(r.voi.Total()) }},
		)
	}
	if r.params.ReportRand {
		cols = append(cols,
			column{"rand", func() string { return formatFloat(r.randIndex) }},
		)
	}
	if r.params.ReportDetectionOverlap {
		cols = append(cols,
			column{"detection_overlap", func() string { return formatFloat(r.detection) }},
		)
	}
	return cols
}

// Header returns the tab-separated column names of the single-line report.
// It is available without running the evaluation.
func (r *ErrorReport) Header() string {
	names := make([]string, 0, 8)
	for _, col := range r.columns() {
		names = append(names, col.name)
	}
	return strings.Join(names, "\t")
}

// SingleLine returns the tab-separated metric values, in header order,
// suitable for appending to a results table.
func (r *ErrorReport) SingleLine() (string, error) {
	if !r.ran {
		return "", errNotRun
	}
	values := make([]string, 0, 8)
	for _, col := range r.columns() {
		values = append(values, col.value())
	}
	return strings.Join(values, "\t"), nil
}

// HumanReadable returns the multi-line report, one enabled metric per line
// as "<name>: <value>". Metrics that could not be computed are omitted
// rather than rendered as errors.
func (r *ErrorReport) HumanReadable() (string, error) {
	if !r.ran {
		return "", errNotRun
	}

	var b strings.Builder
	if r.params.ReportTed && r.errs != nil {
		fmt.Fprintf(&b, "TED splits: %d\n", r.errs.NumSplits())
		fmt.Fprintf(&b, "TED merges: %d\n", r.errs.NumMerges())
		if r.params.HasBackground {
			fmt.Fprintf(&b, "TED false positives: %d\n", r.errs.NumFalsePositives())
			fmt.Fprintf(&b, "TED false negatives: %d\n", r.errs.NumFalseNegatives())
		}
		fmt.Fprintf(&b, "TED total: %d\n", r.errs.Total())
	}
	if r.hasVoi {
		fmt.Fprintf(&b, "VOI split: %s\n", formatFloat(r.voi.Split))
		fmt.Fprintf(&b, "VOI merge: %s\n", formatFloat(r.voi.Merge))
		fmt.Fprintf(&b, "VOI: %s\n", formatFloat(r.voi.Total()))
	}
	if r.hasRand {
		fmt.Fprintf(&b, "RAND index: %s\n", formatFloat(r.randIndex))
	}
	if r.hasDetection {
		fmt.Fprintf(&b, "Detection overlap: %s\n", formatFloat(r.detection))
	}
	return b.String(), nil
}

// Errors returns the classified tolerant edit distance errors, or
// ErrNoSuchOutput when the configuration skipped them.
func (r *ErrorReport) Errors() (*TolerantEditDistanceErrors, error) {
	if !r.ran {
		return nil, errNotRun
	}
	if r.errs == nil {
		return nil, fmt.Errorf("%w: ted errors", ErrNoSuchOutput)
	}
	return r.errs, nil
}

// CorrectedReconstruction returns the reconstruction with tolerance-absorbed
// boundary disagreements resolved, or ErrNoSuchOutput when the configuration
// never produced one.
func (r *ErrorReport) CorrectedReconstruction() (*volume.LabelVolume, error) {
	if !r.ran {
		return nil, errNotRun
	}
	if r.corrected == nil {
		return nil, fmt.Errorf("%w: corrected reconstruction", ErrNoSuchOutput)
	}
	return r.corrected, nil
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
