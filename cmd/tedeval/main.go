package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"tedeval/pkg/config"
	"tedeval/pkg/evaluation"
	"tedeval/pkg/volume"
)

func main() {
	// Parse command line arguments
	groundTruthDir := flag.String("ground-truth", "groundtruth", "Directory containing the ground truth image stack")
	reconstructionDir := flag.String("reconstruction", "reconstruction", "Directory containing the reconstruction image stack")
	extractGTLabels := flag.Bool("extract-gt-labels", false, "Treat the ground truth as a foreground/background mask and label each connected foreground component")
	exportGTDir := flag.String("export-gt", "", "If -extract-gt-labels is set, export the labeled ground truth to this directory")
	plotFile := flag.String("plot-file", "", "Append a tab-separated single-line error report to the given file")
	plotFileHeader := flag.Bool("plot-file-header", false, "Instead of computing the errors, append a single-line header to the plot file")
	tedErrorDir := flag.String("ted-error-files", "", "Directory for the split/merge (and fp/fn) listing files and the corrected reconstruction")
	reportTed := flag.Bool("report-ted", true, "Compute the tolerant edit distance for the error report")
	reportVoi := flag.Bool("report-voi", false, "Compute the variation of information for the error report")
	reportRand := flag.Bool("report-rand", false, "Compute the RAND index for the error report")
	reportDetection := flag.Bool("report-detection-overlap", true, "Compute the detection overlap for the error report")
	ignoreBackground := flag.Bool("ignore-background", false, "Do not consider ground truth background voxels for VOI and RAND")
	growSlices := flag.Bool("grow-slices", false, "Grow the reconstruction slices until no background label remains before computing VOI and RAND")
	tolerance := flag.Float64("tolerance", 1.0, "Boundary tolerance in physical units (mm)")
	noBackground := flag.Bool("no-background", false, "Disable background handling entirely")
	backgroundLabel := flag.Uint64("background", 0, "Label value reserved for background")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	workers := flag.Int("workers", 0, "Number of parallel slice workers (default: all CPUs)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
	}

	// Flags given on the command line win over the configuration file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	params := evaluation.Parameters{
		HeaderOnly:             *plotFileHeader,
		ReportTed:              pick(set["report-ted"], *reportTed, cfg.Evaluation.ReportTed),
		ReportVoi:              pick(set["report-voi"], *reportVoi, cfg.Evaluation.ReportVoi),
		ReportRand:             pick(set["report-rand"], *reportRand, cfg.Evaluation.ReportRand),
		ReportDetectionOverlap: pick(set["report-detection-overlap"], *reportDetection, cfg.Evaluation.ReportDetectionOverlap),
		IgnoreBackground:       pick(set["ignore-background"], *ignoreBackground, cfg.Evaluation.IgnoreBackground),
		GrowSlices:             pick(set["grow-slices"], *growSlices, cfg.Evaluation.GrowSlices),
		HasBackground:          pick(set["no-background"], !*noBackground, cfg.Evaluation.HasBackground),
		Background:             cfg.Evaluation.BackgroundLabel,
		Tolerance:              cfg.Evaluation.Tolerance,
		MinOverlapRatio:        cfg.Evaluation.MinOverlapRatio,
		Workers:                cfg.Evaluation.NumWorkers,
	}
	if set["background"] {
		params.Background = *backgroundLabel
	}
	if set["tolerance"] {
		params.Tolerance = *tolerance
	}
	if set["workers"] {
		params.Workers = *workers
	}
	if pick(set["verbose"], *verbose, cfg.Output.Verbose) {
		log = log.Level(zerolog.DebugLevel)
	}

	report := evaluation.NewErrorReport(params, log)

	// A header-only run performs no volume processing.
	if *plotFileHeader {
		if err := appendLine(*plotFile, report.Header()); err != nil {
			log.Fatal().Err(err).Msg("failed to write plot file header")
		}
		return
	}

	res := volume.Resolution{
		X: cfg.Volume.ResolutionX,
		Y: cfg.Volume.ResolutionY,
		Z: cfg.Volume.ResolutionZ,
	}

	groundTruth, err := volume.ReadStack(*groundTruthDir, res)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *groundTruthDir).Msg("failed to read ground truth stack")
	}
	reconstruction, err := volume.ReadStack(*reconstructionDir, res)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *reconstructionDir).Msg("failed to read reconstruction stack")
	}

	if pick(set["extract-gt-labels"], *extractGTLabels, cfg.Volume.ExtractGroundTruthLabels) {
		log.Debug().Msg("extracting ground truth labels from connected components")

		conn := volume.Connect2D
		if cfg.Volume.ExtractIn3D {
			conn = volume.Connect3D
		}
		groundTruth = volume.ExtractLabels(groundTruth, params.Background, conn)

		if *exportGTDir != "" {
			if err := volume.WriteStack(groundTruth, *exportGTDir); err != nil {
				log.Fatal().Err(err).Msg("failed to export labeled ground truth")
			}
		}
	}

	if err := report.Run(groundTruth, reconstruction); err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	// Save the corrected reconstruction. Not every configuration produces
	// one; that is not an error.
	if *tedErrorDir != "" {
		corrected, err := report.CorrectedReconstruction()
		switch {
		case errors.Is(err, evaluation.ErrNoSuchOutput):
			// well, we tried...
		case err != nil:
			log.Fatal().Err(err).Msg("failed to get corrected reconstruction")
		default:
			dir := filepath.Join(*tedErrorDir, "corrected_"+stem(*reconstructionDir))
			if err := volume.WriteStack(corrected, dir); err != nil {
				log.Fatal().Err(err).Msg("failed to write corrected reconstruction")
			}
		}
	}

	text, err := report.HumanReadable()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to render report")
	}
	fmt.Print(text)

	if *tedErrorDir != "" {
		if err := writeErrorFiles(report, *tedErrorDir, *reconstructionDir); err != nil {
			log.Fatal().Err(err).Msg("failed to write error files")
		}
	}

	if *plotFile != "" {
		line, err := report.SingleLine()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to render single-line report")
		}
		if err := appendLine(*plotFile, line); err != nil {
			log.Fatal().Err(err).Msg("failed to append to plot file")
		}
	}
}

// writeErrorFiles writes the per-label error listings next to the corrected
// reconstruction: one file each for splits and merges, plus false positives
// and false negatives when background handling is on.
func writeErrorFiles(report *evaluation.ErrorReport, dir, reconstructionDir string) error {
	errs, err := report.Errors()
	if errors.Is(err, evaluation.ErrNoSuchOutput) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := writeListing(reportPath(dir, reconstructionDir, "splits"), errs.WriteSplits); err != nil {
		return err
	}
	if err := writeListing(reportPath(dir, reconstructionDir, "merges"), errs.WriteMerges); err != nil {
		return err
	}

	if errs.HasBackgroundLabel() {
		if err := writeListing(reportPath(dir, reconstructionDir, "fps"), errs.WriteFalsePositives); err != nil {
			return err
		}
		if err := writeListing(reportPath(dir, reconstructionDir, "fns"), errs.WriteFalseNegatives); err != nil {
			return err
		}
	}

	return nil
}

func writeListing(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}

// reportPath builds "<dir>/<reconstruction stem>.<type>.data".
func reportPath(dir, reconstructionDir, kind string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.data", stem(reconstructionDir), kind))
}

func stem(path string) string {
	base := filepath.Base(filepath.Clean(path))
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

func appendLine(path, line string) error {
	if path == "" {
		_, err := fmt.Println(line)
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}

// pick returns the flag value when the flag was given explicitly, the
// configuration value otherwise.
func pick(flagSet bool, flagVal, cfgVal bool) bool {
	if flagSet {
		return flagVal
	}
	return cfgVal
}
