package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/config"
	"fetalbrainqc/pkg/dicomio"
	"fetalbrainqc/pkg/foldername"
	"fetalbrainqc/pkg/report"
)

// ErrMasterNotFound is returned when the master folder does not exist
var ErrMasterNotFound = errors.New("master folder does not exist")

// FolderError records a case folder that could not be summarized
type FolderError struct {
	Name string
	Err  error
}

// RunResult is the outcome of one pass over a master folder
type RunResult struct {
	// Summaries holds the folders that were scored, in directory order
	Summaries []*models.FolderSummary

	// Failed holds the folders skipped because no file could be scored
	Failed []FolderError

	ReportPath        string
	PerFileReportPath string
	Plots             []string
	Stats             report.Statistics
}

// Renamed counts the folders that were actually renamed
func (r *RunResult) Renamed() int {
	n := 0
	for _, s := range r.Summaries {
		if s.Renamed {
			n++
		}
	}
	return n
}

// Runner scores every case folder of a master folder and renames it
type Runner struct {
	cfg      *config.Config
	analyzer *Analyzer
	out      io.Writer
}

// NewRunner creates a runner printing its progress to stdout
func NewRunner(cfg *config.Config, reader dicomio.Reader) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{
		cfg:      cfg,
		analyzer: NewAnalyzer(cfg, reader),
		out:      os.Stdout,
	}
}

// SetOutput redirects the progress output
func (r *Runner) SetOutput(w io.Writer) {
	r.out = w
}

// Run processes every case folder below master one at a time. In dry-run
// mode the new names are decided and reported but nothing is renamed.
// Reports are written into master when at least one folder was scored.
func (r *Runner) Run(master string, dryRun bool) (*RunResult, error) {
	info, err := os.Stat(master)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMasterNotFound, master)
	}

	entries, err := os.ReadDir(master)
	if err != nil {
		return nil, fmt.Errorf("error reading master folder: %w", err)
	}

	fmt.Fprintf(r.out, "Analyzing fetal brain folders in: %s\n", master)
	fmt.Fprintf(r.out, "Dry run mode: %t\n", dryRun)
	fmt.Fprintln(r.out, strings.Repeat("-", 80))

	result := &RunResult{}
	startTime := time.Now()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if r.cfg.Processing.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}

		fmt.Fprintf(r.out, "Processing: %s\n", name)
		summary, err := r.analyzer.AnalyzeFolder(filepath.Join(master, name))
		if err != nil {
			fmt.Fprintf(r.out, "  Error: %v\n", err)
			result.Failed = append(result.Failed, FolderError{Name: name, Err: err})
			continue
		}

		r.renameFolder(master, summary, dryRun)
		result.Summaries = append(result.Summaries, summary)
		fmt.Fprintln(r.out)
	}

	if len(result.Summaries) == 0 {
		fmt.Fprintln(r.out, "No folders were scored")
		return result, nil
	}

	result.ReportPath = filepath.Join(master, r.cfg.Output.ReportName)
	if r.cfg.Output.PerFileReportName != "" {
		result.PerFileReportPath = filepath.Join(master, r.cfg.Output.PerFileReportName)
	}
	if err := report.WriteReports(result.ReportPath, result.PerFileReportPath, result.Summaries); err != nil {
		return result, err
	}
	fmt.Fprintf(r.out, "Detailed results saved to: %s\n", result.ReportPath)
	if result.PerFileReportPath != "" {
		fmt.Fprintf(r.out, "Per-file scores saved to: %s\n", result.PerFileReportPath)
	}

	result.Stats = report.Summarize(result.Summaries)
	result.Stats.Print(r.out)

	if r.cfg.Output.Plot {
		plots, err := report.SavePlots(master, result.Summaries)
		result.Plots = plots
		if err != nil {
			fmt.Fprintf(r.out, "Warning: Failed to save plots: %v\n", err)
		} else {
			fmt.Fprintf(r.out, "\nSaved %d charts to %s\n", len(plots), master)
		}
	}

	if r.cfg.Output.Verbose {
		fmt.Fprintf(r.out, "\nProcessed %d folders (%d skipped, %d renamed) in %.2f seconds\n",
			len(result.Summaries), len(result.Failed), result.Renamed(), time.Since(startTime).Seconds())
	}
	return result, nil
}

// renameFolder decides the new name of a summarized folder and, unless
// dryRun is set, renames it. The decided name is recorded either way.
func (r *Runner) renameFolder(master string, s *models.FolderSummary, dryRun bool) {
	s.OriginalName = s.FolderName
	s.NewName = foldername.BuildName(s.BestScore, s.BestQualityClass, s.FetalOrientation,
		s.OrientationConfidence, s.FolderName)

	fmt.Fprintf(r.out, "  Quality Score: %d/100 (%s)\n", s.BestScore, s.BestQualityClass)
	fmt.Fprintf(r.out, "  Fetal Orientation: %s (confidence: %.2f)\n", s.FetalOrientation, s.OrientationConfidence)
	fmt.Fprintf(r.out, "  Maternal Acquisition: %s\n", s.MaternalAcquisitionPlane)
	if r.cfg.Output.Verbose {
		fmt.Fprintf(r.out, "  Files: %d valid of %d, average score %.1f\n", s.ValidDicoms, s.TotalDicoms, s.AvgScore)
	}
	fmt.Fprintf(r.out, "  Current: %s\n", s.FolderName)
	fmt.Fprintf(r.out, "  New:     %s\n", s.NewName)

	if dryRun {
		fmt.Fprintln(r.out, "  Dry run - no changes made")
		return
	}

	if err := foldername.Rename(master, s.FolderName, s.NewName); err != nil {
		s.RenameError = err.Error()
		fmt.Fprintf(r.out, "  Rename failed: %v\n", err)
		return
	}
	s.Renamed = true
	fmt.Fprintln(r.out, "  Renamed successfully")
}
