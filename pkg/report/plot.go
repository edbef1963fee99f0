package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"fetalbrainqc/internal/models"
)

// Chart file names written by SavePlots
const (
	QualityPlotName     = "quality_distribution.png"
	OrientationPlotName = "orientation_distribution.png"
	ScorePlotName       = "best_score_histogram.png"
)

// SavePlots writes bar charts of the quality class and fetal orientation
// distributions and a histogram of best scores into dir. It returns the paths
// written.
func SavePlots(dir string, summaries []*models.FolderSummary) ([]string, error) {
	if len(summaries) == 0 {
		return nil, nil
	}
	stats := Summarize(summaries)

	charts := []struct {
		name   string
		title  string
		counts []Count
	}{
		{QualityPlotName, "Best quality class per folder", stats.QualityDistribution},
		{OrientationPlotName, "Fetal orientation per folder", stats.OrientationDistribution},
		{ScorePlotName, "Best composite score per folder", ScoreBins(summaries, 10)},
	}

	var written []string
	for _, c := range charts {
		path := filepath.Join(dir, c.name)
		if err := saveBarChart(path, c.title, c.counts); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", c.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ScoreBins groups best scores into bins of the given width covering 0..100.
// The last bin also holds the score 100.
func ScoreBins(summaries []*models.FolderSummary, width int) []Count {
	if width < 1 {
		width = 10
	}
	n := (100 + width - 1) / width
	bins := make([]Count, n)
	for i := range bins {
		lo := i * width
		hi := min(lo+width-1, 100)
		if i == n-1 {
			hi = 100
		}
		bins[i].Value = fmt.Sprintf("%d-%d", lo, hi)
	}
	for _, s := range summaries {
		i := min(max(s.BestScore, 0)/width, n-1)
		bins[i].Count++
	}
	return bins
}

func saveBarChart(path, title string, counts []Count) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Folders"
	p.Y.Min = 0

	values := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
		labels[i] = c.Value
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return err
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	p.Add(bars)
	p.NominalX(labels...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
