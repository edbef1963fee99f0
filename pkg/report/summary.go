package report

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"

	"fetalbrainqc/internal/models"
)

// Count is one entry of a value distribution
type Count struct {
	Value string
	Count int
}

// Statistics summarizes a whole run over the successfully scored folders
type Statistics struct {
	FoldersProcessed int
	AverageBestScore float64

	QualityDistribution     []Count
	OrientationDistribution []Count
	MaternalDistribution    []Count
}

// Summarize computes the run statistics. Distributions are ordered by count,
// highest first, with ties kept in order of first appearance.
func Summarize(summaries []*models.FolderSummary) Statistics {
	stats := Statistics{FoldersProcessed: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}

	scores := make([]float64, len(summaries))
	quality := make([]string, len(summaries))
	orientation := make([]string, len(summaries))
	maternal := make([]string, len(summaries))
	for i, s := range summaries {
		scores[i] = float64(s.BestScore)
		quality[i] = string(s.BestQualityClass)
		orientation[i] = s.FetalOrientation
		maternal[i] = s.MaternalAcquisitionPlane
	}

	stats.AverageBestScore = stat.Mean(scores, nil)
	stats.QualityDistribution = Distribution(quality)
	stats.OrientationDistribution = Distribution(orientation)
	stats.MaternalDistribution = Distribution(maternal)
	return stats
}

// Distribution counts the values, ordered by count descending and then by
// first appearance.
func Distribution(values []string) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, v := range values {
		i, ok := index[v]
		if !ok {
			i = len(counts)
			index[v] = i
			counts = append(counts, Count{Value: v})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts
}

// Print writes the statistics in the console layout of the scorer
func (s Statistics) Print(w io.Writer) {
	fmt.Fprintln(w, "\nSUMMARY STATISTICS:")
	fmt.Fprintf(w, "Total folders processed: %d\n", s.FoldersProcessed)
	fmt.Fprintf(w, "Average quality score: %.1f\n", s.AverageBestScore)

	printDistribution(w, "Quality distribution", s.QualityDistribution)
	printDistribution(w, "Fetal orientation distribution", s.OrientationDistribution)
	printDistribution(w, "Maternal acquisition plane distribution", s.MaternalDistribution)
}

func printDistribution(w io.Writer, title string, counts []Count) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %s: %d folders\n", c.Value, c.Count)
	}
}
