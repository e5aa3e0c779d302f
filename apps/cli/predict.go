package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/trezcool/alama/core/prediction"
)

func (cli *commandLine) predict(in prediction.Input) error {
	// drop any stale result before a new run
	cli.predictions.ClearCurrent()

	rec, err := cli.predictions.Submit(context.Background(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Predicted performance: %s (%.0f%% confidence)\n", rec.Prediction, rec.Confidence*100)
	return nil
}

func (cli *commandLine) history() error {
	if err := cli.predictions.FetchHistory(context.Background()); err != nil {
		return err
	}
	records := cli.predictions.State().Predictions
	if len(records) == 0 {
		fmt.Fprintln(cli.out, "No predictions yet.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(cli.out, "%-26s %-6s %.0f%%\n", rec.Timestamp, rec.Prediction, rec.Confidence*100)
	}
	return nil
}

func (cli *commandLine) stats() error {
	if err := cli.predictions.FetchStats(context.Background()); err != nil {
		return err
	}
	stats := cli.predictions.State().Stats
	fmt.Fprintf(cli.out, "Total predictions:  %d\n", stats.TotalPredictions)
	fmt.Fprintf(cli.out, "Average confidence: %.0f%%\n", stats.AverageConfidence*100)
	for _, label := range sortedLabels(stats.PerformanceDistribution) {
		fmt.Fprintf(cli.out, "  %-6s %d\n", label, stats.PerformanceDistribution[label])
	}
	return nil
}

func (cli *commandLine) dashboard() error {
	ctx := context.Background()
	if err := cli.predictions.FetchStats(ctx); err != nil {
		return err
	}
	if err := cli.predictions.FetchHistory(ctx); err != nil {
		return err
	}

	st := cli.predictions.State()
	fmt.Fprintf(cli.out, "Total predictions:  %d\n", st.Stats.TotalPredictions)
	fmt.Fprintf(cli.out, "Average confidence: %.0f%%\n", st.Stats.AverageConfidence*100)
	fmt.Fprintf(cli.out, "Most common:        %s\n", mostCommonLabel(st.Stats.PerformanceDistribution))

	if len(st.Predictions) > 0 {
		fmt.Fprintln(cli.out, "Recent:")
		recent := st.Predictions
		if len(recent) > 5 {
			recent = recent[:5]
		}
		for _, rec := range recent {
			fmt.Fprintf(cli.out, "  %-26s %-6s %.0f%%\n", rec.Timestamp, rec.Prediction, rec.Confidence*100)
		}
	}
	return nil
}

// mostCommonLabel picks the label with the highest count; ties go to
// the first label in sorted order so the output is stable.
func mostCommonLabel(distribution map[string]int) string {
	if len(distribution) == 0 {
		return "None"
	}
	best := ""
	for _, label := range sortedLabels(distribution) {
		if best == "" || distribution[label] > distribution[best] {
			best = label
		}
	}
	return best
}

func sortedLabels(distribution map[string]int) []string {
	labels := make([]string, 0, len(distribution))
	for label := range distribution {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
