package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"fathom/internal/launch"
	"fathom/internal/observ"
	"fathom/internal/traceout"
)

var summaryTop int

func init() {
	summaryCmd.Flags().IntVar(&summaryTop, "top", 0, "show only the top N names by total time (0 = all)")
}

var summaryCmd = &cobra.Command{
	Use:   "summary <trace.ftrace>...",
	Short: "Aggregate per-name timing statistics from binary traces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupColor(cmd)
		timer := observ.NewTimer()

		phase := timer.Begin("load")
		loaded := make([][]traceout.Record, len(args))
		g, _ := launch.WithContext(cmd.Context())
		for i, path := range args {
			g.Go(func() error {
				records, err := traceout.LoadBinary(path)
				if err != nil {
					return err
				}
				loaded[i] = records
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		timer.End(phase, fmt.Sprintf("%d files", len(args)))

		phase = timer.Begin("aggregate")
		var all []traceout.Record
		for _, records := range loaded {
			all = append(all, records...)
		}
		stats := traceout.Summarize(all)
		if summaryTop > 0 && len(stats) > summaryTop {
			stats = stats[:summaryTop]
		}
		timer.End(phase, "")

		printSummaryTable(cmd, stats, len(all))
		if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
		return nil
	},
}

func printSummaryTable(cmd *cobra.Command, stats []traceout.Stat, total int) {
	out := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintln(out, "no completed ranges in input")
		return
	}

	nameWidth := 20
	for _, st := range stats {
		if w := runewidth.StringWidth(st.Name); w > nameWidth {
			nameWidth = w
		}
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(out, "%-*s %8s %14s %12s %12s\n",
		nameWidth, "name", "count", "total (us)", "avg (us)", "max (us)")
	for _, st := range stats {
		fmt.Fprintf(out, "%-*s %8d %14.1f %12.1f %12.1f\n",
			nameWidth, st.Name, st.Count, st.TotalUS, st.AvgUS, st.MaxUS)
	}

	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	if !quiet {
		dim := color.New(color.Faint)
		dim.Fprintf(out, "%d records, %d distinct names\n", total, len(stats))
	}
}
