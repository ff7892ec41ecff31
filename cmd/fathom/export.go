package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fathom/internal/observ"
	"fathom/internal/traceout"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default: input with .json extension)")
}

var exportCmd = &cobra.Command{
	Use:   "export <trace.ftrace>",
	Short: "Convert a binary trace to Chrome trace-viewer JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupColor(cmd)
		timer := observ.NewTimer()

		input := args[0]
		phase := timer.Begin("load")
		records, err := traceout.LoadBinary(input)
		if err != nil {
			return err
		}
		timer.End(phase, fmt.Sprintf("%d records", len(records)))

		output := exportOutput
		if output == "" {
			output = strings.TrimSuffix(input, ".ftrace") + ".json"
		}
		phase = timer.Begin("write")
		if err := traceout.ExportChrome(output, records); err != nil {
			return err
		}
		timer.End(phase, output)

		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(records), output)
		}
		if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
		return nil
	},
}
