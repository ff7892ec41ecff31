package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fathom/internal/traceout"
	"fathom/internal/ui"
)

var viewCmd = &cobra.Command{
	Use:   "view <trace.ftrace>",
	Short: "Browse a binary trace interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal(os.Stdout) {
			return fmt.Errorf("view needs a terminal; use 'fathom summary' for plain output")
		}

		records, err := traceout.LoadBinary(args[0])
		if err != nil {
			return err
		}

		model := ui.NewBrowserModel(args[0], records)
		program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithAltScreen())
		_, err = program.Run()
		return err
	},
}
