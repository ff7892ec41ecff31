package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"fathom/internal/devtime"
	"fathom/internal/hook"
	"fathom/internal/launch"
	"fathom/internal/profiler"
	"fathom/internal/traceout"
)

var (
	recordConfig  string
	recordMode    string
	recordShapes  bool
	recordOutput  string
	recordSteps   int
	recordWorkers int
	recordDevices int
)

func init() {
	recordCmd.Flags().StringVar(&recordConfig, "config", "", "read profiler settings from a fathom.toml")
	recordCmd.Flags().StringVar(&recordMode, "mode", "cpu", "recording mode (cpu|cuda|nvtx)")
	recordCmd.Flags().BoolVar(&recordShapes, "shapes", false, "record input shapes")
	recordCmd.Flags().StringVar(&recordOutput, "output", "trace.json", "output path (.json for trace viewer, .ftrace for binary)")
	recordCmd.Flags().IntVar(&recordSteps, "steps", 10, "synthetic workload steps")
	recordCmd.Flags().IntVar(&recordWorkers, "workers", 4, "concurrent workload tasks per step")
	recordCmd.Flags().IntVar(&recordDevices, "devices", 1, "simulated device count for cuda/nvtx modes")
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run the synthetic workload under the profiler and write a trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupColor(cmd)
		profCleanup, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		defer profCleanup()

		cfg := profiler.Config{ReportInputShapes: recordShapes}
		output := recordOutput
		if recordConfig != "" {
			fileCfg, fileOutput, err := profiler.LoadConfig(recordConfig)
			if err != nil {
				return err
			}
			cfg = fileCfg
			if fileOutput != "" {
				output = fileOutput
			}
		} else {
			cfg.State, err = profiler.ParseState(recordMode)
			if err != nil {
				return err
			}
		}
		if cfg.State == profiler.Disabled {
			return fmt.Errorf("nothing to record in mode %q", cfg.State)
		}

		// Device-timing modes run against the simulated backend; real
		// hardware backends register themselves the same way.
		if cfg.State != profiler.CPU {
			devtime.Register(devtime.NewSimBackend(recordDevices))
		}

		closer, err := traceout.StartRecording(profiler.Default(), cfg, nil, output)
		if err != nil {
			return err
		}
		if err := runWorkload(cmd.Context(), recordSteps, recordWorkers); err != nil {
			return err
		}
		if err := closer(); err != nil {
			return err
		}

		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %d steps to %s\n", recordSteps, output)
		}
		return nil
	},
}

// runWorkload exercises the instrumented scope kinds: a script-function
// frame per step, operator scopes with tensor inputs, and fan-out work
// spawned through launch so it inherits the session.
func runWorkload(ctx context.Context, steps, workers int) error {
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		step := hook.Begin(hook.KindScriptFunction, "train_step")
		profiler.MarkEvent(fmt.Sprintf("step_%d", i), false)

		g, _ := launch.WithContext(ctx)
		g.SetLimit(workers)
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				op := hook.Begin(hook.KindOperator, "matmul",
					hook.TensorInput(64, 64), hook.TensorInput(64, 64))
				spin(2000)
				op.End()

				op = hook.Begin(hook.KindOperator, "relu", hook.TensorInput(64, 64))
				spin(500)
				op.End()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			step.End()
			return err
		}
		step.End()
	}
	return nil
}

// spin burns a little deterministic CPU so ranges have nonzero width.
func spin(iters int) {
	x := 1.0
	for i := 0; i < iters; i++ {
		x = math.Sqrt(x + float64(i))
	}
	_ = x
}
