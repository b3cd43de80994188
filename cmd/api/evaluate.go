package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/PratikDhanave/driving-alerts/internal/engine"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one evaluation cycle against the configured store and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return evaluateOnce(ctx, a.engine, cmd.OutOrStdout())
	},
}

// evaluateOnce runs a manual cycle and writes its report as indented JSON.
// It fails when any category could not be evaluated.
func evaluateOnce(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	report := eng.RunCycle(ctx, engine.TriggerManual)

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d categories failed to evaluate", len(failed))
	}
	return nil
}
