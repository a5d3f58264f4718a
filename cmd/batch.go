package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/spotmarket/core/inputs"
)

var (
	batchOut     outputFlags
	batchWorkers int
	batchCarry   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <documents>",
	Short: "Clear a list of interval documents",
	Long: "Clear every document of a YAML or JSON list. Intervals run in parallel " +
		"unless --carry feeds each energy dispatch into the next interval's ramp limits.",
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchOut.register(batchCmd)
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "parallel solves, overrides the configuration")
	batchCmd.Flags().BoolVar(&batchCarry, "carry", false, "carry energy dispatch into the next interval")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = batchWorkers
	}
	if cmd.Flags().Changed("carry") {
		cfg.Batch.CarryInitialOutput = batchCarry
	}
	if err := cfg.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	docs, err := inputs.LoadBatch(args[0])
	if err != nil {
		return err
	}
	st, err := newStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := st.runner()
	if err != nil {
		return err
	}
	rep, runErr := runner.Run(ctx, docs)
	if err := batchOut.write(cmd, rep.Results); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if rep.Failed > 0 {
		return fmt.Errorf("batch %s: %d of %d intervals failed", rep.RunID, rep.Failed, len(rep.Results))
	}
	return nil
}
