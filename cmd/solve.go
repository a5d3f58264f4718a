package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/spotmarket/core/batch"
	"github.com/kilianp07/spotmarket/core/inputs"
	"github.com/kilianp07/spotmarket/core/linear"
	"github.com/kilianp07/spotmarket/core/market"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/pkg/export"
)

type outputFlags struct {
	format string
	table  string
	places int32
	output string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "json", "output format: json or csv")
	cmd.Flags().StringVar(&o.table, "table", string(export.Prices), "csv table: prices, dispatch or interconnectors")
	cmd.Flags().Int32Var(&o.places, "places", export.DefaultPlaces, "decimal places in the output")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file, stdout when empty")
}

func (o *outputFlags) write(cmd *cobra.Command, results []model.DispatchResult) error {
	var w io.Writer = cmd.OutOrStdout()
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return export.Write(w, o.format, export.Table(o.table), results, o.places)
}

var (
	solveOut outputFlags
	mpsPath  string
)

var solveCmd = &cobra.Command{
	Use:   "solve <document>",
	Short: "Clear a single interval document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSolve,
}

func init() {
	solveOut.register(solveCmd)
	solveCmd.Flags().StringVar(&mpsPath, "mps", "", "write the assembled model in MPS format instead of solving")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := inputs.Load(args[0])
	if err != nil {
		return err
	}
	st, err := newStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	interval := doc.Interval
	if interval == "" {
		interval = args[0]
	}
	m, err := market.New(st.solver, st.log, append(cfg.Market.Options(), market.WithInterval(interval))...)
	if err != nil {
		return err
	}
	if err := doc.Apply(m); err != nil {
		return err
	}
	if mpsPath != "" {
		return writeMPS(cmd.OutOrStdout(), m, interval, mpsPath)
	}

	res, solveErr := dispatch(ctx, m, cfg.Solver.Timeout())
	if solveErr != nil {
		res = model.DispatchResult{
			Interval: interval,
			Status:   batch.Status(solveErr),
			Error:    solveErr.Error(),
			SolvedAt: time.Now().UTC(),
		}
	}
	results := []model.DispatchResult{res}
	if err := st.sink.RecordDispatchResult(results); err != nil {
		st.log.Warnf("record result: %v", err)
	}
	if err := solveOut.write(cmd, results); err != nil {
		return err
	}
	if solveErr != nil {
		return fmt.Errorf("interval %s: %w", interval, solveErr)
	}
	return nil
}

func dispatch(ctx context.Context, m *market.SpotMarket, timeout time.Duration) (model.DispatchResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := m.Dispatch(ctx); err != nil {
		return model.DispatchResult{}, err
	}
	return m.Result()
}

func writeMPS(stdout io.Writer, m *market.SpotMarket, name, path string) error {
	lp, err := m.Assemble()
	if err != nil {
		return err
	}
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return linear.WriteMPS(w, name, lp)
}
