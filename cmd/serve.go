package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/spotmarket/infra/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatch HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := loadConfig()
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
	srv, err := api.NewServer(cfg.API, runner, st.journal, st.log)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
