package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/k1networth/stepflow/internal/app"
	"github.com/k1networth/stepflow/internal/shared/config"
	"github.com/k1networth/stepflow/internal/shared/logger"
)

func newRunCmd() *cobra.Command {
	var (
		f           workflowFlags
		sqlitePath  string
		verbose     bool
		stepTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow end to end in this process",
		Long: `Run wires the orchestrator and the worker together in one process and runs a workflow
to completion. State is kept in memory unless --sqlite is given.`,
		Example: `  stepflowctl run --workflow-id wf-1 --inputs '{"step_type":"math.add","a":10,"b":50}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := f.data()
			if err != nil {
				return err
			}
			if data.WorkflowID == "" {
				data.WorkflowID = uuid.NewString()
			}
			correlationID := f.correlationID
			if correlationID == "" {
				correlationID = uuid.NewString()
			}

			var logOut io.Writer = io.Discard
			if verbose {
				logOut = os.Stderr
			}
			log := logger.NewWithLevel(logOut, "stepflowctl", "cli", "debug")

			storage, err := openRunStorage(cmd.Context(), log, sqlitePath)
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			p := app.NewInProcess(log, storage.Repo, app.Options{HTTPStepTimeout: stepTimeout})
			st, err := p.Start(cmd.Context(), correlationID, data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "persist state to this sqlite file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "write logs to stderr")
	cmd.Flags().DurationVar(&stepTimeout, "http-step-timeout", 30*time.Second, "timeout for http.request steps")
	return cmd
}

func openRunStorage(ctx context.Context, log *slog.Logger, sqlitePath string) (*app.Storage, error) {
	cfg := config.Config{Repository: "memory"}
	if sqlitePath != "" {
		cfg = config.Config{Repository: "sqlite", SQLitePath: sqlitePath}
	}
	return app.OpenStorage(ctx, log, cfg)
}
