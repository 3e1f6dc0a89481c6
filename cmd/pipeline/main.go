package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"londonsqft/server/config"
	"londonsqft/server/internal/database"
	"londonsqft/server/internal/models"
	"londonsqft/server/internal/pipeline"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "London price per square foot pipeline",
		Long:          `Links Land Registry sales to EPC floor areas and publishes median price per square foot by postcode district`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createMapCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and opens the staging database
func setup() (*config.Config, *database.Database, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cfg.NewLogger()

	db, err := database.NewDatabase(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.Paths.DatabasePath, err)
	}
	return cfg, db, logger, nil
}

func createRunCmd() *cobra.Command {
	var force bool
	var forceStages []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage that has not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{Force: force}
			for _, name := range forceStages {
				stage, ok := models.ParseStage(name)
				if !ok {
					return fmt.Errorf("unknown stage %q", name)
				}
				opts.ForceStages = append(opts.ForceStages, stage)
			}

			cfg, db, logger, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := pipeline.New(cfg, db, logger).Run(ctx, opts)
			if summary != nil {
				printReports(summary.Stages)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "rerun every stage")
	cmd.Flags().StringSliceVar(&forceStages, "force-stage", nil, "rerun the named stage and everything after it")
	return cmd
}

func createStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored status of every stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := db.GetStageStatuses()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tSTATE\tREAD\tSKIPPED\tWRITTEN\tUPDATED")
			for _, s := range statuses {
				updated := "-"
				if !s.UpdatedAt.IsZero() {
					updated = s.UpdatedAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", s.Stage, s.State, s.RowsRead, s.RowsSkipped, s.RowsWritten, updated)
			}
			return w.Flush()
		},
	}
}

func createMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Join district statistics onto boundary polygons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, logger, err := setup()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := pipeline.New(cfg, db, logger).ExportMap()
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d districts to %s\n", n, cfg.Paths.MapOutputPath)
			return nil
		},
	}
}

func printReports(reports []pipeline.StageReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tOUTCOME\tREAD\tSKIPPED\tWRITTEN\tERROR")
	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Stage, r.Outcome, r.Status.RowsRead, r.Status.RowsSkipped, r.Status.RowsWritten, errText)
	}
	w.Flush()
}
