package commands

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"bggstats/internal/pipeline"
	"bggstats/lib/restyutil"
	"bggstats/lib/telemetry"
	"bggstats/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var fetch fetchFlags

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Crawl the top rated games, mark the owned ones and write their player count data.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(fetch.configPath)
		if err != nil {
			return err
		}
		fetch.apply(cmd.Flags(), &config)

		cfg, err := config.pipelineConfig()
		if err != nil {
			return err
		}
		if fetch.httpDump != "" {
			out, err := restyutil.NewFilesystemOutput(fetch.httpDump)
			if err != nil {
				return err
			}
			cfg.Session.HttpDump = out
		}

		ctx := cmd.Context()
		tel, err := telemetry.Setup(ctx, "bggstats", telemetry.Config{Otlp: config.Otlp})
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := tel.Shutdown(ctx)
			if err != nil {
				slog.Warn("failed to flush traces", "err", err)
			}
		}()

		res, err := pipeline.Run(ctx, cfg)
		if err != nil {
			return err
		}
		renderResult(cmd, res)
		return nil
	},
}

func renderResult(cmd *cobra.Command, res pipeline.Result) {
	t := newTable(cmd)
	t.AppendHeader(table.Row{"Phase", "Count"})
	t.AppendRows([]table.Row{
		{"Crawled", res.Crawled},
		{"Owned", res.Owned},
		{"Owned outside the crawl", res.OwnedNew},
		{"Total", res.Total},
		{"Batches", strconv.Itoa(res.FailedBatches) + " failed of " + strconv.Itoa(res.Batches)},
		{"Updated", res.Updated},
		{"With player count votes", res.WithPolls},
	})
	t.AppendFooter(table.Row{res.Format, res.Path})
	t.Render()
	slog.Info("done", "elapsed", res.Elapsed.Round(time.Millisecond))
}

func init() {
	fetch.register(fetchCmd.Flags())
	rootCmd.AddCommand(fetchCmd)
}
