package pipeline

import (
	"context"
	"fmt"
	"time"

	"bggstats/internal/boardgame"
	"bggstats/internal/components/telemetry"
	"bggstats/internal/export"
	"bggstats/internal/scrapers/bgg"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("bggstats/pipeline")

const (
	report_crawl_fetched        = "crawl.fetched"
	report_ownership_fetched    = "ownership.fetched"
	report_merge_total          = "merge.total"
	report_stats_updated        = "stats.updated"
	report_stats_failed_batches = "stats.failed-batches"
	report_export_games         = "export.games"
	report_pipeline_run         = "pipeline.run"
)

// Result holds the count of every phase of a run.
type Result struct {
	Crawled       int
	Owned         int
	OwnedNew      int
	Total         int
	Batches       int
	FailedBatches int
	Updated       int
	WithPolls     int
	Format        export.Format
	Path          string
	Elapsed       time.Duration
}

// Run crawls the catalog, fetches the user's collection, merges both, enriches the
// merged set with statistics and writes the artifact. Failed catalog pages and
// statistics batches only reduce the output, failing to fetch the collection or to
// write the artifact ends the run with an error.
func Run(ctx context.Context, cfg Config) (Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()

	err := cfg.Validate()
	if err != nil {
		return Result{}, err
	}

	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	tel = telemetry.NewScopedAPI("pipeline", tel)

	opts := cfg.Session
	opts.Workers = cfg.Workers
	if opts.Telemetry == nil {
		opts.Telemetry = cfg.Telemetry
	}
	session, err := bgg.NewSession(opts)
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}

	start := time.Now()
	res := Result{Format: cfg.OutputType}

	crawled, err := session.Crawl(ctx, cfg.Fetch)
	if err != nil {
		return res, err
	}
	// pages can shift while the crawl runs, so the same game may be listed twice
	games := boardgame.NewGames(crawled...)
	if dupes := len(crawled) - games.Len(); dupes > 0 {
		tel.ReportWarning(report_pipeline_run, fmt.Errorf("%d games were listed more than once", dupes))
	}
	res.Crawled = games.Len()
	tel.ReportCount(report_crawl_fetched, int64(res.Crawled))

	owned, err := session.FetchOwned(ctx, cfg.Username)
	if err != nil {
		tel.ReportBroken(report_pipeline_run, err, cfg.Username)
		return res, fmt.Errorf("fetch collection of %s: %w", cfg.Username, err)
	}
	res.Owned = len(owned)
	tel.ReportCount(report_ownership_fetched, int64(res.Owned))

	games = boardgame.Merge(games, owned)
	res.Total = games.Len()
	res.OwnedNew = res.Total - res.Crawled
	tel.ReportCount(report_merge_total, int64(res.Total))

	stats, err := session.FetchStats(ctx, games, cfg.BatchSize)
	if err != nil {
		return res, err
	}
	res.Batches = stats.Batches
	res.FailedBatches = stats.FailedBatches
	res.Updated = stats.Updated
	for _, recs := range stats.Recommendations {
		if len(recs) > 0 {
			res.WithPolls++
		}
	}
	tel.ReportCount(report_stats_updated, int64(res.Updated))
	tel.ReportCount(report_stats_failed_batches, int64(res.FailedBatches))
	if res.FailedBatches > 0 {
		tel.ReportWarning(report_pipeline_run, fmt.Errorf("%d of %d statistics batches failed", res.FailedBatches, res.Batches))
	}

	res.Path = export.ResolveFilename(cfg.Output, cfg.OutputType)
	err = export.Write(ctx, cfg.OutputType, res.Path, games, stats.Recommendations)
	if err != nil {
		tel.ReportBroken(report_pipeline_run, err, res.Path)
		return res, fmt.Errorf("write %s: %w", res.Path, err)
	}
	tel.ReportCount(report_export_games, int64(res.Total))

	res.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("games", res.Total),
		attribute.Int("failed_batches", res.FailedBatches),
		attribute.String("path", res.Path),
	)
	return res, nil
}
