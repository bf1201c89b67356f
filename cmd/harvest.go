package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub"
	"github.com/gocolly/colly/v2"
	"github.com/openswoop/rmpscrape/pkg/database"
	"github.com/openswoop/rmpscrape/pkg/harvest"
	"github.com/openswoop/rmpscrape/pkg/notify"
	"github.com/openswoop/rmpscrape/pkg/report"
	"github.com/openswoop/rmpscrape/pkg/scrape"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Walk tids and append every professor found to a CSV file",
	Long: `Starting at --start, fetches each professor's ratings page in turn
and appends one row per professor to the CSV file. Missing or malformed
pages are logged and skipped. Without --limit the walk continues until
interrupted; an interrupt never leaves a partial row behind.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		csv, err := report.OpenCsv(cfg.Harvest.Out)
		if err != nil {
			return err
		}
		opts := []harvest.Option{harvest.WithStop(stopCondition())}

		mirrors, err := openMirrors()
		defer func() {
			for _, m := range mirrors {
				if err := m.Close(); err != nil {
					zap.L().Error("failed to close mirror", zap.Error(err))
				}
			}
		}()
		if err != nil {
			return err
		}
		for _, m := range mirrors {
			opts = append(opts, harvest.WithMirrors(m))
		}

		h := harvest.New(scrape.NewClient(harvestCollector(), cfg.Harvest.Url), csv, opts...)

		zap.L().Info("starting harvest",
			zap.Int("start", cfg.Harvest.Start),
			zap.String("out", csv.Path()))
		stats, err := h.Run(ctx, cfg.Harvest.Start)
		if errors.Is(err, context.Canceled) {
			zap.L().Info("harvest stopped", zap.Any("stats", stats))
			return nil
		} else if err != nil {
			return err
		}
		zap.L().Info("harvest finished", zap.Any("stats", stats))

		if cfg.PubSub.Topic == "" {
			return nil
		}
		return publishFinished(cmd.Context(), stats)
	},
}

// stopCondition bounds the walk by --limit and --through, whichever comes
// first. With neither set the walk runs until interrupted.
func stopCondition() harvest.StopCondition {
	var conds []harvest.StopCondition
	if cfg.Harvest.Limit > 0 {
		conds = append(conds, harvest.After(cfg.Harvest.Limit))
	}
	if cfg.Harvest.Through > 0 {
		conds = append(conds, harvest.Through(cfg.Harvest.Through))
	}
	if len(conds) == 0 {
		return harvest.Forever()
	}
	return harvest.Any(conds...)
}

// harvestCollector drops the web cache unless cache.harvest is set: cached
// error pages would otherwise skip a tid on every later run.
func harvestCollector() *colly.Collector {
	if cfg.Cache.Harvest {
		return c
	}
	hc := c.Clone()
	hc.CacheDir = ""
	return hc
}

// openMirrors opens every configured database. Mirrors opened before a
// failure are returned so the caller can close them.
func openMirrors() ([]database.Database, error) {
	var mirrors []database.Database
	if cfg.Sqlite.Path != "" {
		sqlite, err := database.NewSqlite(cfg.Sqlite.Path)
		if err != nil {
			return mirrors, err
		}
		mirrors = append(mirrors, sqlite)
	}
	if cfg.BigQuery.Project != "" {
		// Not tied to the interrupt so Close can still flush buffered rows
		bq, err := database.NewBigQuery(context.Background(), cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.BatchSize)
		if err != nil {
			return mirrors, eris.Wrap(err, "failed to connect to bigquery")
		}
		mirrors = append(mirrors, bq)
	}
	return mirrors, nil
}

func publishFinished(ctx context.Context, stats harvest.Stats) error {
	projectID := cfg.PubSub.Project
	if projectID == "" {
		projectID = cfg.BigQuery.Project
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return eris.Wrap(err, "failed to create pubsub client")
	}

	p := notify.NewPublisher(client, cfg.PubSub.Topic)
	defer p.Close()

	id, err := p.Finished(ctx, stats)
	if err != nil {
		return err
	}
	zap.L().Info("published harvest", zap.String("topic", cfg.PubSub.Topic), zap.String("id", id))
	return nil
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	flags := harvestCmd.Flags()
	flags.Int("start", 0, "First tid to fetch (default: 23330069)")
	flags.Int("limit", 0, "Stop after this many tids (default: run until interrupted)")
	flags.Int("through", 0, "Stop after this tid (default: run until interrupted)")
	flags.Bool("cache", false, "Read and write the web cache while harvesting (default: false)")
	flags.String("out", "", "CSV file to append to (default: professors.csv)")
	flags.String("url", "", "Page URL template with a %d for the tid")
	flags.String("sqlite", "", "Also mirror rows into this SQLite database")
	flags.String("bigquery-project", "", "Also merge rows into BigQuery in this project")
	flags.String("publish-topic", "", "Publish a Pub/Sub event when a bounded harvest finishes")

	for flag, key := range map[string]string{
		"start":            "harvest.start",
		"limit":            "harvest.limit",
		"through":          "harvest.through",
		"cache":            "cache.harvest",
		"out":              "harvest.out",
		"url":              "harvest.url",
		"sqlite":           "sqlite.path",
		"bigquery-project": "bigquery.project",
		"publish-topic":    "pubsub.topic",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}
