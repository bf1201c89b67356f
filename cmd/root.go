package cmd

import (
	"os"
	"path/filepath"

	"github.com/gocolly/colly/v2"
	"github.com/openswoop/rmpscrape/pkg/config"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	c   *colly.Collector
	v   = config.New()
	cfg *config.Config

	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rmpscrape",
	Short: "A tool for harvesting professor ratings into a CSV file",
	Long: `Walks professor ids (tids) on the ratings site one at a time and
appends every professor found to a CSV file. Pages that are missing or
cannot be parsed are skipped. The results can also be mirrored into a
local SQLite database or BigQuery.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = loaded

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		initColly(cfg.Cache)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./rmpscrape.yaml if present)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Bypass the web cache (default: false)")
	_ = v.BindPFlag("cache.disabled", rootCmd.PersistentFlags().Lookup("no-cache"))
}

func initColly(cache config.CacheConfig) {
	c = colly.NewCollector()
	c.AllowURLRevisit = true
	if cache.Disabled {
		return
	}
	if cache.Dir != "" {
		c.CacheDir = cache.Dir
	} else if userCacheDir, err := os.UserCacheDir(); err == nil {
		c.CacheDir = filepath.Join(userCacheDir, "rmpscrape", "web-cache")
	}
}
