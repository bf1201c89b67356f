package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Log      LogConfig      `mapstructure:"log"`
}

// HarvestConfig controls the tid walk. Limit and Through of 0 mean run until
// interrupted.
type HarvestConfig struct {
	Start   int    `mapstructure:"start"`
	Limit   int    `mapstructure:"limit"`
	Through int    `mapstructure:"through"`
	Url     string `mapstructure:"url"`
	Out     string `mapstructure:"out"`
}

// CacheConfig controls colly's on-disk web cache. harvest bypasses it
// unless Harvest is set.
type CacheConfig struct {
	Dir      string `mapstructure:"dir"`
	Disabled bool   `mapstructure:"disabled"`
	Harvest  bool   `mapstructure:"harvest"`
}

// SqliteConfig enables the sqlite mirror when Path is set.
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// BigQueryConfig enables the BigQuery mirror when Project is set.
type BigQueryConfig struct {
	Project   string `mapstructure:"project"`
	Dataset   string `mapstructure:"dataset"`
	BatchSize int    `mapstructure:"batch_size"`
}

// PubSubConfig enables the finished-harvest event when Topic is set.
type PubSubConfig struct {
	Project string `mapstructure:"project"`
	Topic   string `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults, the optional rmpscrape.yaml
// and RMPSCRAPE_* environment variables wired up.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("rmpscrape")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RMPSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("harvest.start", 23330069)
	v.SetDefault("harvest.limit", 0)
	v.SetDefault("harvest.through", 0)
	v.SetDefault("harvest.url", "http://www.ratemyprofessors.com/ShowRatings.jsp?tid=%d")
	v.SetDefault("harvest.out", "professors.csv")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.disabled", false)
	v.SetDefault("cache.harvest", false)
	v.SetDefault("sqlite.path", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "rmpscrape")
	v.SetDefault("bigquery.batch_size", 500)
	v.SetDefault("pubsub.project", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	return v
}

// Load reads the config file named by file (or rmpscrape.yaml in the working
// directory, if present) and decodes v.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger installs the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
