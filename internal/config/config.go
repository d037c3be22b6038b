package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tnminh/revenue-pipeline/internal/logger"
)

// Config is the full application configuration, loaded from config.yaml
// with REVPIPE_* environment overrides.
type Config struct {
	Inputs   InputsConfig   `mapstructure:"inputs"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	Report   ReportConfig   `mapstructure:"report"`
	Cashback CashbackConfig `mapstructure:"cashback"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Insights InsightsConfig `mapstructure:"insights"`
}

// InputsConfig names the three raw source tables. Each may be a local
// path or a gs:// URI.
type InputsConfig struct {
	Transactions string `mapstructure:"transactions"`
	Commission   string `mapstructure:"commission"`
	UserInfo     string `mapstructure:"user_info"`
}

// OutputConfig controls where the cleaned, merged and summary tables are
// written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ToLoggerOptions converts to logger options.
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{Level: c.Level, Pretty: c.Pretty}
}

// ReportConfig tunes the aggregate summaries.
type ReportConfig struct {
	// TopN bounds the top-spender and most-active-user rankings.
	TopN int `mapstructure:"top_n"`
}

// CashbackConfig describes the cashback scenario: the flat percentage
// currently paid on every covered merchant's transactions, and the
// proposed per-merchant percentages keyed by merchant name.
type CashbackConfig struct {
	CurrentFlatPct float64            `mapstructure:"current_flat_pct"`
	MerchantRates  map[string]float64 `mapstructure:"merchant_rates"`
}

// GCSConfig names the bucket that published artifacts are uploaded to.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// BigQueryConfig controls warehouse publication of the merged table.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	Table     string `mapstructure:"table"`
}

// InsightsConfig configures the narrative report generator.
type InsightsConfig struct {
	Model string `mapstructure:"model"`
}

// Load reads config.yaml from the working directory (or ./etc), applies
// defaults and environment overrides, and unmarshals into Config. A
// missing config file is not an error: every setting has a usable default
// except the input locations, which the CLI requires via flags or config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./etc")

	v.SetEnvPrefix("REVPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output.dir", "data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("report.top_n", 5)
	v.SetDefault("cashback.current_flat_pct", 1.0)
	// The telco cashback schedule under evaluation.
	v.SetDefault("cashback.merchant_rates", map[string]float64{
		"Viettel":      2,
		"Mobifone":     2.5,
		"Vinaphone":    3,
		"Vietnamobile": 3,
		"Gmobile":      3,
	})
	v.SetDefault("bigquery.table", "master_merged")
	v.SetDefault("insights.model", "gemini-2.5-flash")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.Load: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	return &cfg, nil
}
