package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/domain"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Source    SourceConfig    `mapstructure:"source"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Currency  CurrencyConfig  `mapstructure:"currency"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Model     ModelConfig     `mapstructure:"model"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Server    ServerConfig    `mapstructure:"server"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Console bool   `mapstructure:"console"`
}

// SourceConfig describes where raw transaction files and the FX table live.
// With LocalOnly set, only DataDir is read and the bucket is never contacted.
type SourceConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	StartDate string `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	LocalOnly bool   `mapstructure:"local_only"`
}

type FeaturesConfig struct {
	Window            int      `mapstructure:"window" validate:"min=1"`
	Lags              []int    `mapstructure:"lags" validate:"min=1,dive,min=1"`
	ReportingCurrency string   `mapstructure:"reporting_currency" validate:"required,len=3"`
	AllowedCurrencies []string `mapstructure:"allowed_currencies" validate:"min=1,dive,len=3"`
	Workers           int      `mapstructure:"workers" validate:"min=1"`
}

type CurrencyConfig struct {
	FailOnMissingRate bool `mapstructure:"fail_on_missing_rate"`
}

type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
	// PublishURI is a gs://bucket/prefix that 'cli publish' copies artifacts to.
	PublishURI string `mapstructure:"publish_uri" validate:"omitempty,startswith=gs://"`
}

type WarehouseConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id" validate:"required_if=Enabled true"`
	Dataset   string `mapstructure:"dataset" validate:"required_if=Enabled true"`
	Table     string `mapstructure:"table" validate:"required_if=Enabled true"`
}

type ModelConfig struct {
	TestSize float64 `mapstructure:"test_size" validate:"gt=0,lt=1"`
	Lambda   float64 `mapstructure:"lambda" validate:"gte=0"`
}

type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// ServerConfig drives the prediction API and its training-run queue.
type ServerConfig struct {
	Addr       string `mapstructure:"addr" validate:"required"`
	QueueSize  int    `mapstructure:"queue_size" validate:"min=1"`
	MaxRetries int    `mapstructure:"max_retries" validate:"min=0"`
}

// Load reads configuration from path (YAML) and SPEND_* environment variables.
// With envOnly set the file is not read and defaults plus environment apply.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly && path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("source.bucket", "tech-test-file-storage")
	v.SetDefault("source.prefix", "data")
	v.SetDefault("source.data_dir", "data")
	v.SetDefault("source.start_date", "2024-10-01")
	v.SetDefault("source.end_date", "2024-10-05")
	v.SetDefault("source.local_only", false)

	// Small fixed window and lags, tuned for short customer histories.
	v.SetDefault("features.window", 3)
	v.SetDefault("features.lags", []int{1, 2})
	v.SetDefault("features.reporting_currency", "GBP")
	v.SetDefault("features.allowed_currencies", []string{"GBP", "USD", "EUR"})
	v.SetDefault("features.workers", 4)

	v.SetDefault("currency.fail_on_missing_rate", true)

	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.publish_uri", "")

	v.SetDefault("warehouse.enabled", false)
	v.SetDefault("warehouse.project_id", "")
	v.SetDefault("warehouse.dataset", "forecasting")
	v.SetDefault("warehouse.table", "daily_customer_metrics")

	v.SetDefault("model.test_size", 0.2)
	v.SetDefault("model.lambda", 1.0)

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.queue_size", 16)
	v.SetDefault("server.max_retries", 1)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	if c.Source.EndDate < c.Source.StartDate {
		return fmt.Errorf("%w: source.end_date %s before source.start_date %s",
			domain.ErrConfig, c.Source.EndDate, c.Source.StartDate)
	}
	found := false
	for _, cur := range c.Features.AllowedCurrencies {
		if cur == c.Features.ReportingCurrency {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: reporting currency %s not in allowed currencies %v",
			domain.ErrConfig, c.Features.ReportingCurrency, c.Features.AllowedCurrencies)
	}
	return nil
}
