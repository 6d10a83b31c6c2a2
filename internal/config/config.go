package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hospitalstats/internal/records"
)

type Config struct {
	DataDir            string `mapstructure:"DATA_DIR"`
	OutputDir          string `mapstructure:"OUTPUT_DIR"`
	ReferenceTime      string `mapstructure:"REFERENCE_TIME"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	LogFormat          string `mapstructure:"LOG_FORMAT"`
	InsightsFile       string `mapstructure:"INSIGHTS_FILE"`
	MarkdownReport     string `mapstructure:"MARKDOWN_REPORT"`
	PDFOutput          string `mapstructure:"PDF_OUTPUT"`
	PandocPath         string `mapstructure:"PANDOC_PATH"`
	PDFEngine          string `mapstructure:"PDF_ENGINE"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	PGBatchSize        int    `mapstructure:"PG_BATCH_SIZE"`
	ParquetBatchSize   int    `mapstructure:"PARQUET_BATCH_SIZE"`
	MetricsFile        string `mapstructure:"METRICS_FILE"`
	SectionConcurrency int    `mapstructure:"SECTION_CONCURRENCY"`
	SynthSeed          uint64 `mapstructure:"SYNTH_SEED"`
	SynthPatients      int    `mapstructure:"SYNTH_PATIENTS"`
}

var keys = []string{
	"DATA_DIR", "OUTPUT_DIR", "REFERENCE_TIME", "LOG_LEVEL", "LOG_FORMAT",
	"INSIGHTS_FILE", "MARKDOWN_REPORT", "PDF_OUTPUT", "PANDOC_PATH", "PDF_ENGINE",
	"DATABASE_URL", "PG_BATCH_SIZE", "PARQUET_BATCH_SIZE", "METRICS_FILE",
	"SECTION_CONCURRENCY", "SYNTH_SEED", "SYNTH_PATIENTS",
}

// Load reads configuration from the environment and an optional .env file in
// the working directory. Every key has a usable default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	// METRICS_FILE= disables the metrics file.
	v.AllowEmptyEnv(true)

	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("REFERENCE_TIME", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("INSIGHTS_FILE", "ai_analysis_insights.json")
	v.SetDefault("MARKDOWN_REPORT", "FINAL_TASK1_RESPONSE.md")
	v.SetDefault("PDF_OUTPUT", "FINAL_TASK1_RESPONSE.pdf")
	v.SetDefault("PANDOC_PATH", "pandoc")
	v.SetDefault("PDF_ENGINE", "xelatex")
	v.SetDefault("PG_BATCH_SIZE", 500)
	v.SetDefault("PARQUET_BATCH_SIZE", 10000)
	v.SetDefault("METRICS_FILE", "hospitalstats.prom")
	v.SetDefault("SECTION_CONCURRENCY", 4)
	v.SetDefault("SYNTH_SEED", 42)
	v.SetDefault("SYNTH_PATIENTS", 200)

	// Bind env vars explicitly so Unmarshal picks up keys without defaults.
	for _, k := range keys {
		v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate rejects values that would fail later in the run.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"console\", \"json\" or \"ecs\", got %q", c.LogFormat)
	}
	if _, err := c.Reference(time.Now()); err != nil {
		return err
	}
	if c.SectionConcurrency < 1 {
		return fmt.Errorf("SECTION_CONCURRENCY must be at least 1, got %d", c.SectionConcurrency)
	}
	if c.PGBatchSize < 1 {
		return fmt.Errorf("PG_BATCH_SIZE must be at least 1, got %d", c.PGBatchSize)
	}
	if c.ParquetBatchSize < 1 {
		return fmt.Errorf("PARQUET_BATCH_SIZE must be at least 1, got %d", c.ParquetBatchSize)
	}
	if c.SynthPatients < 1 {
		return fmt.Errorf("SYNTH_PATIENTS must be at least 1, got %d", c.SynthPatients)
	}
	return nil
}

// Reference returns the instant ages are computed at: REFERENCE_TIME when
// set, otherwise now.
func (c *Config) Reference(now time.Time) (time.Time, error) {
	if c.ReferenceTime == "" {
		return now.UTC(), nil
	}
	t, ok := records.ParseTimestamp(c.ReferenceTime)
	if !ok {
		return time.Time{}, fmt.Errorf("REFERENCE_TIME %q is not a date or timestamp", c.ReferenceTime)
	}
	return t, nil
}

// OutputPath resolves name against OUTPUT_DIR unless it is absolute.
func (c *Config) OutputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
