package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bggstats/internal/export"
	"bggstats/internal/pipeline"
	"bggstats/internal/scrapers/bgg"
	"bggstats/lib/configutil"
	"bggstats/lib/telemetry"

	"github.com/spf13/pflag"
)

const defaultConfigName = "bggstats.json5"

// Config is the shape of bggstats.json5, durations are written like "1.5s".
type Config struct {
	Username      string `json:"username"`
	Fetch         int    `json:"fetch"`
	BatchSize     int    `json:"batch_size"`
	Output        string `json:"output"`
	OutputType    string `json:"output_type"`
	Workers       int    `json:"workers"`
	CourtesyDelay string `json:"courtesy_delay"`
	Timeout       string `json:"timeout"`
	CatalogURL    string `json:"catalog_url"`
	APIURL        string `json:"api_url"`
	MaxEmptyPages int    `json:"max_empty_pages"`

	Otlp telemetry.OtlpConfig `json:"otlp"`
}

func defaultConfig() Config {
	return Config{
		Username:      pipeline.DefaultUsername,
		Fetch:         pipeline.DefaultFetch,
		BatchSize:     pipeline.DefaultBatchSize,
		Output:        pipeline.DefaultOutput,
		OutputType:    string(export.FormatCSV),
		Workers:       1,
		CourtesyDelay: bgg.DefaultCourtesyDelay.String(),
		Timeout:       bgg.DefaultTimeout.String(),
		CatalogURL:    bgg.DefaultCatalogURL,
		APIURL:        bgg.DefaultAPIURL,
		MaxEmptyPages: bgg.DefaultMaxEmptyPages,
	}
}

// loadConfig reads an explicitly named config file, which must exist, or else
// looks for bggstats.json5 from the working directory upwards and falls back to
// the defaults when there is none.
func loadConfig(path string) (Config, error) {
	if path != "" {
		config, err := configutil.Load(path, defaultConfig())
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return config, nil
	}

	config, _, err := configutil.LoadRecursively(defaultConfigName, defaultConfig())
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return config, nil
}

type fetchFlags struct {
	username   string
	fetch      int
	output     string
	batchSize  int
	outputType string
	workers    int
	configPath string
	httpDump   string
}

func (f *fetchFlags) register(flags *pflag.FlagSet) {
	def := defaultConfig()
	flags.StringVarP(&f.username, "username", "u", def.Username, "BoardGameGeek username whose collection is marked as owned.")
	flags.IntVarP(&f.fetch, "fetch", "f", def.Fetch, "Number of top rated games to fetch from the catalog.")
	flags.StringVarP(&f.output, "output", "o", def.Output, "Output filename, the extension is added when missing.")
	flags.IntVarP(&f.batchSize, "batch_size", "b", def.BatchSize, "Number of games per statistics request.")
	flags.StringVarP(&f.outputType, "output_type", "t", def.OutputType, "Output format: csv, json or sqlite.")
	flags.IntVar(&f.workers, "workers", def.Workers, "Number of statistics batches fetched concurrently.")
	flags.StringVar(&f.configPath, "config", "", "Path to a json5 config file (default: bggstats.json5 in the working directory or above).")
	flags.StringVar(&f.httpDump, "http-dump", "", "Directory every HTTP exchange is written to.")
}

// apply overrides config values with the flags that were set explicitly.
func (f *fetchFlags) apply(flags *pflag.FlagSet, config *Config) {
	if flags.Changed("username") {
		config.Username = f.username
	}
	if flags.Changed("fetch") {
		config.Fetch = f.fetch
	}
	if flags.Changed("output") {
		config.Output = f.output
	}
	if flags.Changed("batch_size") {
		config.BatchSize = f.batchSize
	}
	if flags.Changed("output_type") {
		config.OutputType = f.outputType
	}
	if flags.Changed("workers") {
		config.Workers = f.workers
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", name, value)
	}
	return d, nil
}

// pipelineConfig turns the file config into the config of a run, validation is
// left to the pipeline.
func (c Config) pipelineConfig() (pipeline.Config, error) {
	courtesyDelay, err := parseDuration("courtesy_delay", c.CourtesyDelay)
	if err != nil {
		return pipeline.Config{}, err
	}
	timeout, err := parseDuration("timeout", c.Timeout)
	if err != nil {
		return pipeline.Config{}, err
	}
	format, err := export.ParseFormat(c.OutputType)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.DefaultConfig()
	cfg.Username = c.Username
	cfg.Fetch = c.Fetch
	cfg.BatchSize = c.BatchSize
	cfg.Output = c.Output
	cfg.OutputType = format
	cfg.Workers = c.Workers
	cfg.Session.CourtesyDelay = courtesyDelay
	cfg.Session.Timeout = timeout
	cfg.Session.CatalogURL = c.CatalogURL
	cfg.Session.APIURL = c.APIURL
	cfg.Session.MaxEmptyPages = c.MaxEmptyPages
	return cfg, nil
}
