package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/profscout/pkg/batch"
	"github.com/umputun/profscout/pkg/browser"
	"github.com/umputun/profscout/pkg/checkpoint"
	"github.com/umputun/profscout/pkg/config"
	"github.com/umputun/profscout/pkg/content"
	"github.com/umputun/profscout/pkg/discovery"
	"github.com/umputun/profscout/pkg/harvest"
	"github.com/umputun/profscout/pkg/job"
	"github.com/umputun/profscout/pkg/llm"
	"github.com/umputun/profscout/pkg/metrics"
	"github.com/umputun/profscout/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"profscout.yml" description:"configuration file"`

	Scrape ScrapeCmd `command:"scrape" description:"discover listing pages and extract profiles"`
	Score  ScoreCmd  `command:"score" description:"score extracted profiles against the rubric"`
	Serve  ServeCmd  `command:"serve" description:"serve checkpointed results over http"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

// ScrapeCmd overrides discovery settings for the scrape command
type ScrapeCmd struct {
	RootURL     string `long:"root-url" description:"listing root url, overrides discovery.root_url"`
	MaxPages    int    `long:"max-pages" description:"maximum listing pages, overrides discovery.max_pages"`
	RetryFailed bool   `long:"retry-failed" description:"extract failed profiles again"`
}

// ScoreCmd overrides scoring settings for the score command
type ScoreCmd struct {
	RetryFailed bool `long:"retry-failed" description:"score failed profiles again"`
}

// ServeCmd overrides server settings for the serve command
type ServeCmd struct {
	Listen string `short:"l" long:"listen" description:"listen address, overrides server.listen"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	color.NoColor = color.NoColor || opts.NoColor
	setupLog(opts.Debug)

	log.Printf("[INFO] starting profscout version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts, parser.Active.Name)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %s failed: %v", parser.Active.Name, err)
		os.Exit(1)
	}

	log.Print("[INFO] done")
}

// run loads configuration and executes the command
func run(ctx context.Context, opts Opts, command string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLog(opts.Debug, secrets(cfg)...)

	// settings missing for the command fail before any checkpoint storage is touched
	if err = prepare(cfg, opts, command); err != nil {
		return err
	}
	var rubric *llm.Rubric
	if command == "score" {
		if rubric, err = llm.LoadRubric(cfg.Rubric.PatientProfile, cfg.Rubric.Criteria); err != nil {
			return fmt.Errorf("failed to load rubric: %w", err)
		}
	}

	stores, err := checkpoint.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("failed to open checkpoints: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Printf("[WARN] close checkpoints: %v", err)
		}
	}()

	m := metrics.New()

	switch command {
	case "scrape":
		return runScrape(ctx, cfg, opts.Scrape, stores, m)
	case "score":
		return runScore(ctx, cfg, opts.Score, rubric, stores, m)
	default:
		srv := server.New(cfg, stores.Profiles, stores.Scores, server.Options{
			Version:   revision,
			Debug:     opts.Debug,
			ViewerDir: cfg.Server.ViewerDir,
			Metrics:   m.Handler(),
		})
		return srv.Run(ctx)
	}
}

// prepare applies command line overrides and checks the settings the command can't run without
func prepare(cfg *config.Config, opts Opts, command string) error {
	switch command {
	case "scrape":
		if opts.Scrape.RootURL != "" {
			cfg.Discovery.RootURL = opts.Scrape.RootURL
		}
		if opts.Scrape.MaxPages > 0 {
			cfg.Discovery.MaxPages = opts.Scrape.MaxPages
		}
		if cfg.Discovery.RootURL == "" {
			return errors.New("discovery.root_url is required for scrape")
		}
	case "score":
		if cfg.LLM.Endpoint == "" && cfg.LLM.APIKey == "" {
			return errors.New("llm.api_key is required without a custom llm.endpoint")
		}
	case "serve":
		if opts.Serve.Listen != "" {
			cfg.Server.Listen = opts.Serve.Listen
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func runScrape(ctx context.Context, cfg *config.Config, cmd ScrapeCmd, stores *checkpoint.Stores, m *metrics.Metrics) error {
	pool := browser.NewPool(browser.Options{
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.Browser.Timeout,
		Sessions:  cfg.Browser.Sessions,
		RateLimit: cfg.Browser.RateLimit,
	})
	source, err := discovery.NewHTMLSource(pool, cfg.Discovery.LinkSelectors, cfg.Discovery.LinkPattern)
	if err != nil {
		return fmt.Errorf("make link source: %w", err)
	}

	serveMetrics(ctx, cfg, m)
	h := &harvest.Harvester{
		Discoverer: discovery.New(source, cfg.Discovery.PageFormat),
		Extractor:  content.New(pool, cfg.Extraction),
		Store:      stores.Profiles,
		Job:        jobConfig(cfg.Job, cmd.RetryFailed),
		Observer:   m,
		RootURL:    cfg.Discovery.RootURL,
		MaxPages:   cfg.Discovery.MaxPages,
	}
	summary, err := h.Run(ctx)
	report(summary)
	return err
}

func runScore(ctx context.Context, cfg *config.Config, cmd ScoreCmd, rubric *llm.Rubric, stores *checkpoint.Stores,
	m *metrics.Metrics) error {
	serveMetrics(ctx, cfg, m)
	e := &harvest.Evaluator{
		Profiles: stores.Profiles,
		Scores:   stores.Scores,
		Scorer:   llm.NewScorer(cfg.LLM),
		Rubric:   rubric,
		Job:      jobConfig(cfg.Job, cmd.RetryFailed),
		Observer: m,
	}
	summary, err := e.Run(ctx)
	report(summary)
	return err
}

// serveMetrics starts the metrics listener for batch commands if configured
func serveMetrics(ctx context.Context, cfg *config.Config, m *metrics.Metrics) {
	if cfg.Metrics.Listen == "" {
		return
	}
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
			log.Printf("[WARN] %v", err)
		}
	}()
}

func jobConfig(c config.JobConfig, retryFailed bool) job.Config {
	return job.Config{
		BatchSize:   c.BatchSize,
		BatchDelay:  c.BatchDelay,
		RetryFailed: c.RetryFailed || retryFailed,
		Batch: batch.Config{
			Concurrency: c.Concurrency,
			Stagger:     c.Stagger,
			ChunkDelay:  c.ChunkDelay,
			Retry:       batch.Retry{MaxRetries: c.MaxRetries, Delay: c.RetryDelay},
		},
	}
}

func report(summary *job.Summary) {
	if summary == nil {
		return
	}
	log.Printf("[INFO] %s", summary)
}

// secrets returns configured credentials to be masked in logs
func secrets(cfg *config.Config) []string {
	var res []string
	for _, s := range []string{cfg.LLM.APIKey, cfg.Checkpoint.S3Secret} {
		if s != "" {
			res = append(res, s)
		}
	}
	return res
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
