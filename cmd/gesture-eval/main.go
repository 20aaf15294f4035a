package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gesture-eval/internal/cfg"
	"gesture-eval/internal/common"
	"gesture-eval/internal/evaluation"
	"gesture-eval/internal/features"
	"gesture-eval/internal/metrics"
	"gesture-eval/internal/ml"
	"gesture-eval/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		configFile  = flag.String("config", "", "Path to YAML config file (overrides CONFIG_FILE)")
		modelPath   = flag.String("model", "", "Model location: forest .json export, .pkl/.joblib/.onnx via Python, or http(s) inference URL")
		outputPath  = flag.String("output", "", "Results CSV path")
		failures    = flag.String("failures", "", "Failed samples CSV path")
		jsonPath    = flag.String("json", "", "Optional JSON report path")
		workers     = flag.Int("workers", 0, "Samples evaluated in parallel")
		cachePath   = flag.String("cache", "", "Directory of the feature vector cache")
		metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this textfile")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		accuracyRow = flag.String("accuracy-row", "", "Accuracy placement: first-row or trailer")
		history     = flag.Bool("history", false, "Print stored runs of the model and exit (needs -cache)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <sample-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env")
	}
	if *configFile != "" {
		os.Setenv(common.EnvConfigFile, *configFile)
	}

	// Load configuration
	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Override config with command line arguments
	if *modelPath != "" {
		config.ModelPath = *modelPath
	}
	if *outputPath != "" {
		config.OutputPath = *outputPath
	}
	if *failures != "" {
		config.FailuresPath = *failures
	}
	if *jsonPath != "" {
		config.JSONPath = *jsonPath
	}
	if *workers != 0 {
		config.Workers = *workers
	}
	if *cachePath != "" {
		config.CachePath = *cachePath
	}
	if *metricsFile != "" {
		config.MetricsFile = *metricsFile
	}
	if *logLevel != "" {
		config.LogLevel = *logLevel
	}
	if *accuracyRow != "" {
		config.AccuracyRow = *accuracyRow
	}
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Setup logging
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *history {
		if err := printHistory(config); err != nil {
			log.Fatal().Err(err).Msg("Failed to read run history")
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	dir := flag.Arg(0)

	// Reject a bad directory before the model is loaded.
	if _, err := evaluation.ListSamples(dir, config.Extensions); err != nil {
		log.Fatal().Err(err).Msg("Invalid Path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, dir); err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}
}

func run(ctx context.Context, config cfg.Settings, dir string) error {
	registry := prometheus.NewRegistry()
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	var store *storage.Store
	if config.CachePath != "" {
		var err error
		store, err = storage.New(config.CachePath)
		if err != nil {
			return fmt.Errorf("open feature cache: %w", err)
		}
		defer store.Close()
	}

	model, err := ml.Load(ctx, ml.LoadOptions{
		Location:   config.ModelPath,
		PythonPath: config.PythonPath,
		Timeout:    config.ModelTimeout,
		Metrics:    mw,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	modelInfo, err := ml.DescribeModel(config.ModelPath)
	if err != nil {
		log.Warn().Err(err).Str("model_path", config.ModelPath).Msg("Failed to fingerprint model")
	}

	engine := evaluation.NewEngine(
		&config,
		features.NewExtractor(config.Channels, mw),
		features.NewFilter(features.Denylist),
		ml.NewClassifier(model, mw),
	)
	engine.SetMetrics(mw)
	if store != nil {
		engine.SetCache(store)
	}

	report, err := engine.Run(ctx, dir)
	if err != nil {
		return err
	}
	report.Model = modelInfo

	// Generate reports
	reporter := evaluation.NewReporter(report, config.AccuracyRow)
	if err := reporter.WriteCSV(config.OutputPath); err != nil {
		return err
	}
	if config.FailuresPath != "" {
		if err := reporter.WriteFailures(config.FailuresPath); err != nil {
			log.Error().Err(err).Msg("Failed to write failures report")
		}
	}
	if config.JSONPath != "" {
		if err := reporter.WriteJSON(config.JSONPath); err != nil {
			log.Error().Err(err).Msg("Failed to write JSON report")
		}
	}

	// Print summary to console
	reporter.PrintSummary(os.Stdout)

	if store != nil {
		err := store.StoreRun(storage.RunRecord{
			RunID:     report.RunID,
			Model:     config.ModelPath,
			ModelSHA:  modelInfo.SHA256,
			StartedAt: report.StartedAt,
			Correct:   report.Correct,
			Total:     report.Total,
			Failed:    len(report.Failures),
			Accuracy:  report.Accuracy,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to store run summary")
		}
	}

	if config.MetricsFile != "" {
		if err := metrics.WriteTextfile(config.MetricsFile, registry); err != nil {
			log.Error().Err(err).Str("file", config.MetricsFile).Msg("Failed to write metrics")
		}
	}

	log.Info().
		Str("run_id", report.RunID).
		Str("output", config.OutputPath).
		Msg("Evaluation completed successfully")
	return nil
}

// printHistory lists the stored runs of the configured model, oldest first.
func printHistory(config cfg.Settings) error {
	if config.CachePath == "" {
		return fmt.Errorf("run history needs a cache path")
	}
	store, err := storage.New(config.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.GetRuns(config.ModelPath, time.Unix(0, 0), time.Now())
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %d/%d  failed=%d  %s%%\n",
			r.StartedAt.Format(time.RFC3339), r.RunID, r.Correct, r.Total, r.Failed, features.FormatFloat(r.Accuracy))
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded for", config.ModelPath)
	}
	return nil
}
