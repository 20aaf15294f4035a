package cfg

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"gesture-eval/internal/common"
	"gesture-eval/internal/features"
)

type Settings struct {
	ModelPath    string
	PythonPath   string
	ModelTimeout time.Duration
	Extensions   []string
	LabelIndex   int
	Channels     int
	OutputPath   string
	FailuresPath string
	JSONPath     string
	AccuracyRow  string
	Workers      int
	CachePath    string
	MetricsFile  string
	LogLevel     string
}

type ConfigFile struct {
	Model struct {
		Path       string `yaml:"path"`
		PythonPath string `yaml:"pythonPath"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"model"`

	Samples struct {
		Extensions []string `yaml:"extensions"`
		LabelIndex *int     `yaml:"labelIndex"`
		Channels   int      `yaml:"channels"`
	} `yaml:"samples"`

	Output struct {
		Results     string `yaml:"results"`
		Failures    string `yaml:"failures"`
		JSON        string `yaml:"json"`
		AccuracyRow string `yaml:"accuracyRow"`
	} `yaml:"output"`

	System struct {
		Workers     int    `yaml:"workers"`
		CachePath   string `yaml:"cachePath"`
		MetricsFile string `yaml:"metricsFile"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > common.MaxWorkers {
		n = common.MaxWorkers
	}
	return n
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := 30 * time.Second
	if config.Model.Timeout != "" {
		if timeout, err = time.ParseDuration(config.Model.Timeout); err != nil {
			return Settings{}, fmt.Errorf("invalid model timeout %q: %w", config.Model.Timeout, err)
		}
	}

	labelIndex := common.DefaultLabelIndex
	if config.Samples.LabelIndex != nil {
		labelIndex = *config.Samples.LabelIndex
	}

	extensions := config.Samples.Extensions
	if len(extensions) == 0 {
		extensions = common.DefaultExtensions
	}

	// Override with environment variables if they exist
	settings := Settings{
		ModelPath:    getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, common.DefaultModelPath)),
		PythonPath:   getEnvOrDefault(common.EnvPythonPath, config.Model.PythonPath),
		ModelTimeout: getDurationOrDefault(common.EnvModelTimeout, timeout),
		Extensions:   splitOrDefault(os.Getenv(common.EnvExtensions), extensions),
		LabelIndex:   getIntOrDefault(common.EnvLabelIndex, labelIndex),
		Channels:     getIntFromEnvOrConfig(common.EnvChannels, config.Samples.Channels, common.DefaultChannels),
		OutputPath:   getEnvOrDefault(common.EnvOutputPath, orDefault(config.Output.Results, common.DefaultOutputPath)),
		FailuresPath: getEnvOrDefault(common.EnvFailuresPath, orDefault(config.Output.Failures, common.DefaultFailuresPath)),
		JSONPath:     getEnvOrDefault(common.EnvJSONPath, config.Output.JSON),
		AccuracyRow:  getEnvOrDefault(common.EnvAccuracyRow, orDefault(config.Output.AccuracyRow, common.DefaultAccuracyRow)),
		Workers:      getIntFromEnvOrConfig(common.EnvWorkers, config.System.Workers, defaultWorkers()),
		CachePath:    getEnvOrDefault(common.EnvCachePath, config.System.CachePath),
		MetricsFile:  getEnvOrDefault(common.EnvMetricsFile, config.System.MetricsFile),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ModelPath:    getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		PythonPath:   os.Getenv(common.EnvPythonPath), // optional
		ModelTimeout: getDurationOrDefault(common.EnvModelTimeout, 30*time.Second),
		Extensions:   splitOrDefault(os.Getenv(common.EnvExtensions), common.DefaultExtensions),
		LabelIndex:   getIntOrDefault(common.EnvLabelIndex, common.DefaultLabelIndex),
		Channels:     getIntOrDefault(common.EnvChannels, common.DefaultChannels),
		OutputPath:   getEnvOrDefault(common.EnvOutputPath, common.DefaultOutputPath),
		FailuresPath: getEnvOrDefault(common.EnvFailuresPath, common.DefaultFailuresPath),
		JSONPath:     os.Getenv(common.EnvJSONPath),
		AccuracyRow:  getEnvOrDefault(common.EnvAccuracyRow, common.DefaultAccuracyRow),
		Workers:      getIntOrDefault(common.EnvWorkers, defaultWorkers()),
		CachePath:    os.Getenv(common.EnvCachePath),
		MetricsFile:  os.Getenv(common.EnvMetricsFile),
		LogLevel:     getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Validate re-checks the settings after command-line overrides.
func (s *Settings) Validate() error {
	if err := validateSettings(s); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.OutputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	if len(settings.Extensions) == 0 {
		return fmt.Errorf("at least one sample extension must be specified")
	}
	for _, ext := range settings.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("sample extension must start with a dot, got %q", ext)
		}
	}

	if settings.LabelIndex < 0 || settings.LabelIndex > common.MaxLabelIndex {
		return fmt.Errorf("label index must be between 0 and %d, got %d", common.MaxLabelIndex, settings.LabelIndex)
	}
	// The denylist and every trained artifact are fixed to this width.
	if settings.Channels != features.DenylistChannels {
		return fmt.Errorf("channels must be %d, got %d", features.DenylistChannels, settings.Channels)
	}
	if settings.Workers < common.MinWorkers || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between %d and %d, got %d", common.MinWorkers, common.MaxWorkers, settings.Workers)
	}

	minTimeout := time.Duration(common.MinModelTimeout) * time.Second
	maxTimeout := time.Duration(common.MaxModelTimeout) * time.Second
	if settings.ModelTimeout < minTimeout || settings.ModelTimeout > maxTimeout {
		return fmt.Errorf("model timeout must be between %v and %v, got %v", minTimeout, maxTimeout, settings.ModelTimeout)
	}

	switch settings.AccuracyRow {
	case common.AccuracyFirstRow, common.AccuracyTrailer:
	default:
		return fmt.Errorf("accuracy row must be %q or %q, got %q", common.AccuracyFirstRow, common.AccuracyTrailer, settings.AccuracyRow)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil || settings.LogLevel == "" {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	return nil
}
