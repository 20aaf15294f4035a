package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvModelPath    = "MODEL_PATH"
	EnvOutputPath   = "OUTPUT_PATH"
	EnvFailuresPath = "FAILURES_PATH"
	EnvJSONPath     = "JSON_REPORT_PATH"
	EnvWorkers      = "WORKERS"
	EnvCachePath    = "CACHE_PATH"
	EnvMetricsFile  = "METRICS_FILE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvExtensions   = "SAMPLE_EXTENSIONS"
	EnvLabelIndex   = "LABEL_INDEX"
	EnvChannels     = "CHANNELS"
	EnvModelTimeout = "MODEL_TIMEOUT"
	EnvPythonPath   = "PYTHON_PATH"
	EnvAccuracyRow  = "ACCURACY_ROW"
)

// Configuration defaults
const (
	DefaultModelPath    = "bestrandomforest.pkl"
	DefaultOutputPath   = "ClassificationResults.csv"
	DefaultFailuresPath = "ClassificationFailures.csv"
	DefaultLogLevel     = "info"
	DefaultLabelIndex   = 7
	DefaultChannels     = 8
	DefaultAccuracyRow  = AccuracyFirstRow
)

// DefaultExtensions are the tabular text formats recognised as samples.
var DefaultExtensions = []string{".txt", ".csv"}

// Accuracy placements in the CSV report
const (
	AccuracyFirstRow = "first-row"
	AccuracyTrailer  = "trailer"
)

// Validation constants
const (
	MinWorkers      = 1
	MaxWorkers      = 256
	MaxLabelIndex   = 255
	MinModelTimeout = 1   // seconds
	MaxModelTimeout = 300 // seconds
)

// Gesture classes
const (
	MinClassID = 1
	MaxClassID = 6
)

// ClassLabels maps the classifier's categorical output to class ids.
var ClassLabels = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
	"Six":   6,
}
