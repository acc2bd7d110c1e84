// config.go: settings struct and loading for the AQMS core.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// IngestSettings contains settings for the reading ingestion path.
type IngestSettings struct {
	TargetRate    int           // target readings per minute for the stream feeder
	BatchSize     int           // readings per micro-batch
	MaxClockSkew  time.Duration // how far in the future a timestamp may plausibly be
	RetryAttempts int           // store write retries before surfacing an error
	RetryBackoff  time.Duration // initial backoff between retries, doubled each attempt
}

// DetectorSettings contains settings for the outlier detector cycle.
type DetectorSettings struct {
	Interval      time.Duration // detector cycle cadence
	Window        time.Duration // trailing window duration
	Contamination float64       // expected proportion of anomalies for the density method
	MinSamples    int           // minimum window size for the density method to fit
	Neighbors     int           // k for the nearest-neighbour density scorer
	CycleTimeout  time.Duration // per-cycle deadline before the cycle is abandoned
}

// ClassifierSettings contains settings for the online classifier cycle.
type ClassifierSettings struct {
	Interval     time.Duration // classifier cycle cadence
	Window       time.Duration // trailing window duration
	LearningRate float64       // SGD step size
	Seed         int64         // seed for the mini-batch shuffle, logged per cycle
	CycleTimeout time.Duration
}

// AlertingSettings contains settings for alert creation and dedup.
type AlertingSettings struct {
	Cooldown time.Duration // suppression window per (station, alert type)
}

// MetricsSettings contains settings for the observability endpoint and the
// system metrics recorder.
type MetricsSettings struct {
	Enabled        bool          // expose prometheus /metrics
	Listen         string        // listen address for the metrics endpoint
	RecordInterval time.Duration // cadence of SystemMetric row appends
}

// SQLiteSettings contains SQLite output settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains MySQL output settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// OutputSettings selects and configures the backing store.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// LogSettings contains per-service file logging settings.
type LogSettings struct {
	Enabled bool
	Path    string
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool // true to enable debug output

	Main struct {
		Name string      // node name, included in logs
		Log  LogSettings // pipeline log file
	}

	Ingest     IngestSettings
	Detector   DetectorSettings
	Classifier ClassifierSettings
	Alerting   AlertingSettings
	Metrics    MetricsSettings
	Output     OutputSettings
}

// Load reads the configuration into a new Settings instance and validates it.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("AQMS")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first
// default config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the config file search paths: the current
// working directory followed by the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "aqms-go"))
	}
	return paths, nil
}
