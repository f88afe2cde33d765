package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/road-distance-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Bing       BingConfig                `yaml:"bing" mapstructure:"bing"`
	Files      FilesConfig               `yaml:"files" mapstructure:"files"`
	References []model.ReferenceLocation `yaml:"references" mapstructure:"references"`
	Throttle   ThrottleConfig            `yaml:"throttle" mapstructure:"throttle"`
	Retry      RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Preview    PreviewConfig             `yaml:"preview" mapstructure:"preview"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
}

// BingConfig holds Bing Maps Routes API settings.
type BingConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	DistanceUnit string `yaml:"distance_unit" mapstructure:"distance_unit"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the request timeout. Zero means no timeout.
func (b BingConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// FilesConfig locates the input and output tables.
type FilesConfig struct {
	Input  string `yaml:"input" mapstructure:"input"`
	Output string `yaml:"output" mapstructure:"output"`
}

// ThrottleConfig bounds request rate. Each worker waits IntervalMs between
// its own requests.
type ThrottleConfig struct {
	IntervalMs int `yaml:"interval_ms" mapstructure:"interval_ms"`
	Workers    int `yaml:"workers" mapstructure:"workers"`
}

// Interval returns the per-worker spacing between requests.
func (t ThrottleConfig) Interval() time.Duration {
	return time.Duration(t.IntervalMs) * time.Millisecond
}

// RetryConfig configures retries of transient request failures.
// MaxAttempts of 1 disables retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// PreviewConfig controls the console preview of the output table.
type PreviewConfig struct {
	Rows int `yaml:"rows" mapstructure:"rows"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var validUnits = map[string]bool{"": true, "km": true, "mi": true}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROADDIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("bing.key", "")
	v.SetDefault("bing.base_url", "http://dev.virtualearth.net/REST/V1/Routes/Driving")
	v.SetDefault("bing.distance_unit", "")
	v.SetDefault("bing.timeout_secs", 30)
	v.SetDefault("files.input", "ane_locations.csv")
	v.SetDefault("files.output", "ane_road_distances.csv")
	v.SetDefault("references", defaultReferences())
	v.SetDefault("throttle.interval_ms", 2000)
	v.SetDefault("throttle.workers", 1)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("preview.rows", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// defaultReferences expresses the default reference set in the shape viper
// unmarshals, so a config file list replaces it wholesale.
func defaultReferences() []map[string]any {
	refs := model.DefaultReferenceLocations()
	out := make([]map[string]any, 0, len(refs))
	for _, r := range refs {
		out = append(out, map[string]any{
			"name":      r.Name,
			"latitude":  r.Latitude,
			"longitude": r.Longitude,
		})
	}
	return out
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bing.Key) == "" {
		return eris.New("config: bing.key is required (set ROADDIST_BING_KEY)")
	}
	if c.Files.Input == "" || c.Files.Output == "" {
		return eris.New("config: files.input and files.output are required")
	}
	if len(c.References) == 0 {
		return eris.New("config: at least one reference location is required")
	}
	seen := make(map[string]bool, len(c.References))
	for i, r := range c.References {
		if strings.TrimSpace(r.Name) == "" {
			return eris.Errorf("config: references[%d] has no name", i)
		}
		if seen[r.Name] {
			return eris.Errorf("config: duplicate reference location %q", r.Name)
		}
		seen[r.Name] = true
	}
	if c.Throttle.Workers < 1 {
		return eris.Errorf("config: throttle.workers must be at least 1, got %d", c.Throttle.Workers)
	}
	if c.Throttle.IntervalMs < 0 {
		return eris.Errorf("config: throttle.interval_ms must not be negative, got %d", c.Throttle.IntervalMs)
	}
	if !validUnits[c.Bing.DistanceUnit] {
		return eris.Errorf("config: bing.distance_unit must be km or mi, got %q", c.Bing.DistanceUnit)
	}
	return nil
}

// InitLogger initializes the global zap logger.
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
