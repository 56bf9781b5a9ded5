// Package config provides configuration management for ocrserve.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for ocrserve.
// Configuration precedence: CLI flags > Environment variables > Config file > Defaults
type Config struct {
	// ListenAddr is the HTTP listen address for the server
	ListenAddr string

	// PIDFile is an optional path the server writes its process ID to
	PIDFile string

	// StagingDir holds uploaded and preprocessed images while they are recognized
	StagingDir string

	// MaxUploadBytes caps the body size of an online request
	MaxUploadBytes int64

	// LocalParallelism is how many images of a local batch run at once (0 = NumCPU)
	LocalParallelism int

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is "console" or "json"
	LogFormat string

	// LogFile is an optional rotated log file
	LogFile string

	// LogMaxSizeMB is the size at which the log file rotates
	LogMaxSizeMB int

	// LogMaxAgeDays is how long rotated log files are kept
	LogMaxAgeDays int

	// Engine configures the external recognition engine
	Engine EngineConfig
}

// EngineConfig holds configuration for invoking the recognition engine
type EngineConfig struct {
	// Binary is the engine executable
	Binary string

	// Subcommand selects the engine pipeline
	Subcommand string

	// Timeout bounds a single invocation
	Timeout time.Duration

	// MaxConcurrent caps concurrent engine processes (0 = NumCPU)
	MaxConcurrent int

	// MinConfidence is the exclusive lower bound for keeping a detection
	MinConfidence float64

	// Handwriting tuning passed in handwritten mode
	UnclipRatio  float64
	RecModelDir  string
	CharListFile string
	RecMode      int
}

// Load reads configuration from multiple sources and returns a Config instance.
// Sources are checked in this order: CLI flags > env vars > config file > defaults
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.New(), configFile)
}

// LoadWith is Load on a caller-supplied viper instance, so CLI flags bound to
// it take precedence.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Look for config in home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigName(".ocrserve")
			v.SetConfigType("yaml")
		}
	}

	// Read config file if it exists (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("OCRSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	config := &Config{
		ListenAddr:       v.GetString("listen-addr"),
		PIDFile:          v.GetString("pid-file"),
		StagingDir:       v.GetString("staging-dir"),
		MaxUploadBytes:   v.GetInt64("max-upload-bytes"),
		LocalParallelism: v.GetInt("local-parallelism"),
		LogLevel:         v.GetString("log-level"),
		LogFormat:        v.GetString("log-format"),
		LogFile:          v.GetString("log-file"),
		LogMaxSizeMB:     v.GetInt("log-max-size-mb"),
		LogMaxAgeDays:    v.GetInt("log-max-age-days"),
		Engine: EngineConfig{
			Binary:        v.GetString("engine-binary"),
			Subcommand:    v.GetString("engine-subcommand"),
			Timeout:       v.GetDuration("engine-timeout"),
			MaxConcurrent: v.GetInt("engine-max-concurrent"),
			MinConfidence: v.GetFloat64("min-confidence"),
			UnclipRatio:   v.GetFloat64("hw-unclip-ratio"),
			RecModelDir:   v.GetString("hw-rec-model-dir"),
			CharListFile:  v.GetString("hw-char-list-file"),
			RecMode:       v.GetInt("hw-rec-mode"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen-addr", ":8000")
	v.SetDefault("pid-file", "")
	v.SetDefault("staging-dir", "./ocr_temp_imgs")
	v.SetDefault("max-upload-bytes", 32<<20)
	v.SetDefault("local-parallelism", 0)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("log-file", "")
	v.SetDefault("log-max-size-mb", 50)
	v.SetDefault("log-max-age-days", 30)

	v.SetDefault("engine-binary", "ppocr")
	v.SetDefault("engine-subcommand", "system")
	v.SetDefault("engine-timeout", 10*time.Second)
	v.SetDefault("engine-max-concurrent", 0)
	v.SetDefault("min-confidence", 0.70)
	v.SetDefault("hw-unclip-ratio", 2.2)
	v.SetDefault("hw-rec-model-dir", "./inference/hwrec/")
	v.SetDefault("hw-char-list-file", "./hw_chars.txt")
	v.SetDefault("hw-rec-mode", 1)
}

// Validate checks that the configuration is valid and internally consistent
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr cannot be empty")
	}

	if c.StagingDir == "" {
		return fmt.Errorf("staging-dir cannot be empty")
	}

	var err error
	if c.StagingDir, err = expandHome(c.StagingDir); err != nil {
		return fmt.Errorf("failed to expand home directory in staging-dir: %w", err)
	}
	if c.PIDFile, err = expandHome(c.PIDFile); err != nil {
		return fmt.Errorf("failed to expand home directory in pid-file: %w", err)
	}
	if c.LogFile, err = expandHome(c.LogFile); err != nil {
		return fmt.Errorf("failed to expand home directory in log-file: %w", err)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max-upload-bytes must be positive, got %d", c.MaxUploadBytes)
	}

	if c.LocalParallelism < 0 {
		return fmt.Errorf("local-parallelism must be non-negative, got %d", c.LocalParallelism)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log-level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log-format %q, must be console or json", c.LogFormat)
	}

	if c.LogMaxSizeMB < 0 || c.LogMaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must be non-negative")
	}

	if err := c.validateEngineConfig(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	return nil
}

// validateEngineConfig validates the engine invocation settings
func (c *Config) validateEngineConfig() error {
	if c.Engine.Binary == "" {
		return fmt.Errorf("engine-binary cannot be empty")
	}

	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine-timeout must be positive, got %s", c.Engine.Timeout)
	}

	if c.Engine.MaxConcurrent < 0 {
		return fmt.Errorf("engine-max-concurrent must be non-negative, got %d", c.Engine.MaxConcurrent)
	}

	if c.Engine.MinConfidence <= 0.0 || c.Engine.MinConfidence >= 1.0 {
		return fmt.Errorf("min-confidence must be in (0.0, 1.0), got %f", c.Engine.MinConfidence)
	}

	if c.Engine.UnclipRatio <= 0 {
		return fmt.Errorf("hw-unclip-ratio must be positive, got %f", c.Engine.UnclipRatio)
	}

	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	pidFile := c.PIDFile
	if pidFile == "" {
		pidFile = "not set"
	}
	logFile := c.LogFile
	if logFile == "" {
		logFile = "stdout"
	}

	return fmt.Sprintf(`Configuration:
  ListenAddr: %s
  PIDFile: %s
  StagingDir: %s
  MaxUploadBytes: %d
  LocalParallelism: %d
  LogLevel: %s
  LogFormat: %s
  LogFile: %s (rotate at %d MB, keep %d days)
  Engine:
    Binary: %s %s
    Timeout: %s
    MaxConcurrent: %d
    MinConfidence: %.2f
    Handwriting: unclip=%.2f model=%s chars=%s mode=%d`,
		c.ListenAddr,
		pidFile,
		c.StagingDir,
		c.MaxUploadBytes,
		c.LocalParallelism,
		c.LogLevel,
		c.LogFormat,
		logFile,
		c.LogMaxSizeMB,
		c.LogMaxAgeDays,
		c.Engine.Binary,
		c.Engine.Subcommand,
		c.Engine.Timeout,
		c.Engine.MaxConcurrent,
		c.Engine.MinConfidence,
		c.Engine.UnclipRatio,
		c.Engine.RecModelDir,
		c.Engine.CharListFile,
		c.Engine.RecMode,
	)
}
