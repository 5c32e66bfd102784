package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cargotrail/schemarun"
)

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type WaitConfig struct {
	// Timeout and Interval are duration strings, e.g. "60s", "2s".
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

type ConfigDoc struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	// Wait gates the run on database readiness when enabled, for deploy
	// pipelines where the database starts alongside the migrator.
	Wait WaitConfig `mapstructure:"wait" yaml:"wait"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	return dec.Decode(c)
}

func (c *ConfigDoc) parseLogLevel() (schemarun.LogLevel, error) {
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "error":
		return schemarun.LogLevelError, nil
	case "warn", "warning":
		return schemarun.LogLevelWarn, nil
	case "info", "":
		return schemarun.LogLevelInfo, nil
	case "debug":
		return schemarun.LogLevelDebug, nil
	default:
		return schemarun.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *schemarun.Logger
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))

	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = schemarun.NewJSONLogger(level)
	case "color", "colour":
		logger = schemarun.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = schemarun.NewColorLogger(level)
		} else {
			logger = schemarun.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)

	schemarun.SetDefaultLogger(logger)
	schemarun.EnableMasking(maskingEnabled)

	levelStr := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if levelStr == "" {
		levelStr = "info"
	}
	logger.Debug("logging configured",
		"level", levelStr,
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)

	return nil
}

// loadConfig reads the config file named by the --config flag / SCHEMARUN_CONFIG
// env var when present and returns the document together with the derived
// store configuration. An absent path yields defaults (sqlite, default table).
func loadConfig(configPath string) (*ConfigDoc, schemarun.StoreConfig, error) {
	var doc ConfigDoc
	if strings.TrimSpace(configPath) != "" {
		if err := doc.Load(configPath); err != nil {
			return nil, schemarun.StoreConfig{}, err
		}
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, schemarun.StoreConfig{}, err
	}
	storeCfg, err := doc.Store.ToStoreConfig()
	if err != nil {
		return nil, schemarun.StoreConfig{}, err
	}
	return &doc, storeCfg, nil
}
