// Package config loads the pulsemeter configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arloliu/go-scpi/console"
	"github.com/arloliu/go-scpi/link"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/scpi"
	"gopkg.in/yaml.v3"
)

// Config is the pulsemeter configuration. Zero values fall back to the defaults.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// FrequencyMHz fixes the carrier frequency; zero keeps auto tracking.
	FrequencyMHz float64 `yaml:"frequency_mhz"`
	// Mode is "average" or "directional".
	Mode string `yaml:"mode"`
	// StatusPolicy is "exclusive" or "independent".
	StatusPolicy    string        `yaml:"status_policy"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ErrorDrainLimit int           `yaml:"error_drain_limit"`

	Log LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives a JSON copy of every log record when set.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host:           link.DefaultHost,
		Port:           link.DefaultPort,
		Mode:           console.ModeAverage.String(),
		StatusPolicy:   scpi.PolicyExclusive.String(),
		SettleDelay:    scpi.DefaultSettleDelay,
		ConnectTimeout: link.DefaultConnectTimeout,
		Log: LogConfig{
			Level: logger.InfoLevel.String(),
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field that has a restricted domain.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", c.Port)
	}
	if c.FrequencyMHz < 0 {
		return fmt.Errorf("frequency_mhz %v must not be negative", c.FrequencyMHz)
	}
	if _, err := console.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := scpi.ParseStatusPolicy(c.StatusPolicy); err != nil {
		return err
	}
	if c.SettleDelay < 0 {
		return errors.New("settle_delay must not be negative")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	if c.ErrorDrainLimit < 0 {
		return errors.New("error_drain_limit must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// SessionOptions translates the configuration into session options.
func (c *Config) SessionOptions() ([]scpi.SessionOption, error) {
	policy, err := scpi.ParseStatusPolicy(c.StatusPolicy)
	if err != nil {
		return nil, err
	}

	opts := []scpi.SessionOption{
		scpi.WithStatusPolicy(policy),
		scpi.WithSettleDelay(c.SettleDelay),
		scpi.WithErrorDrainLimit(c.ErrorDrainLimit),
	}
	if c.FrequencyMHz > 0 {
		opts = append(opts, scpi.WithFrequencyMHz(c.FrequencyMHz))
	}

	return opts, nil
}
