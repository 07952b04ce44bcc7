package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/benbjohnson/ackermann"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvMaxArrayWidth = "ACKERMANN_MAX_ARRAY_WIDTH"
	EnvSharing       = "ACKERMANN_SHARING"
	EnvLogLevel      = "ACKERMANN_LOG_LEVEL"
)

// Config represents the settings of the analyze command.
type Config struct {
	MaxArrayWidth uint   `yaml:"max_array_width"`
	Sharing       string `yaml:"sharing"`
	Verify        bool   `yaml:"verify"`
	Jobs          int    `yaml:"jobs"` // zero uses one job per CPU
	LogLevel      string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when nothing else is specified.
func DefaultConfig() Config {
	return Config{
		MaxArrayWidth: ackermann.DefaultMaxArrayWidth,
		Sharing:       ackermann.VisitOnce.String(),
		LogLevel:      log.InfoLevel.String(),
	}
}

// ReadFile decodes a YAML config file into c. Settings missing from the file
// keep their current values. Unknown settings are an error.
func (c *Config) ReadFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("decode config %s: %w", filename, err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment. Empty variables are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if s := getenv(EnvMaxArrayWidth); s != "" {
		v, err := strconv.ParseUint(s, 10, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxArrayWidth, err)
		}
		c.MaxArrayWidth = uint(v)
	}
	if s := getenv(EnvSharing); s != "" {
		c.Sharing = s
	}
	if s := getenv(EnvLogLevel); s != "" {
		c.LogLevel = s
	}
	return nil
}

// Validate returns an error if any setting is invalid.
func (c *Config) Validate() error {
	if c.MaxArrayWidth == 0 {
		return fmt.Errorf("max array width must be greater than zero")
	} else if _, err := ackermann.ParseSharingMode(c.Sharing); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	} else if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative: %d", c.Jobs)
	} else if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SharingMode returns the parsed sharing mode. Config must be valid.
func (c *Config) SharingMode() ackermann.SharingMode {
	mode, err := ackermann.ParseSharingMode(c.Sharing)
	if err != nil {
		panic(err)
	}
	return mode
}
