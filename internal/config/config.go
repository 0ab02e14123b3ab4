// Package config loads and validates the optional hsrdriver YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "hsrdriver.yaml"

// Default values for supervision and installation layout.
const (
	DefaultTimeout         = 120 * time.Second
	DefaultTimeoutNoOutput = 900 * time.Second
	DefaultTerminateGrace  = 5 * time.Second
	DefaultAssistantDir    = "March7thAssistant"
	DefaultUniverseDir     = "Auto_Simulated_Universe"
	DefaultHTTPAddr        = "0.0.0.0:10003"
)

// Config holds the parsed hsrdriver configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	RawAssistantDir    string   `yaml:"assistant_dir"`
	RawUniverseDir     string   `yaml:"universe_dir"`
	RawPython          string   `yaml:"python"`            // assistant interpreter
	RawTimeout         string   `yaml:"timeout"`           // e.g. "2m", "120s"
	RawTimeoutNoOutput string   `yaml:"timeout_no_output"` // inactivity window
	RawTerminateGrace  string   `yaml:"terminate_grace"`
	LogLevel           string   `yaml:"log_level"`
	RawHTTPAddr        string   `yaml:"http_addr"`
	BenignErrors       []string `yaml:"benign_errors"` // extra substrings that make an ERROR line harmless

	// base resolves relative directories. It is the config file's directory,
	// or the working directory when there is no file.
	base string
}

// Timeout returns how long Run and Wait block before answering.
func (c *Config) Timeout() time.Duration {
	return duration(c.RawTimeout, DefaultTimeout)
}

// TimeoutNoOutput returns the inactivity window after which monitoring stops.
func (c *Config) TimeoutNoOutput() time.Duration {
	return duration(c.RawTimeoutNoOutput, DefaultTimeoutNoOutput)
}

// TerminateGrace returns how long a stopped process gets before being killed.
func (c *Config) TerminateGrace() time.Duration {
	return duration(c.RawTerminateGrace, DefaultTerminateGrace)
}

// AssistantDir returns the March7thAssistant install directory.
func (c *Config) AssistantDir() string {
	return c.dir(c.RawAssistantDir, DefaultAssistantDir)
}

// UniverseDir returns the Auto_Simulated_Universe install directory.
func (c *Config) UniverseDir() string {
	return c.dir(c.RawUniverseDir, DefaultUniverseDir)
}

// Python returns the interpreter that runs the assistant, by default the
// one in its virtual environment. A bare name such as "python3" is left for
// the PATH lookup at launch.
func (c *Config) Python() string {
	if c.RawPython != "" {
		if filepath.Base(c.RawPython) == c.RawPython {
			return c.RawPython
		}
		return c.dir(c.RawPython, "")
	}
	return VenvPython(c.AssistantDir())
}

// HTTPAddr returns the listen address of the JSON HTTP API.
func (c *Config) HTTPAddr() string {
	if c.RawHTTPAddr != "" {
		return c.RawHTTPAddr
	}
	return DefaultHTTPAddr
}

// VenvPython returns the interpreter of the Windows virtual environment in dir.
func VenvPython(dir string) string {
	return filepath.Join(dir, ".venv", "Scripts", "python.exe")
}

func (c *Config) dir(raw, def string) string {
	p := raw
	if p == "" {
		p = def
	}
	if filepath.IsAbs(p) || c.base == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(c.base, p)
}

func duration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// Load reads the config file at path. An empty path means DefaultFile in
// the working directory, and a missing default file yields a default Config.
// A path given explicitly must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		path = filepath.Join(wd, DefaultFile)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	base := filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{base: base}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(abs), err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(abs), err)
	}
	cfg.base = base
	return cfg, nil
}
