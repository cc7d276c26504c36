// Package config loads the allday settings file
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given
const DefaultPath = "allday.yaml"

// Settings represents the YAML configuration structure
type Settings struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Store struct {
		Path string        `yaml:"path"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"store"`
	Fetch struct {
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
		MaxBytes  int64         `yaml:"max_bytes"`
	} `yaml:"fetch"`
	Page struct {
		NowIndicator string `yaml:"now_indicator"`
	} `yaml:"page"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the settings used when no file is present
func Default() *Settings {
	s := &Settings{}
	s.Server.Addr = ":8080"
	s.Store.Path = "allday.db"
	s.Store.TTL = time.Minute
	s.Fetch.Timeout = 30 * time.Second
	s.Fetch.UserAgent = "allday/1.0 (broadcast schedule)"
	s.Fetch.MaxBytes = 5 * 1024 * 1024
	s.Page.NowIndicator = "jetzt"
	s.Logging.Level = "info"
	return s
}

// Load reads the settings file at path over the defaults. A missing file
// at the default path is not an error.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	s := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings YAML: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative: %s", s.Store.TTL)
	}
	if s.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive: %s", s.Fetch.Timeout)
	}
	if s.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be positive: %d", s.Fetch.MaxBytes)
	}
	return nil
}
