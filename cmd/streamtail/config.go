package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	docstream "github.com/docstream/docstream.go"
)

// streamtail config.toml key mapping to runtime settings.
type fileConfig struct {
	Endpoint       string `toml:"endpoint"`
	BackoffInitial string `toml:"backoff_initial"`
	BackoffMax     string `toml:"backoff_max"`
	LogLevel       string `toml:"log_level"`
	Pretty         bool   `toml:"pretty"`
}

type tailConfig struct {
	Endpoint string
	Backoff  docstream.Backoff
	LogLevel zerolog.Level
	Pretty   bool
}

func defaultConfig() tailConfig {
	return tailConfig{
		Backoff:  docstream.DefaultBackoff,
		LogLevel: zerolog.InfoLevel,
	}
}

// loadConfig reads a TOML file over the defaults. Keys absent from the
// file keep their default values.
func loadConfig(path string) (tailConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return tailConfig{}, fmt.Errorf("load streamtail config: %w", err)
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffInitial))
		if err != nil {
			return tailConfig{}, fmt.Errorf("parse backoff_initial: %w", err)
		}
		cfg.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return tailConfig{}, fmt.Errorf("parse backoff_max: %w", err)
		}
		cfg.Backoff.MaxDelay = d
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return tailConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("pretty") {
		cfg.Pretty = raw.Pretty
	}

	return cfg, nil
}

// resolveConfig layers the three setting sources: defaults, then the
// config file if one was named, then flag values on top. The endpoint must
// be set somewhere.
func resolveConfig(configPath, endpoint string, pretty bool) (tailConfig, error) {
	cfg := defaultConfig()
	if configPath != "" {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return tailConfig{}, err
		}
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if pretty {
		cfg.Pretty = true
	}
	if cfg.Endpoint == "" {
		return tailConfig{}, errors.New("no endpoint: pass -endpoint or set it in the config file")
	}
	return cfg, nil
}
