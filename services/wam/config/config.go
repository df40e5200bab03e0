// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads wamlink settings.
//
// Values come from, in increasing priority: built-in defaults, a YAML
// file, and WAMLINK_* environment variables. The merged result is
// validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/wamlink/services/wam/reader"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// Config is the full wamlink configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Machine   MachineConfig   `yaml:"machine"`
	Image     ImageConfig     `yaml:"image"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogConfig controls pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// MachineConfig holds reader flags.
type MachineConfig struct {
	DoubleQuotes string `yaml:"double_quotes" validate:"oneof=codes chars atom"`
}

// ImageConfig locates the saved machine image.
type ImageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures `wamlink serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0,lte=1m"`
}

// TelemetryConfig selects the trace and metric exporters for serve.
type TelemetryConfig struct {
	Traces       string `yaml:"traces" validate:"oneof=none stdout otlp"`
	Metrics      string `yaml:"metrics" validate:"oneof=none prometheus"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"omitempty,hostname_port"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info"},
		Machine: MachineConfig{DoubleQuotes: "codes"},
		Server:  ServerConfig{Addr: "127.0.0.1:8787"},
		Watch:   WatchConfig{Debounce: 200 * time.Millisecond},
		Telemetry: TelemetryConfig{
			Traces:       "none",
			Metrics:      "prometheus",
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error; an empty path
// skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	loadEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("WAMLINK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WAMLINK_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("WAMLINK_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.JSON = b
		}
	}
	if v := os.Getenv("WAMLINK_DOUBLE_QUOTES"); v != "" {
		cfg.Machine.DoubleQuotes = v
	}
	if v := os.Getenv("WAMLINK_IMAGE"); v != "" {
		cfg.Image.Path = v
	}
	if v := os.Getenv("WAMLINK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("WAMLINK_TRACES"); v != "" {
		cfg.Telemetry.Traces = v
	}
	if v := os.Getenv("WAMLINK_METRICS"); v != "" {
		cfg.Telemetry.Metrics = v
	}
	if v := os.Getenv("WAMLINK_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("WAMLINK_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ReaderFlags converts the machine section into reader flags.
func (c *Config) ReaderFlags() (reader.Flags, error) {
	dq, err := reader.ParseDoubleQuotes(c.Machine.DoubleQuotes)
	if err != nil {
		return reader.Flags{}, err
	}
	return reader.Flags{DoubleQuotes: dq}, nil
}
