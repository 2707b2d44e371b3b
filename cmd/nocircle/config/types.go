// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the YAML configuration of the nocircle CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/nocircle/pkg/logging"
	"github.com/AleutianAI/nocircle/services/nocircle/geometry"
	"github.com/AleutianAI/nocircle/services/nocircle/search"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Search    SearchConfig    `yaml:"search"`
	Predicate PredicateConfig `yaml:"predicate"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type GridConfig struct {
	// Side is the largest coordinate H; the grid is (H+1)x(H+1).
	Side int `yaml:"side" validate:"gte=0,lte=16384"`
}

type SearchConfig struct {
	MinSize          int    `yaml:"min_size" validate:"gte=1"`
	MaxSize          int    `yaml:"max_size" validate:"gtefield=MinSize"`
	ProgressInterval uint64 `yaml:"progress_interval" validate:"gt=0"`
	Workers          int    `yaml:"workers" validate:"gte=1,lte=1024"`
}

type PredicateConfig struct {
	Epsilon     float64 `yaml:"epsilon" validate:"gt=0"`
	Tolerance   string  `yaml:"tolerance" validate:"oneof=absolute relative"`
	Determinant string  `yaml:"determinant" validate:"oneof=cofactor lu"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`

	// Quiet drops the stderr stream when Dir is set.
	Quiet bool `yaml:"quiet"`
}

type TelemetryConfig struct {
	// MetricsAddr serves Prometheus /metrics when set, e.g. ":9464".
	MetricsAddr string `yaml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`

	// TraceStdout prints OpenTelemetry spans to stderr.
	TraceStdout bool `yaml:"trace_stdout"`
}

// DefaultConfig returns the reference search: 7x7 grid, n from 13 to 25,
// progress every ten million combinations, absolute 1e-12 cofactor
// predicate, one worker.
func DefaultConfig() Config {
	p := search.DefaultParams()
	return Config{
		Grid: GridConfig{Side: p.Side},
		Search: SearchConfig{
			MinSize:          p.MinSize,
			MaxSize:          p.MaxSize,
			ProgressInterval: p.ProgressInterval,
			Workers:          p.Workers,
		},
		Predicate: PredicateConfig{
			Epsilon:     p.Predicate.Epsilon,
			Tolerance:   p.Predicate.Tolerance.String(),
			Determinant: p.Predicate.Method.String(),
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field size limit.
func (c *Config) Validate() error {
	c.normalize()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if points := (c.Grid.Side + 1) * (c.Grid.Side + 1); c.Search.MaxSize > points {
		return fmt.Errorf("%w: search.max_size %d exceeds the %d points of a side-%d grid",
			ErrInvalidConfig, c.Search.MaxSize, points, c.Grid.Side)
	}
	if c.Predicate.Tolerance == "absolute" && c.Grid.Side > geometry.MaxExactFloatSide {
		return fmt.Errorf("%w: predicate.tolerance absolute is inexact for grid.side %d > %d; use relative: %w",
			ErrInvalidConfig, c.Grid.Side, geometry.MaxExactFloatSide, geometry.ErrInexactTolerance)
	}
	return nil
}

// normalize lower-cases the enumerated string fields.
func (c *Config) normalize() {
	c.Predicate.Tolerance = strings.ToLower(strings.TrimSpace(c.Predicate.Tolerance))
	c.Predicate.Determinant = strings.ToLower(strings.TrimSpace(c.Predicate.Determinant))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// ToParams validates c and converts it to search parameters.
func (c Config) ToParams() (search.Params, error) {
	if err := c.Validate(); err != nil {
		return search.Params{}, err
	}
	tol, err := geometry.ParseTolerance(c.Predicate.Tolerance)
	if err != nil {
		return search.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	method, err := geometry.ParseDeterminantMethod(c.Predicate.Determinant)
	if err != nil {
		return search.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	params := search.Params{
		Side:             c.Grid.Side,
		MinSize:          c.Search.MinSize,
		MaxSize:          c.Search.MaxSize,
		ProgressInterval: c.Search.ProgressInterval,
		Workers:          c.Search.Workers,
		Predicate: geometry.Predicate{
			Epsilon:   c.Predicate.Epsilon,
			Tolerance: tol,
			Method:    method,
		},
	}
	if err := params.Validate(); err != nil {
		return search.Params{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return params, nil
}

// LoggerConfig converts the logging section for pkg/logging.
func (c Config) LoggerConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Quiet:   c.Logging.Quiet,
		Service: "nocircle",
		JSON:    c.Logging.JSON,
	}, nil
}
