// Package config loads structsight settings from the environment.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wippyai/structsight/abi"
	"github.com/wippyai/structsight/errors"
)

// Environment variable names.
const (
	EnvArch            = "STRUCTSIGHT_ARCH"
	EnvCompiler        = "STRUCTSIGHT_COMPILER"
	EnvWorkers         = "STRUCTSIGHT_WORKERS"
	EnvCacheTTL        = "STRUCTSIGHT_CACHE_TTL"
	EnvCacheLine       = "STRUCTSIGHT_CACHE_LINE"
	EnvExhaustiveLimit = "STRUCTSIGHT_EXHAUSTIVE_LIMIT"
	EnvLogLevel        = "STRUCTSIGHT_LOG_LEVEL"
	EnvLogFormat       = "STRUCTSIGHT_LOG_FORMAT"
	EnvAddr            = "STRUCTSIGHT_ADDR"
)

type Config struct {
	// Default target
	Arch     string
	Compiler string

	// Analysis
	Workers         int
	CacheLine       uint64
	ExhaustiveLimit int
	CacheTTL        time.Duration

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // console, json

	// HTTP API
	Addr string
}

// Load reads an optional .env file from the working directory, then the
// environment. Every invalid setting is reported, not just the first.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	atoi := func(key, def string) int {
		n, err := strconv.Atoi(get(key, def))
		if err != nil {
			errs = append(errs, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("invalid %s: %v", key, err)))
		}
		return n
	}

	cfg := &Config{
		Arch:            get(EnvArch, "x64"),
		Compiler:        get(EnvCompiler, "clang"),
		Workers:         atoi(EnvWorkers, strconv.Itoa(runtime.GOMAXPROCS(0))),
		CacheLine:       uint64(atoi(EnvCacheLine, "64")),
		ExhaustiveLimit: atoi(EnvExhaustiveLimit, "7"),
		LogLevel:        strings.ToLower(get(EnvLogLevel, "info")),
		LogFormat:       strings.ToLower(get(EnvLogFormat, "console")),
		Addr:            get(EnvAddr, "127.0.0.1:7878"),
	}

	ttl, err := time.ParseDuration(get(EnvCacheTTL, "30s"))
	if err != nil {
		errs = append(errs, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("invalid %s: %v", EnvCacheTTL, err)))
	}
	cfg.CacheTTL = ttl

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n%w", stderrors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...)))
	}

	if _, err := abi.Resolve(c.Arch, c.Compiler); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 1 {
		invalid("%s must be positive (got: %d)", EnvWorkers, c.Workers)
	}
	if c.CacheLine == 0 || c.CacheLine&(c.CacheLine-1) != 0 {
		invalid("%s must be a power of two (got: %d)", EnvCacheLine, c.CacheLine)
	}
	if c.ExhaustiveLimit > 10 {
		// 10! candidates is the most a request should ever try
		invalid("%s must be at most 10 (got: %d)", EnvExhaustiveLimit, c.ExhaustiveLimit)
	}
	if c.CacheTTL < 0 {
		invalid("%s must not be negative (got: %s)", EnvCacheTTL, c.CacheTTL)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid("%s must be one of: debug, info, warn, error (got: %s)", EnvLogLevel, c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		invalid("%s must be one of: console, json (got: %s)", EnvLogFormat, c.LogFormat)
	}
	return errs
}
