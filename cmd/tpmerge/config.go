package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	jobPath         string
	logFormat       string
	logLevel        string
	logFile         string
	metricsAddr     string
	logMetricsEvery time.Duration
	parallel        int
	strict          bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	jobPath := flag.String("job", "", "Path to YAML job file (required)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	logFile := flag.String("log-file", "", "Log file path with rotation; empty logs to stderr")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	parallel := flag.Int("parallel", 0, "Max concurrent channel workers (0 = GOMAXPROCS)")
	strict := flag.Bool("strict", false, "Validate ISO-TP consecutive-frame counters (gaps are counted, not fatal)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.jobPath = *jobPath
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logFile = *logFile
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.parallel = *parallel
	cfg.strict = *strict

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open files or listeners – only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.jobPath == "" {
		return errors.New("missing -job (or TPMERGE_JOB)")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.parallel < 0 {
		return fmt.Errorf("parallel must be >= 0 (got %d)", c.parallel)
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps TPMERGE_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
// Duration accepts Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["job"]; !ok {
		if v, ok := get("TPMERGE_JOB"); ok && v != "" {
			c.jobPath = v
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("TPMERGE_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("TPMERGE_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["log-file"]; !ok {
		if v, ok := get("TPMERGE_LOG_FILE"); ok && v != "" {
			c.logFile = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("TPMERGE_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("TPMERGE_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TPMERGE_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["parallel"]; !ok {
		if v, ok := get("TPMERGE_PARALLEL"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.parallel = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TPMERGE_PARALLEL: %w", err)
			}
		}
	}
	if _, ok := set["strict"]; !ok {
		if v, ok := get("TPMERGE_STRICT"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.strict = true
			case "0", "false", "no", "off":
				c.strict = false
			}
		}
	}
	return firstErr
}
