package main

import (
	"testing"
	"time"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TPMERGE_JOB", "env-job.yaml")
	t.Setenv("TPMERGE_LOG_LEVEL", "debug")
	t.Setenv("TPMERGE_PARALLEL", "4")
	t.Setenv("TPMERGE_STRICT", "yes")
	t.Setenv("TPMERGE_LOG_METRICS_INTERVAL", "30s")

	cfg := validConfig()
	if err := applyEnvOverrides(cfg, map[string]struct{}{}); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}
	if cfg.jobPath != "env-job.yaml" || cfg.logLevel != "debug" || cfg.parallel != 4 || !cfg.strict {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.logMetricsEvery != 30*time.Second {
		t.Fatalf("interval=%v", cfg.logMetricsEvery)
	}
}

func TestApplyEnvOverrides_FlagWins(t *testing.T) {
	t.Setenv("TPMERGE_JOB", "env-job.yaml")
	cfg := validConfig()
	cfg.jobPath = "flag-job.yaml"
	if err := applyEnvOverrides(cfg, map[string]struct{}{"job": {}}); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}
	if cfg.jobPath != "flag-job.yaml" {
		t.Fatalf("flag must take precedence, got %q", cfg.jobPath)
	}
}

func TestApplyEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("TPMERGE_PARALLEL", "many")
	cfg := validConfig()
	if err := applyEnvOverrides(cfg, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for invalid TPMERGE_PARALLEL")
	}
}
