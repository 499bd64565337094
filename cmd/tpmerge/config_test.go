package main

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		jobPath:   "job.yaml",
		logFormat: "text",
		logLevel:  "info",
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*appConfig)
		wantErr string
	}{
		{"ok", func(c *appConfig) {}, ""},
		{"missing_job", func(c *appConfig) { c.jobPath = "" }, "missing -job"},
		{"bad_format", func(c *appConfig) { c.logFormat = "xml" }, "invalid log-format"},
		{"bad_level", func(c *appConfig) { c.logLevel = "trace" }, "invalid log-level"},
		{"negative_parallel", func(c *appConfig) { c.parallel = -1 }, "parallel must be"},
		{"negative_interval", func(c *appConfig) { c.logMetricsEvery = -time.Second }, "log-metrics-interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfigValidate_Nil(t *testing.T) {
	var cfg *appConfig
	if err := cfg.validate(); err == nil {
		t.Fatalf("nil config must not validate")
	}
}
