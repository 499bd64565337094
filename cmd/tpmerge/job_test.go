package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleJob = `
input:
  path: logs/device1/00000001.csv
  format: csv
  base: /data
protocol:
  type: j1939
  bamId: "1CECFF00"
  targetIds: ["1CEBFF00"]
output:
  snapshot: merged.cbor
`

func writeJob(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJobFile(t *testing.T) {
	jf, err := loadJobFile(writeJob(t, sampleJob))
	if err != nil {
		t.Fatalf("loadJobFile: %v", err)
	}
	job, sc, err := jf.toJob(validConfig())
	if err != nil {
		t.Fatalf("toJob: %v", err)
	}
	if job.InputPath != "logs/device1/00000001.csv" || job.SnapshotPath != "merged.cbor" {
		t.Fatalf("job=%+v", job)
	}
	if len(job.TargetIDs) != 1 || job.TargetIDs[0] != 0x1CEBFF00 {
		t.Fatalf("targets=%v", job.TargetIDs)
	}
	if !job.Profile.HasBAM || job.Profile.BAMID != 0x1CECFF00 {
		t.Fatalf("profile=%+v", job.Profile)
	}
	if sc.S3 || sc.Base != "/data" {
		t.Fatalf("storage=%+v", sc)
	}
}

func TestLoadJobFile_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing_path", "input:\n  format: csv\nprotocol:\n  type: uds\n  targetIds: [\"7E8\"]\n", "input.path"},
		{"bad_format", "input:\n  path: a\n  format: mdf\nprotocol:\n  type: uds\n  targetIds: [\"7E8\"]\n", "input.format"},
		{"bad_protocol", "input:\n  path: a\n  format: csv\nprotocol:\n  type: isotp\n  targetIds: [\"7E8\"]\n", "protocol.type"},
		{"j1939_without_bam", "input:\n  path: a\n  format: csv\nprotocol:\n  type: j1939\n  targetIds: [\"7E8\"]\n", "bamId"},
		{"bam_on_uds", "input:\n  path: a\n  format: csv\nprotocol:\n  type: uds\n  bamId: \"1CECFF00\"\n  targetIds: [\"7E8\"]\n", "bamId"},
		{"no_targets", "input:\n  path: a\n  format: csv\nprotocol:\n  type: uds\n", "targetIds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadJobFile(writeJob(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestToJob_BadTargetID(t *testing.T) {
	jf, err := loadJobFile(writeJob(t, strings.Replace(sampleJob, "1CEBFF00", "zz!", 1)))
	if err != nil {
		t.Fatalf("loadJobFile: %v", err)
	}
	if _, _, err := jf.toJob(validConfig()); err == nil {
		t.Fatalf("expected error for invalid target id")
	}
}
