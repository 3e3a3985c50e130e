package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/executor"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.00 TB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, result, tt.expected)
		}
	}
}

func sampleReport() Report {
	return Report{
		RunID:        "run-1",
		Timestamp:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LibraryPaths: []string{"/media/scenes"},
		ScenesTotal:  10,
		ScenesFound:  8,
		Applied: []executor.Record{
			{RunID: "run-1", ForeignID: "guid-1", Kind: "move",
				Source: "/media/scenes/incoming/a.mp4", Target: "/media/scenes/Acme/a.mp4"},
		},
		Failed: []executor.Failure{
			{ForeignID: "guid-2", Source: "/media/scenes/b.mp4",
				Target: "/media/scenes/Acme/b.mp4", Error: "permission denied"},
		},
	}
}

func TestGenerateWritesTextAndJSON(t *testing.T) {
	dir := t.TempDir()
	textPath, err := Generate(dir, sampleReport())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	content, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	text := string(content)
	for _, want := range []string{"SCENEKEEPER RUN REPORT", "run-1", "FAILURES", "permission denied"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q", want)
		}
	}

	jsonPath := strings.TrimSuffix(textPath, ".txt") + ".json"
	payload, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json report: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode json report: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Applied) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestFromDedupe(t *testing.T) {
	var report Report
	report.FromDedupe(catalog.DedupeResult{
		Removed:   []catalog.RemovedScene{{}, {}},
		Reclaimed: 4096,
	})
	if report.DuplicatesRemoved != 2 || report.SpaceReclaimed != 4096 {
		t.Errorf("report = %+v", report)
	}
}

func TestDryRunMarkedInText(t *testing.T) {
	report := sampleReport()
	report.DryRun = true
	content := buildReportContent(report)
	if !strings.Contains(content, "DRY RUN") {
		t.Error("dry-run report not marked")
	}
}

func TestCleanupRemovesOldReports(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "20240101_120000.txt")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -(RetentionDays + 1))
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh := filepath.Join(dir, "20250601_120000.txt")
	if err := os.WriteFile(fresh, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Cleanup(dir); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old report survived cleanup")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh report removed by cleanup")
	}
}

func TestCleanupMissingDir(t *testing.T) {
	if err := Cleanup(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("Cleanup on missing dir: %v", err)
	}
}
