package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/executor"
	"scenekeeper/internal/matcher"
)

// RetentionDays is how long generated reports are kept before Cleanup
// removes them.
const RetentionDays = 30

// Report captures one full reconciliation run.
type Report struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	DryRun       bool      `json:"dry_run"`
	LibraryPaths []string  `json:"library_paths"`

	ScenesTotal   int `json:"scenes_total"`
	ScenesFound   int `json:"scenes_found"`
	ScenesMissing int `json:"scenes_missing"`
	FilesScanned  int `json:"files_scanned"`

	DuplicatesRemoved int   `json:"duplicates_removed"`
	SpaceReclaimed    int64 `json:"space_reclaimed"`

	Candidates []matcher.Candidate `json:"candidates,omitempty"`

	Applied []executor.Record  `json:"applied,omitempty"`
	Failed  []executor.Failure `json:"failed,omitempty"`
	Skipped int                `json:"skipped"`
}

// FromDedupe folds a duplicate resolution into the report.
func (r *Report) FromDedupe(result catalog.DedupeResult) {
	r.DuplicatesRemoved = len(result.Removed)
	r.SpaceReclaimed = result.Reclaimed
}

// FromExecution folds an execution result into the report.
func (r *Report) FromExecution(result *executor.Result) {
	r.RunID = result.RunID
	r.DryRun = result.DryRun
	r.Applied = result.Applied
	r.Failed = result.Failed
	r.Skipped = result.Skipped
}

// Generate writes the report as both human-readable text and JSON under
// dir, returning the text file's path.
func Generate(dir string, report Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := report.Timestamp.Format("20060102_150405")
	textPath := filepath.Join(dir, timestamp+".txt")
	jsonPath := filepath.Join(dir, timestamp+".json")

	if err := os.WriteFile(textPath, []byte(buildReportContent(report)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return textPath, nil
}

// DefaultDir returns where reports live when not configured explicitly.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/scenekeeper/reports"
	}
	return filepath.Join(home, ".local/share/scenekeeper/reports")
}

// buildReportContent generates the report text
func buildReportContent(report Report) string {
	var sb strings.Builder

	sb.WriteString("SCENEKEEPER RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n", report.Timestamp.Format("2006-01-02 15:04:05")))
	if report.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run ID: %s\n", report.RunID))
	}
	if report.DryRun {
		sb.WriteString("Mode: DRY RUN (no files were touched)\n")
	}
	sb.WriteString(fmt.Sprintf("Library Paths: %s\n", strings.Join(report.LibraryPaths, ", ")))
	sb.WriteString("\n")

	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Scenes in catalog: %d\n", report.ScenesTotal))
	sb.WriteString(fmt.Sprintf("Scenes found on disk: %d\n", report.ScenesFound))
	sb.WriteString(fmt.Sprintf("Scenes missing: %d\n", report.ScenesMissing))
	sb.WriteString(fmt.Sprintf("Files scanned: %d\n", report.FilesScanned))
	sb.WriteString(fmt.Sprintf("Duplicate records removed: %d\n", report.DuplicatesRemoved))
	sb.WriteString(fmt.Sprintf("Space reclaimed: %s\n", formatBytes(report.SpaceReclaimed)))
	sb.WriteString(fmt.Sprintf("Actions applied: %d\n", len(report.Applied)))
	sb.WriteString(fmt.Sprintf("Actions failed: %d\n", len(report.Failed)))
	sb.WriteString(fmt.Sprintf("Plans skipped: %d\n", report.Skipped))
	sb.WriteString("\n")

	if len(report.Applied) > 0 {
		sb.WriteString("APPLIED ACTIONS\n")
		sb.WriteString(strings.Repeat("=", 80) + "\n")
		for _, record := range report.Applied {
			sb.WriteString(fmt.Sprintf("%s %s\n", strings.ToUpper(record.Kind), record.Source))
			sb.WriteString(fmt.Sprintf("  -> %s\n", record.Target))
		}
		sb.WriteString("\n")
	}

	if len(report.Failed) > 0 {
		sb.WriteString("FAILURES\n")
		sb.WriteString(strings.Repeat("=", 80) + "\n")
		for i, failure := range report.Failed {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, failure.ForeignID))
			sb.WriteString(fmt.Sprintf("   %s -> %s\n", failure.Source, failure.Target))
			sb.WriteString(fmt.Sprintf("   Error: %s\n\n", failure.Error))
		}
	}

	if len(report.Candidates) > 0 {
		sb.WriteString("MATCH CANDIDATES\n")
		sb.WriteString(strings.Repeat("=", 80) + "\n")
		for _, c := range report.Candidates {
			sb.WriteString(fmt.Sprintf("%s (title %d", c.Title, c.TitleScore))
			if c.DateScore > 0 {
				sb.WriteString(fmt.Sprintf(", date %s", c.MatchedDate))
			}
			if c.DurationScore > 0 {
				sb.WriteString(fmt.Sprintf(", duration %.1fm", c.ProbedDuration))
			}
			if c.PerformersScore > 0 {
				sb.WriteString(fmt.Sprintf(", performers %d", c.PerformersScore))
			}
			sb.WriteString(")\n")
			sb.WriteString(fmt.Sprintf("  %s\n", c.Path))
		}
	}

	return sb.String()
}

// Cleanup removes report files older than RetentionDays.
func Cleanup(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read report directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.WithField("path", path).WithError(err).Warn("failed to remove old report")
				continue
			}
			log.WithField("path", path).Debug("removed old report")
		}
	}
	return nil
}

// formatBytes formats byte count to human-readable size
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
