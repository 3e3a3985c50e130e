package executor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
)

// ReadLog parses the JSONL action log. Records of all runs are returned in
// append order; malformed lines are skipped with a warning so one bad line
// cannot make the whole history unreadable.
func ReadLog(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			log.WithField("line", line).WithError(err).Warn("skipping malformed action log line")
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}
	return records, nil
}

// RollbackResult summarizes a replay of the action log in reverse.
type RollbackResult struct {
	Reverted []Record  `json:"reverted"`
	Failed   []Failure `json:"failed"`
	Skipped  int       `json:"skipped"`
}

// Rollback undoes logged actions by moving each target back to its source,
// newest first. If runID is non-empty only that run is reverted. Actions
// whose target no longer exists are skipped; an occupied source is a
// failure, never overwritten.
func Rollback(logPath, runID string, dryRun bool) (*RollbackResult, error) {
	records, err := ReadLog(logPath)
	if err != nil {
		return nil, err
	}

	result := &RollbackResult{}
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if runID != "" && record.RunID != runID {
			continue
		}

		if _, err := os.Stat(record.Target); err != nil {
			log.WithField("target", record.Target).Debug("rollback target missing, skipping")
			result.Skipped++
			continue
		}
		if _, err := os.Stat(record.Source); err == nil {
			result.Failed = append(result.Failed, Failure{
				ForeignID: record.ForeignID,
				Source:    record.Target,
				Target:    record.Source,
				Error:     fmt.Sprintf("original location occupied: %s", record.Source),
			})
			continue
		}

		if dryRun {
			log.WithField("source", record.Target).WithField("target", record.Source).
				Info("would have reverted")
			result.Reverted = append(result.Reverted, record)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(record.Source), 0o755); err != nil {
			result.Failed = append(result.Failed, Failure{
				ForeignID: record.ForeignID,
				Source:    record.Target,
				Target:    record.Source,
				Error:     err.Error(),
			})
			continue
		}
		if err := os.Rename(record.Target, record.Source); err != nil {
			result.Failed = append(result.Failed, Failure{
				ForeignID: record.ForeignID,
				Source:    record.Target,
				Target:    record.Source,
				Error:     err.Error(),
			})
			continue
		}
		log.WithField("source", record.Target).WithField("target", record.Source).Info("reverted")
		result.Reverted = append(result.Reverted, record)
	}
	return result, nil
}
