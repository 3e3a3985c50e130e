package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"scenekeeper/internal/planner"
)

// Record is one applied action as written to the action log, one JSON
// object per line. The log is the source of truth for rollback.
type Record struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	ForeignID string    `json:"foreign_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
}

// Failure pairs a plan with the error that stopped it.
type Failure struct {
	ForeignID string `json:"foreign_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Error     string `json:"error"`
}

// Result summarizes one execution run.
type Result struct {
	RunID   string    `json:"run_id"`
	DryRun  bool      `json:"dry_run"`
	Applied []Record  `json:"applied"`
	Failed  []Failure `json:"failed"`
	Skipped int       `json:"skipped"`
}

// Executor applies relocation plans. In dry-run mode it walks the exact
// same decision path and produces the same result records, but touches
// neither the filesystem nor the action log.
type Executor struct {
	LogPath string
	DryRun  bool
	Workers int
}

// New builds an executor writing its action log to logPath.
func New(logPath string, dryRun bool) *Executor {
	return &Executor{
		LogPath: logPath,
		DryRun:  dryRun,
		Workers: runtime.NumCPU(),
	}
}

// Run executes the given plans. Plans are grouped by target directory and
// the groups run concurrently; within a group plans apply one at a time, so
// two plans can never race on the same destination. No-op and conflicting
// plans are skipped and counted. A scene's video and sidecars apply as a
// unit: if any piece fails, the pieces already moved are put back and the
// whole unit is reported failed.
func (e *Executor) Run(ctx context.Context, plans []planner.Plan) (*Result, error) {
	result := &Result{
		RunID:  uuid.NewString(),
		DryRun: e.DryRun,
	}

	groups := make(map[string][]planner.Plan)
	for _, plan := range plans {
		if plan.IsNoOp() || plan.Conflict {
			if plan.Conflict {
				log.WithField("foreign_id", plan.ForeignID).
					WithField("reason", plan.Reason).Warn("skipping conflicting plan")
			}
			result.Skipped++
			continue
		}
		dir := filepath.Dir(plan.Primary.Target)
		groups[dir] = append(groups[dir], plan)
	}

	var logger *actionLogger
	if !e.DryRun {
		var err error
		logger, err = openActionLogger(e.LogPath)
		if err != nil {
			return nil, err
		}
		defer logger.Close()
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	groupCh := make(chan []planner.Plan, len(groups))
	for _, group := range groups {
		groupCh <- group
	}
	close(groupCh)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupCh {
				for _, plan := range group {
					if ctx.Err() != nil {
						return
					}
					applied, failure := e.applyPlan(plan, result.RunID, logger)
					mu.Lock()
					result.Applied = append(result.Applied, applied...)
					if failure != nil {
						result.Failed = append(result.Failed, *failure)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// applyPlan moves a scene's files. All actions of the plan succeed or the
// plan's completed actions are reverted.
func (e *Executor) applyPlan(plan planner.Plan, runID string, logger *actionLogger) ([]Record, *Failure) {
	actions := append([]planner.Action{plan.Primary}, plan.Associated...)

	var done []planner.Action
	for _, action := range actions {
		if err := e.apply(action); err != nil {
			e.revert(done)
			return nil, &Failure{
				ForeignID: plan.ForeignID,
				Source:    action.Source,
				Target:    action.Target,
				Error:     err.Error(),
			}
		}
		done = append(done, action)
	}

	records := make([]Record, 0, len(done))
	for _, action := range done {
		record := Record{
			RunID:     runID,
			Timestamp: time.Now().UTC(),
			ForeignID: plan.ForeignID,
			Kind:      string(action.Kind),
			Source:    action.Source,
			Target:    action.Target,
		}
		records = append(records, record)
		if logger != nil {
			if err := logger.Append(record); err != nil {
				log.WithError(err).Error("action log write failed")
			}
		}
		verb := "moved"
		switch action.Kind {
		case planner.ActionRename:
			verb = "renamed"
		case planner.ActionMoveAndRename:
			verb = "moved and renamed"
		}
		if e.DryRun {
			verb = "would have " + verb
		}
		log.WithField("source", action.Source).WithField("target", action.Target).Info(verb)
	}
	return records, nil
}

func (e *Executor) apply(action planner.Action) error {
	if e.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(action.Target), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	// Refuse to clobber: the planner checked for conflicts, but the
	// filesystem may have changed since.
	if _, err := os.Stat(action.Target); err == nil {
		return fmt.Errorf("target appeared since planning: %s", action.Target)
	}
	if err := os.Rename(action.Source, action.Target); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (e *Executor) revert(done []planner.Action) {
	if e.DryRun {
		return
	}
	for i := len(done) - 1; i >= 0; i-- {
		action := done[i]
		if err := os.Rename(action.Target, action.Source); err != nil {
			log.WithField("target", action.Target).WithError(err).Error("revert failed")
		}
	}
}

// actionLogger appends records to the JSONL action log.
type actionLogger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func openActionLogger(path string) (*actionLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create action log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	return &actionLogger{f: f, enc: json.NewEncoder(f)}, nil
}

func (l *actionLogger) Append(record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(record)
}

func (l *actionLogger) Close() error {
	return l.f.Close()
}
