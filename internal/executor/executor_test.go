package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scenekeeper/internal/planner"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func movePlan(foreignID, source, target string) planner.Plan {
	return planner.Plan{
		ForeignID: foreignID,
		Primary:   planner.Action{Kind: planner.ActionMove, Source: source, Target: target},
	}
}

func TestRunAppliesPlans(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	e := New(filepath.Join(root, "actions.jsonl"), false)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Applied) != 1 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if exists(source) || !exists(target) {
		t.Error("file was not moved")
	}

	records, err := ReadLog(e.LogPath)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(records) != 1 || records[0].Target != target || records[0].RunID != result.RunID {
		t.Errorf("log records = %+v", records)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	logPath := filepath.Join(root, "actions.jsonl")
	e := New(logPath, true)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Applied) != 1 {
		t.Fatalf("dry run must report the same applied set, got %+v", result)
	}
	if !exists(source) || exists(target) {
		t.Error("dry run moved a file")
	}
	if exists(logPath) {
		t.Error("dry run wrote the action log")
	}
}

func TestRunSkipsNoOpsAndConflicts(t *testing.T) {
	root := t.TempDir()
	plans := []planner.Plan{
		{ForeignID: "a", Primary: planner.Action{Kind: planner.ActionNoOp}},
		{ForeignID: "b", Conflict: true,
			Primary: planner.Action{Kind: planner.ActionMove, Source: "x", Target: "y"}},
	}
	e := New(filepath.Join(root, "actions.jsonl"), false)
	result, err := e.Run(context.Background(), plans)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 2 || len(result.Applied) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestRunRefusesToClobber(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "new")
	writeFile(t, target, "existing")

	e := New(filepath.Join(root, "actions.jsonl"), false)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("result = %+v", result)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "existing" {
		t.Error("existing target was overwritten")
	}
	if !exists(source) {
		t.Error("source vanished despite failure")
	}
}

func TestRunRevertsUnitOnSidecarFailure(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	sidecar := filepath.Join(root, "incoming", "pilot.srt")
	targetDir := filepath.Join(root, "Acme")
	writeFile(t, source, "video")
	writeFile(t, sidecar, "subs")
	// Occupy the sidecar's destination so the second action fails.
	writeFile(t, filepath.Join(targetDir, "new.srt"), "occupied")

	plan := movePlan("guid-1", source, filepath.Join(targetDir, "new.mp4"))
	plan.Associated = []planner.Action{{
		Kind:   planner.ActionMove,
		Source: sidecar,
		Target: filepath.Join(targetDir, "new.srt"),
	}}

	e := New(filepath.Join(root, "actions.jsonl"), false)
	result, err := e.Run(context.Background(), []planner.Plan{plan})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 1 || len(result.Applied) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if !exists(source) || !exists(sidecar) {
		t.Error("unit was not reverted after sidecar failure")
	}
	if exists(filepath.Join(targetDir, "new.mp4")) {
		t.Error("primary left at target after revert")
	}
}

func TestRollbackRevertsNewestFirst(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	logPath := filepath.Join(root, "actions.jsonl")
	e := New(logPath, false)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rollback, err := Rollback(logPath, result.RunID, false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(rollback.Reverted) != 1 || len(rollback.Failed) != 0 {
		t.Fatalf("rollback = %+v", rollback)
	}
	if !exists(source) || exists(target) {
		t.Error("rollback did not restore the original layout")
	}
}

func TestRollbackFiltersByRunID(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	logPath := filepath.Join(root, "actions.jsonl")
	e := New(logPath, false)
	if _, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rollback, err := Rollback(logPath, "some-other-run", false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(rollback.Reverted) != 0 {
		t.Errorf("rollback touched a foreign run: %+v", rollback)
	}
	if !exists(target) {
		t.Error("file moved despite run filter")
	}
}

func TestRollbackSkipsMissingTargets(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	logPath := filepath.Join(root, "actions.jsonl")
	e := New(logPath, false)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := os.Remove(target); err != nil {
		t.Fatalf("remove: %v", err)
	}

	rollback, err := Rollback(logPath, result.RunID, false)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rollback.Skipped != 1 || len(rollback.Reverted) != 0 {
		t.Errorf("rollback = %+v", rollback)
	}
}

func TestRollbackDryRun(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "incoming", "pilot.mp4")
	target := filepath.Join(root, "Acme", "pilot.mp4")
	writeFile(t, source, "video")

	logPath := filepath.Join(root, "actions.jsonl")
	e := New(logPath, false)
	result, err := e.Run(context.Background(), []planner.Plan{movePlan("guid-1", source, target)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	rollback, err := Rollback(logPath, result.RunID, true)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(rollback.Reverted) != 1 {
		t.Fatalf("rollback = %+v", rollback)
	}
	if !exists(target) || exists(source) {
		t.Error("dry-run rollback moved a file")
	}
}
