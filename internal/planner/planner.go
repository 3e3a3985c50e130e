package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/config"
	"scenekeeper/internal/renamer"
)

// ActionKind describes what a planned action changes.
type ActionKind string

const (
	ActionNoOp          ActionKind = "noop"
	ActionRename        ActionKind = "rename" // same directory, new name
	ActionMove          ActionKind = "move"   // new directory, same name
	ActionMoveAndRename ActionKind = "move_and_rename"
)

// Action is one planned file operation.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Source string     `json:"source"`
	Target string     `json:"target"`
}

// Plan is the full set of actions for one matched scene: the video file and
// its sidecars, which always travel together.
type Plan struct {
	SceneID    int64    `json:"scene_id"`
	ForeignID  string   `json:"foreign_id"`
	Primary    Action   `json:"primary"`
	Associated []Action `json:"associated,omitempty"`
	// Reason is set when the plan is a no-op or a conflict.
	Reason string `json:"reason,omitempty"`
	// Conflict marks a plan whose target already exists as a different
	// file. Conflicting plans are never executed.
	Conflict bool `json:"conflict,omitempty"`
}

// IsNoOp reports whether executing the plan would change nothing.
func (p Plan) IsNoOp() bool { return p.Primary.Kind == ActionNoOp }

// Planner turns matched scenes into relocation plans. Planning reads the
// filesystem (to discover sidecars and detect conflicts) but never writes.
type Planner struct {
	cfg     config.RenameConfig
	renamer *renamer.Renamer
	roots   []string
}

// New builds a planner over the given library roots.
func New(cfg config.RenameConfig, roots []string) (*Planner, error) {
	r, err := renamer.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Planner{cfg: cfg, renamer: r, roots: roots}, nil
}

// Plan computes the action set for a scene whose video lives at path.
// Exclusion wins over everything: a file under an excluded prefix yields a
// no-op before any name synthesis happens.
func (p *Planner) Plan(scene catalog.Scene, path string) (Plan, error) {
	plan := Plan{SceneID: scene.ID, ForeignID: scene.ForeignID}

	if prefix, excluded := p.excludedBy(path); excluded {
		plan.Primary = Action{Kind: ActionNoOp, Source: path, Target: path}
		plan.Reason = fmt.Sprintf("path under excluded prefix %s", prefix)
		return plan, nil
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	if p.cfg.EnableRename {
		rendered, err := p.renamer.Render(scene)
		if err != nil {
			return Plan{}, err
		}
		stem = rendered
		ext = strings.ToLower(ext)
	}

	dir := filepath.Dir(path)
	if p.cfg.EnableMove {
		dir = p.targetDir(scene, path)
	}

	target := filepath.Join(dir, stem+ext)
	plan.Primary = p.action(path, target)

	if plan.Primary.Kind == ActionNoOp {
		plan.Reason = "already in place"
		return plan, nil
	}

	if conflicts(path, target) {
		plan.Conflict = true
		plan.Reason = fmt.Sprintf("target already exists: %s", target)
		return plan, nil
	}

	for _, sidecar := range p.findAssociated(path) {
		sidecarExt := strings.ToLower(filepath.Ext(sidecar))
		sidecarTarget := filepath.Join(dir, stem+sidecarExt)
		action := p.action(sidecar, sidecarTarget)
		if action.Kind == ActionNoOp {
			continue
		}
		if conflicts(sidecar, sidecarTarget) {
			plan.Conflict = true
			plan.Reason = fmt.Sprintf("sidecar target already exists: %s", sidecarTarget)
			return plan, nil
		}
		plan.Associated = append(plan.Associated, action)
	}

	return plan, nil
}

// PlanAll plans every (scene, path) pair, logging and skipping scenes whose
// rendering fails rather than aborting the batch.
func (p *Planner) PlanAll(scenes []catalog.Scene) []Plan {
	plans := make([]Plan, 0, len(scenes))
	for _, scene := range scenes {
		if scene.LocalPath == "" {
			continue
		}
		plan, err := p.Plan(scene, scene.LocalPath)
		if err != nil {
			log.WithField("foreign_id", scene.ForeignID).WithError(err).Error("planning failed")
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

func (p *Planner) action(source, target string) Action {
	if source == target {
		return Action{Kind: ActionNoOp, Source: source, Target: target}
	}
	moved := filepath.Dir(source) != filepath.Dir(target)
	renamed := filepath.Base(source) != filepath.Base(target)
	var kind ActionKind
	switch {
	case moved && renamed:
		kind = ActionMoveAndRename
	case moved:
		kind = ActionMove
	default:
		kind = ActionRename
	}
	return Action{Kind: kind, Source: source, Target: target}
}

func (p *Planner) excludedBy(path string) (string, bool) {
	for _, prefix := range p.cfg.ExcludePaths {
		cleaned := filepath.Clean(prefix)
		if path == cleaned || strings.HasPrefix(path, cleaned+string(filepath.Separator)) {
			return prefix, true
		}
	}
	return "", false
}

// targetDir resolves where the scene's files belong. Tag routing has the
// highest precedence, then a studio directory under the library root that
// contains the file. A file outside every configured root stays in its
// current directory.
func (p *Planner) targetDir(scene catalog.Scene, path string) string {
	for _, tag := range scene.Tags {
		for configured, dir := range p.cfg.TagSpecificPaths {
			if strings.EqualFold(tag, configured) {
				return filepath.Clean(dir)
			}
		}
	}

	root, ok := p.containingRoot(path)
	if !ok {
		return filepath.Dir(path)
	}

	studio := strings.TrimSpace(scene.Studio)
	if studio == "" {
		studio = p.cfg.DefaultStudio
	}
	if studio == "" {
		return filepath.Dir(path)
	}
	return filepath.Join(root, renamer.Sanitize(studio))
}

func (p *Planner) containingRoot(path string) (string, bool) {
	for _, root := range p.roots {
		cleaned := filepath.Clean(root)
		if strings.HasPrefix(path, cleaned+string(filepath.Separator)) {
			return cleaned, true
		}
	}
	return "", false
}

// findAssociated returns sidecar files sharing the video's stem in its
// current directory. When a directory holds exactly one sidecar of an
// extension, it is taken even under a different stem; loosely-named lone
// sidecars belong to the only video they sit next to. A missing or
// unreadable directory yields none.
func (p *Planner) findAssociated(path string) []string {
	if len(p.cfg.AssociatedExts) == 0 {
		return nil
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := filepath.Dir(path)

	var found []string
	for _, ext := range p.cfg.AssociatedExts {
		suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
		candidate := filepath.Join(dir, stem+suffix)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			found = append(found, candidate)
			continue
		}
		if lone, ok := p.loneSidecar(dir, suffix); ok {
			found = append(found, lone)
		}
	}
	return found
}

func (p *Planner) loneSidecar(dir, suffix string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var match string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			continue
		}
		if match != "" {
			return "", false
		}
		match = filepath.Join(dir, entry.Name())
	}
	return match, match != ""
}

func conflicts(source, target string) bool {
	if source == target {
		return false
	}
	_, err := os.Stat(target)
	return err == nil
}
