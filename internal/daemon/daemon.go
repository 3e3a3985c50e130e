package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/config"
	"scenekeeper/internal/executor"
	"scenekeeper/internal/matcher"
	"scenekeeper/internal/planner"
	"scenekeeper/internal/probe"
	"scenekeeper/internal/reporter"
	"scenekeeper/internal/scanner"
)

// Daemon runs the full reconciliation pipeline on a schedule.
type Daemon struct {
	config       *config.Config
	headlessMode bool
}

// New creates a new daemon instance
func New(cfg *config.Config) *Daemon {
	return &Daemon{
		config:       cfg,
		headlessMode: detectHeadlessMode(),
	}
}

// detectHeadlessMode checks if running in a headless environment (no display available)
func detectHeadlessMode() bool {
	display := os.Getenv("DISPLAY")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	return display == "" && waylandDisplay == ""
}

// IsHeadless returns whether the daemon is running in headless mode
func (d *Daemon) IsHeadless() bool {
	return d.headlessMode
}

// RunFull executes one complete reconciliation pass: duplicate resolution,
// library scan, matching, planning and execution, ending with a written
// report. In dry-run mode neither the filesystem nor the catalog changes.
// Returns the report path.
func (d *Daemon) RunFull(ctx context.Context, dryRun bool) (string, error) {
	store, err := catalog.Open(d.config.Catalog.Path)
	if err != nil {
		return "", fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	report := reporter.Report{
		Timestamp:    time.Now(),
		DryRun:       dryRun,
		LibraryPaths: d.config.Libraries.Paths,
	}

	if !dryRun {
		dedupe, err := store.ResolveDuplicates(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve duplicates: %w", err)
		}
		report.FromDedupe(dedupe)
		if err := store.VerifyUnique(ctx); err != nil {
			return "", err
		}
	}

	files, err := scanner.CollectAll(ctx, d.config.Libraries.Paths, scanner.Options{
		AssociatedExts: d.config.Rename.AssociatedExts,
	}, 0)
	if err != nil {
		return "", fmt.Errorf("scan libraries: %w", err)
	}
	report.FilesScanned = len(files)

	scenes, err := store.ListScenes(ctx)
	if err != nil {
		return "", fmt.Errorf("list scenes: %w", err)
	}
	if dryRun {
		// The real run resolves duplicates in the store before matching.
		// Preview against the same survivor set, leaving the records alone.
		dedupe := catalog.ResolveDuplicates(scenes)
		report.FromDedupe(dedupe)
		scenes = dedupe.Survivors
	}
	report.ScenesTotal = len(scenes)

	// Scenes whose recorded file vanished go back into the matching pool.
	var unplaced []catalog.Scene
	for _, scene := range scenes {
		if scene.LocalPath != "" {
			if _, err := os.Stat(scene.LocalPath); err == nil {
				continue
			}
			log.WithField("foreign_id", scene.ForeignID).
				WithField("path", scene.LocalPath).Info("recorded file missing, rematching")
		}
		unplaced = append(unplaced, scene)
	}

	m := matcher.New(d.config.Matcher.Tolerance, d.probeFunc(ctx))
	candidates := m.Match(ctx, unplaced, files)
	report.Candidates = candidates

	winners := matcher.SelectUnique(candidates, d.config.Matcher.AutoApplyThreshold)
	if dryRun {
		// Overlay the would-be matches in memory so the planning stage
		// previews exactly what a real run would do.
		won := make(map[int64]matcher.Candidate, len(winners))
		for _, w := range winners {
			won[w.SceneID] = w
		}
		for i, scene := range scenes {
			if w, ok := won[scene.ID]; ok {
				scenes[i].LocalPath = w.Path
				scenes[i].Status = catalog.StatusFound
			}
		}
	} else {
		for _, winner := range winners {
			if err := store.UpdateMatch(ctx, winner.SceneID, winner.Path, catalog.StatusFound); err != nil {
				return "", fmt.Errorf("record match: %w", err)
			}
		}
		if err := markMissing(ctx, store, unplaced, winners); err != nil {
			return "", err
		}
		if scenes, err = store.ListScenes(ctx); err != nil {
			return "", fmt.Errorf("list scenes: %w", err)
		}
	}

	var placed []catalog.Scene
	for _, scene := range scenes {
		if scene.Status == catalog.StatusFound && scene.LocalPath != "" {
			placed = append(placed, scene)
		}
	}
	report.ScenesFound = len(placed)
	report.ScenesMissing = len(unplaced) - len(winners)

	p, err := planner.New(d.config.Rename, d.config.Libraries.Paths)
	if err != nil {
		return "", err
	}
	plans := p.PlanAll(placed)

	exec := executor.New(ActionLogPath(), dryRun)
	result, err := exec.Run(ctx, plans)
	if err != nil {
		return "", fmt.Errorf("execute plans: %w", err)
	}
	report.FromExecution(result)

	if !dryRun {
		if err := recordMoves(ctx, store, placed, result); err != nil {
			return "", err
		}
		if err := recordSites(ctx, store, placed, result); err != nil {
			log.WithError(err).Warn("site registration failed")
		}
	}

	reportDir := reporter.DefaultDir()
	reportPath, err := reporter.Generate(reportDir, report)
	if err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	if err := reporter.Cleanup(reportDir); err != nil {
		log.WithError(err).Warn("report cleanup failed")
	}

	return reportPath, nil
}

// markMissing flags unplaced scenes that did not win a match this pass.
func markMissing(ctx context.Context, store *catalog.Store, unplaced []catalog.Scene, winners []matcher.Candidate) error {
	won := make(map[int64]bool, len(winners))
	for _, w := range winners {
		won[w.SceneID] = true
	}
	for _, scene := range unplaced {
		if won[scene.ID] {
			continue
		}
		if err := store.UpdateMatch(ctx, scene.ID, "", catalog.StatusMissing); err != nil {
			return fmt.Errorf("mark missing: %w", err)
		}
	}
	return nil
}

// recordMoves updates each scene's stored path after its primary file moved.
func recordMoves(ctx context.Context, store *catalog.Store, placed []catalog.Scene, result *executor.Result) error {
	bySource := make(map[string]executor.Record, len(result.Applied))
	for _, record := range result.Applied {
		bySource[record.Source] = record
	}
	for _, scene := range placed {
		record, ok := bySource[scene.LocalPath]
		if !ok {
			continue
		}
		if err := store.UpdateLocalPath(ctx, scene.ID, record.Target); err != nil {
			return fmt.Errorf("record move: %w", err)
		}
	}
	return nil
}

// recordSites registers each studio's home directory once its first file
// lands there, so later passes can list scenes per site.
func recordSites(ctx context.Context, store *catalog.Store, placed []catalog.Scene, result *executor.Result) error {
	byID := make(map[string]catalog.Scene, len(placed))
	for _, scene := range placed {
		byID[scene.ForeignID] = scene
	}
	seen := make(map[string]bool)
	for _, record := range result.Applied {
		scene, ok := byID[record.ForeignID]
		if !ok || scene.Studio == "" || seen[scene.Studio] {
			continue
		}
		seen[scene.Studio] = true
		site := catalog.Site{Name: scene.Studio, HomeDirectory: filepath.Dir(record.Target)}
		if err := store.UpsertSite(ctx, site); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) probeFunc(ctx context.Context) matcher.ProbeFunc {
	return ProbeFunc(ctx, d.config.Matcher)
}

// ProbeFunc builds the duration signal for the matcher from the configured
// ffprobe binary, or nil when probing is off or the binary is absent.
func ProbeFunc(ctx context.Context, cfg config.MatcherConfig) matcher.ProbeFunc {
	if !cfg.ProbeDurations {
		return nil
	}
	prober := probe.New(cfg.FfprobeBinary)
	if !prober.Available() {
		log.WithField("binary", prober.Binary).Warn("ffprobe not found, duration signal disabled")
		return nil
	}
	return prober.DurationMinutes(ctx)
}

// ActionLogPath returns the default action log location.
func ActionLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/scenekeeper/actions.jsonl"
	}
	return filepath.Join(home, ".local/share/scenekeeper/actions.jsonl")
}

// GenerateSystemdTimer creates systemd timer configuration based on scan frequency
func GenerateSystemdTimer(frequency string) (string, error) {
	var onCalendar string

	switch frequency {
	case "daily":
		onCalendar = "*-*-* 02:00:00"
	case "weekly":
		onCalendar = "Sun *-*-* 02:00:00"
	case "biweekly":
		onCalendar = "Sun/2 *-*-* 02:00:00"
	default:
		return "", fmt.Errorf("invalid scan frequency: %s (must be daily, weekly, or biweekly)", frequency)
	}

	timer := fmt.Sprintf(`[Unit]
Description=Scenekeeper catalog reconciliation timer
Requires=scenekeeper.service

[Timer]
OnCalendar=%s
Persistent=true

[Install]
WantedBy=timers.target
`, onCalendar)

	return timer, nil
}

// InstallSystemdTimer writes the systemd timer file
func InstallSystemdTimer(frequency string) error {
	timerContent, err := GenerateSystemdTimer(frequency)
	if err != nil {
		return err
	}

	timerPath := "/etc/systemd/system/scenekeeper.timer"

	if err := os.WriteFile(timerPath, []byte(timerContent), 0644); err != nil {
		return fmt.Errorf("failed to write timer file: %w", err)
	}

	fmt.Printf("Systemd timer installed at %s\n", timerPath)
	fmt.Println("Run 'sudo systemctl daemon-reload && sudo systemctl enable --now scenekeeper.timer' to activate")

	return nil
}
