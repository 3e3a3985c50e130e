package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/config"
)

func TestGenerateSystemdTimer(t *testing.T) {
	tests := []struct {
		frequency string
		want      string
		wantErr   bool
	}{
		{"daily", "*-*-* 02:00:00", false},
		{"weekly", "Sun *-*-* 02:00:00", false},
		{"biweekly", "Sun/2 *-*-* 02:00:00", false},
		{"hourly", "", true},
	}
	for _, tt := range tests {
		timer, err := GenerateSystemdTimer(tt.frequency)
		if tt.wantErr {
			if err == nil {
				t.Errorf("expected error for %q", tt.frequency)
			}
			continue
		}
		if err != nil {
			t.Errorf("GenerateSystemdTimer(%q): %v", tt.frequency, err)
			continue
		}
		if !strings.Contains(timer, "OnCalendar="+tt.want) {
			t.Errorf("timer for %q missing OnCalendar=%s", tt.frequency, tt.want)
		}
	}
}

func TestProbeFuncAbsence(t *testing.T) {
	cfg := config.DefaultConfig().Matcher
	cfg.ProbeDurations = false
	if ProbeFunc(context.Background(), cfg) != nil {
		t.Error("probe func built with probing disabled")
	}
	cfg.ProbeDurations = true
	cfg.FfprobeBinary = "no-such-ffprobe-binary"
	if ProbeFunc(context.Background(), cfg) != nil {
		t.Error("probe func built for a missing binary")
	}
}

func testSetup(t *testing.T) (*config.Config, string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	library := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Catalog.Path = filepath.Join(home, "catalog.db")
	cfg.Libraries.Paths = []string{library}
	cfg.Matcher.ProbeDurations = false
	return cfg, library
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func seedScene(t *testing.T, cfg *config.Config) {
	t.Helper()
	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()

	scene, err := catalog.NewScene("guid-1", "Acme", "Summer Heat")
	if err != nil {
		t.Fatalf("new scene: %v", err)
	}
	scene.Date = "2023-06-01"
	if _, err := store.InsertScene(context.Background(), scene); err != nil {
		t.Fatalf("insert scene: %v", err)
	}
}

func TestRunFullMatchesAndRelocates(t *testing.T) {
	cfg, library := testSetup(t)
	seedScene(t, cfg)
	source := filepath.Join(library, "incoming", "summer.heat.2023-06-01.1080p.mp4")
	writeFile(t, source)

	d := New(cfg)
	reportPath, err := d.RunFull(context.Background(), false)
	if err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	want := filepath.Join(library, "Acme", "[Acme]-Summer Heat-2023-06-01.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected relocated file at %s: %v", want, err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("source file still present after relocation")
	}

	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(content), "Scenes found on disk: 1") {
		t.Errorf("report does not record the find:\n%s", content)
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	scenes, err := store.ListScenes(context.Background())
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if len(scenes) != 1 || scenes[0].Status != catalog.StatusFound || scenes[0].LocalPath != want {
		t.Errorf("scene after run = %+v", scenes[0])
	}

	sites, err := store.ListSites(context.Background())
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "Acme" || sites[0].HomeDirectory != filepath.Dir(want) {
		t.Errorf("sites after run = %+v", sites)
	}
}

func TestRunFullDryRunTouchesNothing(t *testing.T) {
	cfg, library := testSetup(t)
	seedScene(t, cfg)
	source := filepath.Join(library, "incoming", "summer.heat.2023-06-01.1080p.mp4")
	writeFile(t, source)

	d := New(cfg)
	if _, err := d.RunFull(context.Background(), true); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	if _, err := os.Stat(source); err != nil {
		t.Error("dry run moved the source file")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	scenes, err := store.ListScenes(context.Background())
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if scenes[0].Status != catalog.StatusUnmatched || scenes[0].LocalPath != "" {
		t.Errorf("dry run mutated the catalog: %+v", scenes[0])
	}
}

func TestRunFullDryRunPreviewsDespiteDuplicates(t *testing.T) {
	cfg, library := testSetup(t)
	seedScene(t, cfg)
	seedScene(t, cfg) // duplicate record under the same foreign id
	source := filepath.Join(library, "incoming", "summer.heat.2023-06-01.1080p.mp4")
	writeFile(t, source)

	d := New(cfg)
	reportPath, err := d.RunFull(context.Background(), true)
	if err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	content, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(content), "Actions applied: 1") {
		t.Errorf("dry run with a duplicated record previews no actions:\n%s", content)
	}
	if !strings.Contains(string(content), "Duplicate records removed: 1") {
		t.Errorf("dry run report missing the duplicate preview:\n%s", content)
	}

	if _, err := os.Stat(source); err != nil {
		t.Error("dry run moved the source file")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	scenes, err := store.ListScenes(context.Background())
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if len(scenes) != 2 {
		t.Errorf("dry run deleted catalog records: %d remain", len(scenes))
	}
}

func TestRunFullMarksMissing(t *testing.T) {
	cfg, _ := testSetup(t)
	seedScene(t, cfg)

	d := New(cfg)
	if _, err := d.RunFull(context.Background(), false); err != nil {
		t.Fatalf("RunFull: %v", err)
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	scenes, err := store.ListScenes(context.Background())
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if scenes[0].Status != catalog.StatusMissing {
		t.Errorf("status = %q, want Missing", scenes[0].Status)
	}
}

func TestRunFullIdempotent(t *testing.T) {
	cfg, library := testSetup(t)
	seedScene(t, cfg)
	writeFile(t, filepath.Join(library, "incoming", "summer.heat.2023-06-01.1080p.mp4"))

	d := New(cfg)
	if _, err := d.RunFull(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := d.RunFull(context.Background(), false); err != nil {
		t.Fatalf("second run: %v", err)
	}

	want := filepath.Join(library, "Acme", "[Acme]-Summer Heat-2023-06-01.mp4")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("file not stable across runs: %v", err)
	}
}
