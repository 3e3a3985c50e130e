package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/spf13/cobra"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/config"
	"scenekeeper/internal/daemon"
	"scenekeeper/internal/executor"
	"scenekeeper/internal/matcher"
	"scenekeeper/internal/planner"
	"scenekeeper/internal/reporter"
	"scenekeeper/internal/scanner"
	"scenekeeper/internal/ui"
)

var (
	cfgFile  string
	jsonLogs bool
	verbose  bool
	dryRun   bool
	review   bool
	runID    string

	// Version information (set via -ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "scenekeeper",
	Short: "Scene catalog reconciliation and renaming tool",
	Long: "scenekeeper reconciles a scene catalog against the files on disk: it matches\n" +
		"catalog records to media files by title, date, duration and performers, then\n" +
		"renames and relocates the files into a consistent library layout.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonLogs {
			log.SetHandler(json.New(os.Stderr))
		} else {
			log.SetHandler(cli.New(os.Stderr))
		}
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full reconciliation pipeline",
	Long: "Resolves catalog duplicates, scans the libraries, matches scenes to files,\n" +
		"then renames and relocates matched files. Use --dry-run to preview.",
	Run: runFull,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List candidate files found in the configured libraries",
	Run:   runScan,
}

var importCmd = &cobra.Command{
	Use:   "import <scenes.json>",
	Short: "Import a scene dump into the catalog",
	Args:  cobra.ExactArgs(1),
	Run:   runImport,
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Resolve duplicate catalog records",
	Long: "Scenes sharing a foreign id are collapsed to the first-imported record.\n" +
		"Only catalog records are removed, never files on disk.",
	Run: runDedupe,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match catalog scenes against files on disk",
	Long: "Scores every unplaced scene against the scanned files and records the\n" +
		"unambiguous matches. With --review, remaining candidates open in a TUI.",
	Run: runMatch,
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename and relocate matched files",
	Run:   runRename,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo renames recorded in the action log",
	Long: "Replays the action log in reverse, moving files back where they came\n" +
		"from. Use --run-id to restrict the rollback to a single run.",
	Run: runRollback,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the most recent run report",
	Run:   runReport,
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List studio home directories and their scene counts",
	Run:   runSites,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration file location and contents",
	Run:   runConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scenekeeper %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/scenekeeper/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching anything")
	renameCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching anything")
	rollbackCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without touching anything")
	rollbackCmd.Flags().StringVar(&runID, "run-id", "", "only revert actions from this run")
	matchCmd.Flags().BoolVar(&review, "review", false, "review remaining candidates in a TUI")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nCancelling...")
		cancel()
	}()
	return ctx, cancel
}

func loadConfig() *config.Config {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func loadValidConfig() *config.Config {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func openStore(cfg *config.Config) *catalog.Store {
	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening catalog: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runFull(cmd *cobra.Command, args []string) {
	cfg := loadValidConfig()
	ctx, cancel := signalContext()
	defer cancel()

	d := daemon.New(cfg)
	reportPath, err := d.RunFull(ctx, dryRun)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Run cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nRun complete. Report saved to:\n  %s\n", reportPath)
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := loadValidConfig()
	ctx, cancel := signalContext()
	defer cancel()

	files, err := scanner.CollectAll(ctx, cfg.Libraries.Paths, scanner.Options{
		AssociatedExts: cfg.Rename.AssociatedExts,
	}, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	videos, sidecars := 0, 0
	for _, f := range files {
		if f.Kind == scanner.KindVideo {
			videos++
		} else {
			sidecars++
		}
		fmt.Printf("%-10s %s\n", f.Kind, f.Path)
	}
	fmt.Printf("\n%d videos, %d associated files\n", videos, sidecars)
}

func runImport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	result, err := store.ImportFile(context.Background(), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d scenes (%d already present)\n", result.Inserted, result.Skipped)
}

func runDedupe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	ctx := context.Background()
	result, err := store.ResolveDuplicates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dedupe failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.VerifyUnique(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Catalog integrity check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d duplicate records, %d scenes remain\n",
		len(result.Removed), len(result.Survivors))
	for _, removed := range result.Removed {
		fmt.Printf("  - %s (%s)\n", removed.Scene.Title, removed.Scene.ForeignID)
	}
}

func runSites(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	ctx := context.Background()
	sites, err := store.ListSites(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing sites failed: %v\n", err)
		os.Exit(1)
	}
	if len(sites) == 0 {
		fmt.Println("No sites recorded yet. Run a full pass first.")
		return
	}
	for _, site := range sites {
		scenes, err := store.ListScenesByStudio(ctx, site.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Listing scenes for %s failed: %v\n", site.Name, err)
			os.Exit(1)
		}
		fmt.Printf("%-30s %4d scenes  %s\n", site.Name, len(scenes), site.HomeDirectory)
	}
}

func runMatch(cmd *cobra.Command, args []string) {
	cfg := loadValidConfig()
	ctx, cancel := signalContext()
	defer cancel()

	store := openStore(cfg)
	defer store.Close()

	files, err := scanner.CollectAll(ctx, cfg.Libraries.Paths, scanner.Options{}, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	scenes, err := store.ListScenes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing scenes: %v\n", err)
		os.Exit(1)
	}
	var unplaced []catalog.Scene
	for _, scene := range scenes {
		if scene.LocalPath == "" {
			unplaced = append(unplaced, scene)
		}
	}

	m := matcher.New(cfg.Matcher.Tolerance, daemon.ProbeFunc(ctx, cfg.Matcher))
	candidates := m.Match(ctx, unplaced, files)
	if len(candidates) == 0 {
		fmt.Println("No candidates found.")
		return
	}

	accepted := matcher.SelectUnique(candidates, cfg.Matcher.AutoApplyThreshold)
	if review {
		acceptedSet := make(map[string]bool, len(accepted))
		for _, c := range accepted {
			acceptedSet[c.ForeignID] = true
		}
		var remaining []matcher.Candidate
		for _, c := range candidates {
			if !acceptedSet[c.ForeignID] {
				remaining = append(remaining, c)
			}
		}
		reviewed, err := ui.RunReview(remaining)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Review failed: %v\n", err)
			os.Exit(1)
		}
		accepted = append(accepted, reviewed...)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].ForeignID < accepted[j].ForeignID })
	for _, c := range accepted {
		if err := store.UpdateMatch(ctx, c.SceneID, c.Path, catalog.StatusFound); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording match: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("matched %s -> %s\n", c.Title, c.Path)
	}
	fmt.Printf("\n%d candidates, %d recorded\n", len(candidates), len(accepted))
}

func runRename(cmd *cobra.Command, args []string) {
	cfg := loadValidConfig()
	ctx, cancel := signalContext()
	defer cancel()

	store := openStore(cfg)
	defer store.Close()

	scenes, err := store.ListScenes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing scenes: %v\n", err)
		os.Exit(1)
	}
	var placed []catalog.Scene
	for _, scene := range scenes {
		if scene.Status == catalog.StatusFound && scene.LocalPath != "" {
			placed = append(placed, scene)
		}
	}

	p, err := planner.New(cfg.Rename, cfg.Libraries.Paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building planner: %v\n", err)
		os.Exit(1)
	}
	plans := p.PlanAll(placed)

	exec := executor.New(daemon.ActionLogPath(), dryRun)
	result, err := exec.Run(ctx, plans)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}

	if !dryRun {
		bySource := make(map[string]executor.Record, len(result.Applied))
		for _, record := range result.Applied {
			bySource[record.Source] = record
		}
		for _, scene := range placed {
			if record, ok := bySource[scene.LocalPath]; ok {
				if err := store.UpdateLocalPath(ctx, scene.ID, record.Target); err != nil {
					fmt.Fprintf(os.Stderr, "Error recording move: %v\n", err)
					os.Exit(1)
				}
			}
		}
	}

	fmt.Printf("Applied %d actions, %d failed, %d skipped\n",
		len(result.Applied), len(result.Failed), result.Skipped)
	for _, failure := range result.Failed {
		fmt.Printf("  FAILED %s: %s\n", failure.Source, failure.Error)
	}
}

func runRollback(cmd *cobra.Command, args []string) {
	result, err := executor.Rollback(daemon.ActionLogPath(), runID, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reverted %d actions, %d failed, %d skipped\n",
		len(result.Reverted), len(result.Failed), result.Skipped)
	for _, failure := range result.Failed {
		fmt.Printf("  FAILED %s: %s\n", failure.Source, failure.Error)
	}
}

func runReport(cmd *cobra.Command, args []string) {
	dir := reporter.DefaultDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No reports found in %s\n", dir)
		os.Exit(1)
	}

	var latest string
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) < 5 || entry.Name()[len(entry.Name())-4:] != ".txt" {
			continue
		}
		if entry.Name() > latest {
			latest = entry.Name()
		}
	}
	if latest == "" {
		fmt.Fprintf(os.Stderr, "No reports found in %s\n", dir)
		os.Exit(1)
	}

	content, err := os.ReadFile(dir + "/" + latest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading report: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(content))
}

func runConfig(cmd *cobra.Command, args []string) {
	configPath, err := config.ConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Configuration file: %s\n\n", configPath)

	cfg := loadConfig()

	fmt.Printf("Catalog: %s\n", cfg.Catalog.Path)
	fmt.Printf("\nLibraries (%d):\n", len(cfg.Libraries.Paths))
	for _, path := range cfg.Libraries.Paths {
		fmt.Printf("  - %s\n", path)
	}
	fmt.Printf("\nMatcher:\n")
	fmt.Printf("  Tolerance:            %d\n", cfg.Matcher.Tolerance)
	fmt.Printf("  Auto-apply threshold: %d\n", cfg.Matcher.AutoApplyThreshold)
	fmt.Printf("  Probe durations:      %v\n", cfg.Matcher.ProbeDurations)
	fmt.Printf("\nRename:\n")
	fmt.Printf("  Key order: %v\n", cfg.Rename.KeyOrder)
	fmt.Printf("  Separator: %q\n", cfg.Rename.Separator)
	fmt.Printf("  Move: %v  Rename: %v\n", cfg.Rename.EnableMove, cfg.Rename.EnableRename)
	fmt.Printf("\nDaemon:\n")
	fmt.Printf("  Scan frequency: %s\n", cfg.Daemon.ScanFrequency)
}
