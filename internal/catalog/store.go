package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store manages scene persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			home_directory TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS scenes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			foreign_id TEXT NOT NULL,
			studio TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			release_date TEXT NOT NULL DEFAULT '',
			duration REAL NOT NULL DEFAULT 0,
			performers TEXT NOT NULL DEFAULT '[]',
			tags TEXT NOT NULL DEFAULT '[]',
			local_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Unmatched'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_foreign_id ON scenes(foreign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_studio ON scenes(studio)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// InsertScene adds a scene record. Duplicate foreign ids are permitted at
// insert time; ResolveDuplicates reconciles them before matching runs.
func (s *Store) InsertScene(ctx context.Context, scene Scene) (int64, error) {
	if err := scene.Validate(); err != nil {
		return 0, err
	}

	performers, err := json.Marshal(scene.Performers)
	if err != nil {
		return 0, fmt.Errorf("encode performers: %w", err)
	}
	tags, err := json.Marshal(scene.Tags)
	if err != nil {
		return 0, fmt.Errorf("encode tags: %w", err)
	}

	status := scene.Status
	if status == "" {
		status = StatusUnmatched
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scenes (
			foreign_id, studio, title, release_date, duration,
			performers, tags, local_path, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scene.ForeignID, scene.Studio, scene.Title, scene.Date, scene.Duration,
		string(performers), string(tags), scene.LocalPath, string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("insert scene %s: %w", scene.ForeignID, err)
	}
	return res.LastInsertId()
}

// ListScenes returns every scene in insertion order (ascending id).
func (s *Store) ListScenes(ctx context.Context) ([]Scene, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, foreign_id, studio, title, release_date, duration,
			performers, tags, local_path, status
		FROM scenes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	return scanScenes(rows)
}

// ListScenesByStudio returns scenes for one studio in insertion order.
func (s *Store) ListScenesByStudio(ctx context.Context, studio string) ([]Scene, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, foreign_id, studio, title, release_date, duration,
			performers, tags, local_path, status
		FROM scenes WHERE studio = ? ORDER BY id`, studio)
	if err != nil {
		return nil, fmt.Errorf("list scenes for studio %s: %w", studio, err)
	}
	defer rows.Close()
	return scanScenes(rows)
}

func scanScenes(rows *sql.Rows) ([]Scene, error) {
	var scenes []Scene
	for rows.Next() {
		var (
			scene            Scene
			performers, tags string
			status           string
		)
		if err := rows.Scan(&scene.ID, &scene.ForeignID, &scene.Studio,
			&scene.Title, &scene.Date, &scene.Duration,
			&performers, &tags, &scene.LocalPath, &status); err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		if err := json.Unmarshal([]byte(performers), &scene.Performers); err != nil {
			return nil, fmt.Errorf("decode performers for scene %s: %w", scene.ForeignID, err)
		}
		if err := json.Unmarshal([]byte(tags), &scene.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for scene %s: %w", scene.ForeignID, err)
		}
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", scene.ForeignID, err)
		}
		scene.Status = parsed
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// UpdateMatch records the matched local path and status for a scene.
func (s *Store) UpdateMatch(ctx context.Context, sceneID int64, localPath string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scenes SET local_path = ?, status = ? WHERE id = ?`,
		localPath, string(status), sceneID)
	if err != nil {
		return fmt.Errorf("update scene %d: %w", sceneID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("scene %d not found", sceneID)
	}
	return nil
}

// UpdateLocalPath rewrites the stored path after a rename or move.
func (s *Store) UpdateLocalPath(ctx context.Context, sceneID int64, localPath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scenes SET local_path = ? WHERE id = ?`, localPath, sceneID)
	if err != nil {
		return fmt.Errorf("update path for scene %d: %w", sceneID, err)
	}
	return nil
}

// DeleteScene removes one catalog record. The file on disk is never touched.
func (s *Store) DeleteScene(ctx context.Context, sceneID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene %d: %w", sceneID, err)
	}
	return nil
}

// SceneCount returns the number of scenes in the catalog.
func (s *Store) SceneCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count scenes: %w", err)
	}
	return count, nil
}

// UpsertSite registers or updates a studio home directory.
func (s *Store) UpsertSite(ctx context.Context, site Site) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (name, home_directory) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET home_directory = excluded.home_directory`,
		site.Name, site.HomeDirectory)
	if err != nil {
		return fmt.Errorf("upsert site %s: %w", site.Name, err)
	}
	return nil
}

// ListSites returns all registered sites.
func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, home_directory FROM sites ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.ID, &site.Name, &site.HomeDirectory); err != nil {
			return nil, fmt.Errorf("scan site row: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
