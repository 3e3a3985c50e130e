package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
)

// ImportResult counts what an import pass did.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// ImportJSON reads an exported scene dump (a JSON array of scenes) and
// inserts every record. Scenes whose foreign id already exists in the
// catalog are skipped, so re-importing the same dump is harmless.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (ImportResult, error) {
	var scenes []Scene
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&scenes); err != nil {
		return ImportResult{}, fmt.Errorf("decode scene dump: %w", err)
	}

	existing, err := s.ListScenes(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	known := make(map[string]bool, len(existing))
	for _, scene := range existing {
		known[scene.ForeignID] = true
	}

	var result ImportResult
	for _, scene := range scenes {
		if known[scene.ForeignID] {
			result.Skipped++
			continue
		}
		scene.Status = StatusUnmatched
		scene.LocalPath = ""
		if _, err := s.InsertScene(ctx, scene); err != nil {
			return result, fmt.Errorf("import scene %s: %w", scene.ForeignID, err)
		}
		known[scene.ForeignID] = true
		result.Inserted++
	}

	log.WithField("inserted", result.Inserted).WithField("skipped", result.Skipped).
		Info("scene import complete")
	return result, nil
}

// ImportFile imports a scene dump from disk.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open scene dump: %w", err)
	}
	defer f.Close()
	return s.ImportJSON(ctx, f)
}
