package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
)

// RemovedScene records one redundant catalog entry dropped by the resolver.
type RemovedScene struct {
	Scene Scene `json:"scene"`
	Size  int64 `json:"size"` // bytes occupied by its local file, 0 when none
}

// DedupeResult summarizes a duplicate-resolution pass.
type DedupeResult struct {
	Survivors []Scene        `json:"-"`
	Removed   []RemovedScene `json:"removed"`
	Reclaimed int64          `json:"reclaimed"` // total bytes held by removed records
}

// ResolveDuplicates collapses scenes sharing a foreign id. The first-seen
// scene in iteration order survives; the rest are reported as removed with
// the on-disk size of any local file they referenced. Files themselves are
// never deleted here. Running it on an already-clean catalog removes nothing.
func ResolveDuplicates(scenes []Scene) DedupeResult {
	result := DedupeResult{}
	seen := make(map[string]bool, len(scenes))

	for _, scene := range scenes {
		if !seen[scene.ForeignID] {
			seen[scene.ForeignID] = true
			result.Survivors = append(result.Survivors, scene)
			continue
		}

		removed := RemovedScene{Scene: scene}
		if scene.LocalPath != "" {
			if info, err := os.Stat(scene.LocalPath); err == nil {
				removed.Size = info.Size()
			}
		}
		result.Reclaimed += removed.Size
		result.Removed = append(result.Removed, removed)
	}

	return result
}

// ResolveStoreDuplicates runs the resolver over the whole catalog and deletes
// the redundant records from the store.
func (s *Store) ResolveDuplicates(ctx context.Context) (DedupeResult, error) {
	scenes, err := s.ListScenes(ctx)
	if err != nil {
		return DedupeResult{}, err
	}

	result := ResolveDuplicates(scenes)
	for _, removed := range result.Removed {
		if err := s.DeleteScene(ctx, removed.Scene.ID); err != nil {
			return result, err
		}
		log.WithFields(log.Fields{
			"scene_id":   removed.Scene.ID,
			"foreign_id": removed.Scene.ForeignID,
			"title":      removed.Scene.Title,
			"size":       removed.Size,
		}).Info("removed duplicate scene")
	}

	return result, nil
}

// VerifyUnique confirms the catalog holds at most one scene per foreign id.
// A violation after the resolver has run is a logic error, not a data problem.
func (s *Store) VerifyUnique(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT foreign_id, COUNT(*) FROM scenes GROUP BY foreign_id HAVING COUNT(*) > 1`)
	if err != nil {
		return fmt.Errorf("verify catalog uniqueness: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var foreignID string
		var count int
		if err := rows.Scan(&foreignID, &count); err != nil {
			return err
		}
		return fmt.Errorf("catalog integrity: foreign id %s appears %d times after dedupe", foreignID, count)
	}
	return rows.Err()
}
