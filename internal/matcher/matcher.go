package matcher

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/apex/log"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/scanner"
)

// DefaultTolerance is the minimum title partial-ratio for a pair to be
// considered at all.
const DefaultTolerance = 95

// ProbeFunc reports a media file's duration in minutes. ok is false for
// unsupported or unreadable files; probe failure is signal absence, never an
// error.
type ProbeFunc func(path string) (minutes float64, ok bool)

// Candidate is one qualifying (scene, file) pair with its per-signal scores.
// A score of 0 means the signal is absent; attached scores are always at or
// above their threshold. Absence and mismatch are deliberately not
// distinguished for the secondary signals.
type Candidate struct {
	SceneID         int64   `json:"scene_id"`
	ForeignID       string  `json:"foreign_id"`
	Title           string  `json:"title"`
	Path            string  `json:"path"`
	Stem            string  `json:"stem"`
	TitleScore      int     `json:"title_score"`
	DateScore       int     `json:"date_score,omitempty"`
	MatchedDate     string  `json:"matched_date,omitempty"`
	DurationScore   int     `json:"duration_score,omitempty"`
	ProbedDuration  float64 `json:"probed_duration,omitempty"`
	PerformersScore int     `json:"performers_score,omitempty"`
}

// Primary returns the score that drives threshold and ranking decisions.
func (c Candidate) Primary() int { return c.TitleScore }

// Matcher scores scenes against file candidates. Scoring is pure per pair:
// no pair's result depends on any other pair having been scored first, so
// the worker parallelism below is only a speedup.
type Matcher struct {
	Tolerance int
	Probe     ProbeFunc
	Workers   int
}

// New builds a matcher with the given tolerance. A nil probe disables the
// duration signal entirely.
func New(tolerance int, probe ProbeFunc) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Matcher{
		Tolerance: tolerance,
		Probe:     probe,
		Workers:   runtime.NumCPU(),
	}
}

// Match scores every (scene, video candidate) pair and returns all pairs
// whose title score clears the tolerance. Multiple scenes may match one file
// and vice versa; ranking or picking a winner is the caller's decision. The
// result is sorted by (foreign id, path) so repeated runs over the same
// inputs produce identical output regardless of worker scheduling.
func (m *Matcher) Match(ctx context.Context, scenes []catalog.Scene, files []scanner.FileCandidate) []Candidate {
	videos := make([]scanner.FileCandidate, 0, len(files))
	for _, f := range files {
		if f.Kind == scanner.KindVideo {
			videos = append(videos, f)
		}
	}

	workers := m.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		mu      sync.Mutex
		results []Candidate
		wg      sync.WaitGroup
	)
	sceneCh := make(chan catalog.Scene, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scene := range sceneCh {
				matched := m.scoreScene(scene, videos)
				if len(matched) == 0 {
					continue
				}
				mu.Lock()
				results = append(results, matched...)
				mu.Unlock()
			}
		}()
	}

	cancelled := false
	for _, scene := range scenes {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
		case sceneCh <- scene:
		}
		if cancelled {
			break
		}
	}
	close(sceneCh)
	wg.Wait()
	if cancelled {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ForeignID != results[j].ForeignID {
			return results[i].ForeignID < results[j].ForeignID
		}
		return results[i].Path < results[j].Path
	})

	return results
}

func (m *Matcher) scoreScene(scene catalog.Scene, videos []scanner.FileCandidate) []Candidate {
	var matched []Candidate
	for _, file := range videos {
		if candidate, ok := m.score(scene, file); ok {
			matched = append(matched, candidate)
		}
	}
	return matched
}

// score evaluates one pair. The title signal gates everything: below
// tolerance no candidate exists and no further (possibly expensive) signal
// is computed.
func (m *Matcher) score(scene catalog.Scene, file scanner.FileCandidate) (Candidate, bool) {
	cleanStem := Normalize(file.Stem)

	titleScore := PartialRatio(cleanStem, Normalize(scene.Title))
	if titleScore < m.Tolerance {
		return Candidate{}, false
	}

	candidate := Candidate{
		SceneID:    scene.ID,
		ForeignID:  scene.ForeignID,
		Title:      scene.Title,
		Path:       file.Path,
		Stem:       file.Stem,
		TitleScore: titleScore,
	}

	if scene.Date != "" {
		if extracted, ok := ExtractDate(file.Stem); ok && Normalize(extracted) == Normalize(scene.Date) {
			candidate.DateScore = 100
			candidate.MatchedDate = extracted
		}
	}

	// Probing decodes media headers; it only runs once the cheap signals
	// have already made the pair plausible.
	if scene.Duration > 0 && m.Probe != nil {
		if probed, ok := m.Probe(file.Path); ok {
			if math.Abs(probed-scene.Duration) < 1.0 {
				candidate.DurationScore = 100
				candidate.ProbedDuration = probed
			}
		} else {
			log.WithField("path", file.Path).Debug("duration probe returned no result")
		}
	}

	if len(scene.Performers) > 0 {
		performersScore := PartialRatio(cleanStem, NormalizeList(scene.Performers))
		if performersScore >= m.Tolerance {
			candidate.PerformersScore = performersScore
		}
	}

	return candidate, true
}
