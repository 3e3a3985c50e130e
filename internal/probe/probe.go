package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
)

// DefaultTimeout bounds a single ffprobe invocation. A stuck probe must not
// stall an entire matching run.
const DefaultTimeout = 30 * time.Second

// Result holds the container metadata the matcher cares about.
type Result struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// DurationSeconds returns the container duration in seconds, or 0 when
// ffprobe did not report one.
func (r Result) DurationSeconds() float64 {
	cleaned := strings.TrimSpace(r.Format.Duration)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

// Prober shells out to ffprobe for media inspection.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// New returns a prober using the given binary, defaulting to ffprobe on PATH.
func New(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{Binary: binary, Timeout: DefaultTimeout}
}

// Available reports whether the configured binary can be found.
func (p *Prober) Available() bool {
	_, err := exec.LookPath(p.Binary)
	return err == nil
}

// Inspect runs ffprobe against path and decodes the JSON response.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("probe: empty path")
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Binary, "-v", "error", "-hide_banner",
		"-show_format", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("probe parse %s: %w", path, err)
	}
	return result, nil
}

// DurationMinutes adapts the prober to the matcher's duration signal: any
// probe failure or missing duration is reported as absence, never an error.
func (p *Prober) DurationMinutes(ctx context.Context) func(path string) (float64, bool) {
	return func(path string) (float64, bool) {
		result, err := p.Inspect(ctx, path)
		if err != nil {
			log.WithField("path", path).WithError(err).Debug("duration probe failed")
			return 0, false
		}
		seconds := result.DurationSeconds()
		if seconds <= 0 {
			return 0, false
		}
		return seconds / 60.0, true
	}
}
