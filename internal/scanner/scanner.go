package scanner

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

// Kind classifies a discovered file.
type Kind string

const (
	KindVideo      Kind = "video"
	KindAssociated Kind = "associated"
)

// FileCandidate is a file found on disk during a scan. Candidates are
// ephemeral: they exist per scan invocation and are never persisted.
type FileCandidate struct {
	Path string `json:"path"`
	Stem string `json:"stem"`
	Ext  string `json:"ext"` // includes the leading dot
	Kind Kind   `json:"kind"`
	Size int64  `json:"size"`
}

// Options controls what the walk yields.
type Options struct {
	// AssociatedExts lists sidecar extensions (without dot) to surface as
	// associated candidates. Empty means videos only.
	AssociatedExts []string
}

// The mime package only ships a handful of built-ins; register the video
// containers we expect to meet so classification does not depend on the
// host's /etc/mime.types.
func init() {
	for ext, typ := range map[string]string{
		".mkv":  "video/x-matroska",
		".avi":  "video/x-msvideo",
		".mov":  "video/quicktime",
		".wmv":  "video/x-ms-wmv",
		".flv":  "video/x-flv",
		".m4v":  "video/x-m4v",
		".mpg":  "video/mpeg",
		".mpeg": "video/mpeg",
		".ts":   "video/mp2t",
		".m2ts": "video/mp2t",
		".webm": "video/webm",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// IsVideo reports whether a path's extension infers a video/* MIME type.
// Classification is by extension only, never content sniffing.
func IsVideo(path string) bool {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return strings.HasPrefix(mimeType, "video/")
}

// Walk enumerates regular files under root and calls fn for each candidate.
// The walk holds no state between calls, so a caller may rescan the same
// root across invocations and see a fresh view every time. Unreadable
// subdirectories are skipped with a warning rather than failing the scan.
func Walk(root string, opts Options, fn func(FileCandidate) error) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("scan root not accessible: %s: %w", root, err)
	}

	associated := make(map[string]bool, len(opts.AssociatedExts))
	for _, ext := range opts.AssociatedExts {
		associated["."+strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			log.WithField("path", path).WithError(err).Warn("skipping unreadable path")
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		var kind Kind
		switch {
		case IsVideo(path):
			kind = KindVideo
		case associated[ext]:
			kind = KindAssociated
		default:
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			log.WithField("path", path).WithError(infoErr).Warn("skipping unreadable file")
			return nil
		}

		base := filepath.Base(path)
		return fn(FileCandidate{
			Path: path,
			Stem: strings.TrimSuffix(base, ext),
			Ext:  ext,
			Kind: kind,
			Size: info.Size(),
		})
	})
}

// Collect walks a single root and gathers all candidates.
func Collect(root string, opts Options) ([]FileCandidate, error) {
	var candidates []FileCandidate
	err := Walk(root, opts, func(candidate FileCandidate) error {
		candidates = append(candidates, candidate)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
