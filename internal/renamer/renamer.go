package renamer

import (
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenekeeper/internal/catalog"
	"scenekeeper/internal/config"
)

// MaxNameBytes caps the synthesized stem. Names over the cap are truncated
// and suffixed with a short hash so distinct inputs stay distinct.
const MaxNameBytes = 240

// Fields the key order may reference, in canonical form.
var knownFields = map[string]bool{
	"studio":     true,
	"title":      true,
	"date":       true,
	"performers": true,
	"tags":       true,
}

var illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)

type transformation struct {
	field   string
	pattern *regexp.Regexp
	replace string
	caser   func(string) string
}

// Renamer synthesizes filenames from scene metadata. Construction validates
// the whole configuration; a built renamer never fails at render time on a
// configuration problem.
type Renamer struct {
	cfg        config.RenameConfig
	transforms []transformation
	excluded   map[string]bool
}

// New validates cfg and builds a renamer. Unknown key_order fields,
// malformed wrappers and bad transformation patterns are all rejected here
// rather than surfacing mid-run.
func New(cfg config.RenameConfig) (*Renamer, error) {
	if len(cfg.KeyOrder) == 0 {
		return nil, fmt.Errorf("renamer: key_order must not be empty")
	}
	seen := make(map[string]bool, len(cfg.KeyOrder))
	for _, field := range cfg.KeyOrder {
		if !knownFields[field] {
			return nil, fmt.Errorf("renamer: unknown field %q in key_order", field)
		}
		if seen[field] {
			return nil, fmt.Errorf("renamer: duplicate field %q in key_order", field)
		}
		seen[field] = true
	}
	excluded := make(map[string]bool, len(cfg.ExcludeKeys))
	for _, field := range cfg.ExcludeKeys {
		if !knownFields[field] {
			return nil, fmt.Errorf("renamer: unknown field %q in exclude_keys", field)
		}
		excluded[field] = true
	}
	for field, wrapper := range cfg.WrapperStyles {
		if !knownFields[field] {
			return nil, fmt.Errorf("renamer: wrapper for unknown field %q", field)
		}
		if wrapper != "" && utf8.RuneCountInString(wrapper) != 2 {
			return nil, fmt.Errorf("renamer: wrapper for %q must be two characters, got %q", field, wrapper)
		}
	}

	r := &Renamer{cfg: cfg, excluded: excluded}
	titleCaser := cases.Title(language.English)
	for i, tr := range cfg.Transformations {
		if !knownFields[tr.Field] {
			return nil, fmt.Errorf("renamer: transformation %d targets unknown field %q", i, tr.Field)
		}
		compiled := transformation{field: tr.Field, replace: tr.Replacement}
		if tr.Pattern != "" {
			pattern, err := regexp.Compile(tr.Pattern)
			if err != nil {
				return nil, fmt.Errorf("renamer: transformation %d: %w", i, err)
			}
			compiled.pattern = pattern
		}
		switch tr.Case {
		case "":
		case "upper":
			compiled.caser = strings.ToUpper
		case "lower":
			compiled.caser = strings.ToLower
		case "title":
			compiled.caser = titleCaser.String
		default:
			return nil, fmt.Errorf("renamer: transformation %d: unknown case %q", i, tr.Case)
		}
		if compiled.pattern == nil && compiled.caser == nil {
			return nil, fmt.Errorf("renamer: transformation %d: no pattern and no case directive", i)
		}
		r.transforms = append(r.transforms, compiled)
	}
	return r, nil
}

// Render synthesizes the filename stem for a scene. The same scene and
// configuration always produce the same stem. A studio with a registered
// template renders through that template alone; the ordered-field algorithm
// only runs for studios without one.
func (r *Renamer) Render(scene catalog.Scene) (string, error) {
	studio := strings.TrimSpace(scene.Studio)
	if studio == "" {
		studio = r.cfg.DefaultStudio
	}
	values := map[string]string{
		"studio":     studio,
		"title":      strings.TrimSpace(scene.Title),
		"date":       r.renderDate(scene.Date),
		"performers": r.renderPerformers(scene.Performers),
		"tags":       r.renderTags(scene.Tags),
	}
	for field := range values {
		values[field] = r.applyTransforms(field, values[field])
	}

	if template, ok := r.cfg.StudioTemplates[studio]; ok {
		name := strings.TrimSpace(os.Expand(template, func(field string) string {
			return values[field]
		}))
		if name == "" {
			return "", fmt.Errorf("renamer: studio template for %s rendered scene %s to an empty name", studio, scene.ForeignID)
		}
		return capLength(Sanitize(name)), nil
	}

	var parts []string
	for _, field := range r.cfg.KeyOrder {
		if r.excluded[field] {
			continue
		}
		value := values[field]
		if value == "" {
			continue
		}
		if wrapper := []rune(r.cfg.WrapperStyles[field]); len(wrapper) == 2 {
			value = string(wrapper[0]) + value + string(wrapper[1])
		}
		parts = append(parts, value)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("renamer: scene %s rendered to an empty name", scene.ForeignID)
	}

	name := strings.Join(parts, r.separator())
	name = Sanitize(name)
	return capLength(name), nil
}

func (r *Renamer) separator() string {
	if r.cfg.Separator == "" {
		return "-"
	}
	return r.cfg.Separator
}

// Sanitize replaces filesystem-hostile characters with '-'.
func Sanitize(name string) string {
	return illegalChars.ReplaceAllString(name, "-")
}

func (r *Renamer) renderDate(date string) string {
	if date == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		// Non-canonical dates pass through untouched rather than being
		// dropped from the name.
		return date
	}
	format := r.cfg.DateFormat
	if format == "" {
		format = "2006-01-02"
	}
	return parsed.Format(format)
}

func (r *Renamer) renderPerformers(performers []string) string {
	if len(performers) == 0 {
		return ""
	}
	list := append([]string(nil), performers...)
	if r.cfg.PerformerSort {
		sort.Strings(list)
	}
	if r.cfg.PerformerLimit > 0 && len(list) > r.cfg.PerformerLimit {
		list = list[:r.cfg.PerformerLimit]
	}
	return strings.Join(list, r.separator())
}

func (r *Renamer) renderTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	var kept []string
	if len(r.cfg.TagWhitelist) > 0 {
		allowed := make(map[string]bool, len(r.cfg.TagWhitelist))
		for _, tag := range r.cfg.TagWhitelist {
			allowed[strings.ToLower(tag)] = true
		}
		for _, tag := range tags {
			if allowed[strings.ToLower(tag)] {
				kept = append(kept, tag)
			}
		}
	} else {
		kept = append(kept, tags...)
	}
	if r.cfg.MaxTagKeys > 0 && len(kept) > r.cfg.MaxTagKeys {
		kept = kept[:r.cfg.MaxTagKeys]
	}
	return strings.Join(kept, r.separator())
}

func (r *Renamer) applyTransforms(field, value string) string {
	for _, tr := range r.transforms {
		if tr.field != field {
			continue
		}
		if tr.pattern != nil {
			value = tr.pattern.ReplaceAllString(value, tr.replace)
		}
		if tr.caser != nil {
			value = tr.caser(value)
		}
	}
	return strings.TrimSpace(value)
}

// capLength enforces MaxNameBytes. Truncation keeps a hash of the full name
// so two long names that share a prefix do not collide.
func capLength(name string) string {
	if len(name) <= MaxNameBytes {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	suffix := fmt.Sprintf("-%08x", h.Sum32())
	cut := MaxNameBytes - len(suffix)
	// Avoid splitting a multi-byte rune at the cut point.
	for cut > 0 && !isRuneStart(name[cut]) {
		cut--
	}
	return name[:cut] + suffix
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
