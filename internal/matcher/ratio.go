package matcher

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"
)

// PartialRatio scores fuzzy similarity between two strings in the 0-100
// range, tolerant of one string being a substring or superset of the other.
// The shorter string slides across the longer one and the best window wins,
// so a catalog title still scores 100 against a stem carrying resolution tags
// and release-group decoration. Whitespace is dropped before comparison:
// normalized stems lose their separators entirely ("summer.heat" becomes
// "summerheat") while normalized titles keep their spaces.
func PartialRatio(a, b string) int {
	x := []rune(despace(a))
	y := []rune(despace(b))

	if len(x) == 0 || len(y) == 0 {
		if len(x) == len(y) {
			return 100
		}
		return 0
	}

	shorter, longer := x, y
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	best := 0
	width := len(shorter)
	for i := 0; i+width <= len(longer); i++ {
		score := ratio(string(shorter), string(longer[i:i+width]))
		if score > best {
			best = score
		}
		if best == 100 {
			break
		}
	}
	return best
}

// ratio converts Levenshtein distance into a 0-100 similarity score.
func ratio(a, b string) int {
	if a == b {
		return 100
	}

	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}

	distance := matchr.Levenshtein(a, b)
	return int(math.Round((1 - float64(distance)/float64(longest)) * 100))
}

func despace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
