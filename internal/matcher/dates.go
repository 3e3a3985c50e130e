package matcher

import "regexp"

// Date patterns tried in fixed precedence: the first pattern that matches
// anywhere in the stem wins, even if a later pattern would match a different
// substring. Filenames carry dates with hyphen, dot or space separators.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[.\- ]\d{2}[.\- ]\d{2}`), // YYYY-MM-DD
	regexp.MustCompile(`\d{2}[.\- ]\d{2}[.\- ]\d{4}`), // DD-MM-YYYY
	regexp.MustCompile(`\d{2}[.\- ]\d{2}[.\- ]\d{2}`), // DD-MM-YY
}

// ExtractDate pulls a date-like substring out of a raw filename stem.
// Returns the matched text and whether anything matched.
func ExtractDate(stem string) (string, bool) {
	for _, pattern := range datePatterns {
		if match := pattern.FindString(stem); match != "" {
			return match, true
		}
	}
	return "", false
}
