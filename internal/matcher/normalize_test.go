package matcher

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer Heat", "summer heat"},
		{"Summer-Heat!", "summerheat"},
		{"2023-06-01", "20230601"},
		{"Ca$h Money (Part 2)", "cah money part 2"},
		{"Café Société!", "café société"},
		{"  spaced  out  ", "  spaced  out  "},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Summer.Heat.2023", "Mixed CASE / Symbols!", "plain"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"Jane Doe", "Bob O'Brien"})
	want := "jane doe bob obrien"
	if got != want {
		t.Errorf("NormalizeList = %q, want %q", got, want)
	}
}
