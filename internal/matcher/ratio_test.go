package matcher

import "testing"

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"identical", "summer heat", "summer heat", 100},
		{"substring", "summer heat", "summerheat202306011080p", 100},
		{"spacing ignored", "summer heat", "summerheat", 100},
		{"both empty", "", "", 100},
		{"one empty", "summer heat", "", 0},
		{"disjoint", "abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartialRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("PartialRatio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPartialRatioSymmetricOnWindows(t *testing.T) {
	// The shorter string slides over the longer regardless of argument order.
	a, b := "pilot", "the pilot episode remastered"
	if PartialRatio(a, b) != PartialRatio(b, a) {
		t.Error("PartialRatio should not depend on argument order")
	}
}

func TestPartialRatioNearMiss(t *testing.T) {
	// One substitution inside a ten-character window.
	got := PartialRatio("summerheat", "sumnerheat202306011080p")
	if got >= 100 || got < 85 {
		t.Errorf("PartialRatio = %d, want a high but imperfect score", got)
	}
}
