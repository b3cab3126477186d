package similarity

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDistance_Known(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDistance_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("distance to self is zero", prop.ForAll(
		func(s string) bool {
			return Distance(s, s) == 0
		},
		gen.AlphaString(),
	))

	properties.Property("distance is symmetric", prop.ForAll(
		func(a, b string) bool {
			return Distance(a, b) == Distance(b, a)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("similarity stays within [0, 1]", prop.ForAll(
		func(a, b string) bool {
			s := Similarity(a, b)
			return s >= 0 && s <= 1
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestIsFuzzyMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"postgres", "postgresql", true},
		{"swagger", "django", false},
		{"Auth", "auth", true},
		{"kubernetes", "kubernets", true},
		{"", "", false},
		{"   ", "auth", false},
		{"api", "", false},
	}
	for _, tt := range tests {
		if got := IsFuzzyMatch(tt.a, tt.b); got != tt.want {
			t.Errorf("IsFuzzyMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("User-Auth service/API.v2 a_b user")
	want := []string{"user", "auth", "service", "api", "v2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens() = %v, want %v", got, want)
	}
	if len(Tokens("  \t ")) != 0 {
		t.Error("whitespace-only input must produce no tokens")
	}
}

func TestMatcher_ThresholdFallback(t *testing.T) {
	if m := NewMatcher(0); m.Threshold() != DefaultThreshold {
		t.Errorf("Expected default threshold, got %v", m.Threshold())
	}
	if m := NewMatcher(1.5); m.Threshold() != DefaultThreshold {
		t.Errorf("Expected default threshold, got %v", m.Threshold())
	}
	strict := NewMatcher(0.95)
	if strict.IsFuzzyMatch("kubernetes", "kubernets") {
		t.Error("0.9 similarity must not pass a 0.95 threshold")
	}
}

func TestMatcher_SharedKeywords(t *testing.T) {
	m := NewMatcher(DefaultThreshold)
	left := Tokens("user auth service")
	right := Tokens("authentication for users")
	if got := m.SharedKeywords(left, right); got != 2 {
		t.Errorf("Expected 2 shared keywords, got %d", got)
	}
	if m.AnyMatch(Tokens("billing"), Tokens("frontend shell")) {
		t.Error("unrelated keyword sets should not match")
	}
}
