package util

import "testing"

func TestGlobSet(t *testing.T) {
	t.Parallel()

	set, err := CompileGlobs([]string{"**/*.swp", "drafts/**", "*~"})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	cases := []struct {
		path     string
		expected bool
	}{
		{"/work/plans/.plan.json.swp", true},
		{"drafts/q3/plan.json", true},
		{"plan.json~", true},
		{"/work/plans/plan.json", false},
		{"plans/drafts.json", false},
	}
	for _, tc := range cases {
		if got := set.Match(tc.path); got != tc.expected {
			t.Errorf("Match(%q) = %v, want %v", tc.path, got, tc.expected)
		}
	}

	var nilSet *GlobSet
	if nilSet.Match("anything") {
		t.Error("nil set must match nothing")
	}

	if _, err := CompileGlobs([]string{"[unclosed"}); err == nil {
		t.Error("expected compile error")
	}
}
