package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_Check(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		promptLen  int
		maxTokens  int
		window     int
		wantTokens int
		wantFits   bool
	}{
		{"small prompt default window", 400, 2000, 0, 100, true},
		{"exactly full", 8000, 2096, 4096, 2000, true},
		{"one over", 8004, 2096, 4096, 2001, false},
		{"large window", 40000, 2000, 16384, 10000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tokens, fits := Check(strings.Repeat("x", tc.promptLen), tc.maxTokens, tc.window)
			if tokens != tc.wantTokens || fits != tc.wantFits {
				t.Errorf("Check() = (%d, %v), want (%d, %v)", tokens, fits, tc.wantTokens, tc.wantFits)
			}
		})
	}
}
