package tool

import (
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 3", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"2 * -3", -6},
		{"19900 * 3", 59700},
		{"  7  ", 7},
		{"1.5 * 2", 3},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr)
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr    string
		wantMsg string
	}{
		{"", "empty"},
		{"   ", "empty"},
		{"2 +", "expected number"},
		{"(2 + 3", "closing parenthesis"},
		{"10 / 0", "division by zero"},
		{"2 + 3 abc", "unexpected token"},
		{"hola", "expected number"},
	}
	for _, tc := range cases {
		_, err := Evaluate(tc.expr)
		if err == nil {
			t.Fatalf("Evaluate(%q) expected error", tc.expr)
		}
		if !strings.Contains(err.Error(), tc.wantMsg) {
			t.Fatalf("Evaluate(%q) error = %q, want containing %q", tc.expr, err, tc.wantMsg)
		}
	}
}
