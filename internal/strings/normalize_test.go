package strings

import "testing"

func TestIsBlank(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"\t\n", true},
		{"x", false},
		{"  x  ", false},
	}
	for _, test := range tests {
		if got := IsBlank(test.value); got != test.want {
			t.Errorf("IsBlank(%q) = %v, want %v", test.value, got, test.want)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	if got := NormalizeWhitespace("  a \t b\n\nc  "); got != "a b c" {
		t.Errorf("NormalizeWhitespace = %q, want %q", got, "a b c")
	}
	if got := NormalizeWhitespace("   "); got != "" {
		t.Errorf("NormalizeWhitespace(blank) = %q, want empty", got)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	if got := NormalizeNewlines("a\r\nb\rc\nd"); got != "a\nb\nc\nd" {
		t.Errorf("NormalizeNewlines = %q", got)
	}
}

func TestTrimTrailingNewlines(t *testing.T) {
	if got := TrimTrailingNewlines("text\r\n\n"); got != "text" {
		t.Errorf("TrimTrailingNewlines = %q", got)
	}
}
