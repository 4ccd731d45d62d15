package finalizer

import (
	"testing"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		ending   LineEnding
		expected string
		changed  bool
	}{
		{
			name:     "already normalized",
			input:    "local a = 1\nreturn a\n",
			ending:   LF,
			expected: "local a = 1\nreturn a\n",
			changed:  false,
		},
		{
			name:     "missing final newline",
			input:    "print('x')",
			ending:   LF,
			expected: "print('x')\n",
			changed:  true,
		},
		{
			name:     "collapse trailing blank lines",
			input:    "end\n\n\n\n",
			ending:   LF,
			expected: "end\n",
			changed:  true,
		},
		{
			name:     "mixed endings to lf",
			input:    "a = 1\r\nb = 2\rc = 3\n",
			ending:   LF,
			expected: "a = 1\nb = 2\nc = 3\n",
			changed:  true,
		},
		{
			name:     "lf to crlf",
			input:    "a = 1\nb = 2\n\n",
			ending:   CRLF,
			expected: "a = 1\r\nb = 2\r\n",
			changed:  true,
		},
		{
			name:     "crlf stays crlf",
			input:    "a = 1\r\nb = 2\r\n",
			ending:   CRLF,
			expected: "a = 1\r\nb = 2\r\n",
			changed:  false,
		},
		{
			name:     "trailing spaces kept",
			input:    "s = [[x  \n]]  \n",
			ending:   LF,
			expected: "s = [[x  \n]]  \n",
			changed:  false,
		},
		{
			name:     "empty content",
			input:    "",
			ending:   LF,
			expected: "\n",
			changed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Finalize(tt.input, tt.ending)
			if got != tt.expected {
				t.Errorf("Finalize() = %q, expected %q", got, tt.expected)
			}
			if changed != tt.changed {
				t.Errorf("Finalize() changed = %v, expected %v", changed, tt.changed)
			}
		})
	}
}

func TestParseLineEnding(t *testing.T) {
	for in, want := range map[string]LineEnding{"": LF, "lf": LF, "CRLF": CRLF} {
		got, err := ParseLineEnding(in)
		if err != nil {
			t.Errorf("ParseLineEnding(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLineEnding(%q) = %q, expected %q", in, got, want)
		}
	}
	if _, err := ParseLineEnding("cr"); err == nil {
		t.Error("ParseLineEnding(\"cr\") expected error")
	}
}

func TestDetectLineEnding(t *testing.T) {
	if got := DetectLineEnding("a\r\nb\r\nc\n"); got != CRLF {
		t.Errorf("DetectLineEnding() = %q, expected crlf", got)
	}
	if got := DetectLineEnding("a\nb\r\n"); got != LF {
		t.Errorf("DetectLineEnding() tie = %q, expected lf", got)
	}
	if got := LF.Sequence(); got != "\n" {
		t.Errorf("LF.Sequence() = %q", got)
	}
	if got := CRLF.Sequence(); got != "\r\n" {
		t.Errorf("CRLF.Sequence() = %q", got)
	}
}
