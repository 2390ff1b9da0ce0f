package text

import "testing"

func TestNormalizer_Clean(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		input  string
		expect string
	}{
		{"collapses whitespace", Options{}, "  hello \n\n  world\t!  ", "hello world !"},
		{"drops control characters", Options{}, "a\x00b\x07c", "abc"},
		{"compatibility forms", Options{}, "ﬁne ①", "fine 1"},
		{"fullwidth", Options{}, "ＡＢＣ", "ABC"},
		{"strip accents", Options{StripAccents: true}, "café naïve", "cafe naive"},
		{"keeps accents by default", Options{}, "café", "café"},
		{"lowercase", Options{Lowercase: true}, "Hello WORLD", "hello world"},
		{"empty", Options{}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewNormalizer(tt.opts, nil).Clean(tt.input)
			if got != tt.expect {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}
