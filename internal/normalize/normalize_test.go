package normalize

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "So it goes.", "So it goes."},
		{"smart double quotes", "“So it goes.”", "So it goes."},
		{"smart apostrophe", "It’s a ‘thing’", "It's a 'thing'"},
		{"leading bar", "  ― So it goes.", "So it goes."},
		{"leading em dash", "— So it goes.", "So it goes."},
		{"collapses whitespace", "So\n   it\t\tgoes.", "So it goes."},
		{"non-breaking space", "So\u00a0it \u00a0goes.", "So it goes."},
		{"trailing attribution dash", "So it goes.\n    ―", "So it goes."},
		{"trailing mixed dashes", "So it goes. -–—", "So it goes."},
		{"inner dash kept", "well—maybe", "well—maybe"},
		{"only dashes", " ― — - ", ""},
		{"only quotes", "“”", ""},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Quote(tc.input))
		})
	}
}

func TestQuoteIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"— — nested dashes",
		"“— quoted dash”",
		"- — hyphen first",
		"text ― - ―",
		"\u0085— next line",
		"   spaced out   ",
		"a - b - c -",
	}
	for _, in := range inputs {
		once := Quote(in)
		require.Equal(t, once, Quote(once), "input %q", in)
	}
}

func FuzzQuote(f *testing.F) {
	for _, seed := range []string{
		"“Hello,” she said — ",
		"― It’s fine.",
		"\n\t  -- ",
		"plain",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Quote(in)
		if twice := Quote(once); twice != once {
			t.Fatalf("Quote not idempotent: %q -> %q -> %q", in, once, twice)
		}
		if once != strings.TrimFunc(once, unicode.IsSpace) {
			t.Fatalf("Quote(%q) = %q has surrounding whitespace", in, once)
		}
	})
}
