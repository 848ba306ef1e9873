package textproc

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/language"
)

// Spacing inserts a single space wherever a CJK run and a Latin or digit run
// abut, a common artifact of recognizing mixed-script documents.
type Spacing struct{}

func (Spacing) Name() string { return "spacing" }

func (Spacing) Apply(_ context.Context, text string) (string, error) {
	return NormalizeSpacing(text), nil
}

// NormalizeSpacing is the underlying pure function.
func NormalizeSpacing(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)

	var prev rune
	for i, r := range text {
		if i > 0 && boundary(prev, r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func boundary(a, b rune) bool {
	return (isCJK(a) && isLatinLike(b)) || (isLatinLike(a) && isCJK(b))
}

func isCJK(r rune) bool {
	switch scriptFromRune(r) {
	case language.Han, language.Hiragana, language.Katakana, language.Hangul:
		return true
	}
	return false
}

// isLatinLike covers the runs users expect spaced off from CJK text: Latin
// letters and decimal digits.
func isLatinLike(r rune) bool {
	return unicode.Is(unicode.Latin, r) || unicode.IsDigit(r)
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	}
	return language.Unknown
}
