// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify checks that proposed quotes are verbatim substrings of
// their source text, tolerating punctuation and markup noise but never
// paraphrase or altered data.
package verify

import (
	"strings"
	"unicode"
)

// Verify reports whether quote is an exact or format-normalized substring of
// the primary source, or failing that, of the alternate source. The
// alternate is typically a plain-text rendition of the same page: markup can
// break word adjacency that plain text preserves. Either source may be
// empty.
func Verify(quote, primary, alternate string) bool {
	if quote == "" {
		return false
	}
	if matches(quote, primary) {
		return true
	}
	return alternate != "" && matches(quote, alternate)
}

func matches(quote, source string) bool {
	if source == "" {
		return false
	}
	if strings.Contains(source, quote) {
		return true
	}
	return strings.Contains(Normalize(source), Normalize(quote))
}

// Normalize lowercases the text, replaces every rune that is not a letter,
// number, or whitespace with a space, collapses whitespace runs, and trims.
// The transform is deliberately narrow: it absorbs punctuation and emphasis
// markers without forgiving word reordering, stemming, or digit changes.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
