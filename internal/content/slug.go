// Package content holds the pure text transformations applied to posts,
// categories and tags before they are persisted.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// invalidSlugChars matches anything that isn't a word character, whitespace or hyphen.
	invalidSlugChars = regexp.MustCompile(`[^\w\s-]`)
	// slugSeparators collapses runs of whitespace and hyphens.
	slugSeparators = regexp.MustCompile(`[-\s]+`)
)

// SlugExistsFunc reports whether a slug is already taken by another row of
// the same entity type.
type SlugExistsFunc func(ctx context.Context, slug string) (bool, error)

// Slugify converts a display string into a lowercase, URL-safe token.
// Accented letters are folded to ASCII and other non-ASCII runes dropped.
//
//	Slugify("Hello, World!") // "hello-world"
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	result := invalidSlugChars.ReplaceAllString(strings.ToLower(folded), "")
	result = slugSeparators.ReplaceAllString(result, "-")
	return strings.Trim(result, "-_")
}

// UniqueSlug slugifies source and appends -1, -2, ... until exists reports
// the candidate free. An empty slugified source falls back to fallback.
func UniqueSlug(ctx context.Context, source, fallback string, exists SlugExistsFunc) (string, error) {
	base := Slugify(source)
	if base == "" {
		base = fallback
	}

	candidate := base
	for counter := 1; ; counter++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
