package content

import (
	"math"
	"regexp"
	"strings"
)

// ExcerptLength is the number of plain-text runes kept in an auto-generated excerpt.
const ExcerptLength = 300

// wordsPerMinute drives ReadingTime.
const wordsPerMinute = 200

var markupTag = regexp.MustCompile(`<[^>]+>`)

// StripTags removes every substring that looks like a markup tag. It is not
// an HTML parser: entities are left as they are.
func StripTags(s string) string {
	return markupTag.ReplaceAllString(s, "")
}

// Excerpt returns the tag-stripped body cut to ExcerptLength runes, with
// "..." appended only when something was cut.
func Excerpt(body string) string {
	clean := StripTags(body)
	r := []rune(clean)
	if len(r) > ExcerptLength {
		return string(r[:ExcerptLength]) + "..."
	}
	return clean
}

// ReadingTime estimates minutes needed to read body, never less than one.
func ReadingTime(body string) int {
	words := len(strings.Fields(StripTags(body)))
	minutes := int(math.RoundToEven(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
