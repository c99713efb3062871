package diary

import "regexp"

var elementTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9-]*(\s[^<>]*)?/?>`)

// HasMarkup reports whether text contains at least one HTML element tag.
// Bare angle brackets as in "x < y" or "I <3 this" are plain text.
func HasMarkup(text string) bool {
	return elementTag.MatchString(text)
}
