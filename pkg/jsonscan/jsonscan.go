// Package jsonscan extracts embedded JSON values from free text.
// Models asked for structured output sometimes wrap the JSON in prose
// ("Sure! {...} Hope that helps!"); this package finds the first balanced
// object or array so callers can retry parsing on just that slice.
package jsonscan

import "strings"

// FirstObject returns the first balanced {...} substring of s.
// Brace counting is string-aware: braces inside JSON string literals
// (including escaped quotes) do not affect the balance.
// Returns "" when no balanced object exists, including truncated input.
func FirstObject(s string) string {
	return firstBalanced(s, '{', '}')
}

// FirstArray returns the first balanced [...] substring of s.
// Used for model output that is a bare steps array instead of an object.
func FirstArray(s string) string {
	return firstBalanced(s, '[', ']')
}

// FirstValue returns the first balanced object or array, whichever
// opens earlier in s.
func FirstValue(s string) string {
	objAt := strings.IndexByte(s, '{')
	arrAt := strings.IndexByte(s, '[')
	if objAt == -1 {
		return FirstArray(s)
	}
	if arrAt == -1 || objAt < arrAt {
		return FirstObject(s)
	}
	return FirstArray(s)
}

func firstBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	// Ran off the end with the bracket still open: truncated input.
	return ""
}
