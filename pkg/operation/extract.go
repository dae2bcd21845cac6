package operation

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$")

// StripCodeFences removes markdown code fence lines, keeping their contents.
func StripCodeFences(text string) string {
	text = fenceRe.ReplaceAllString(text, "")
	return strings.ReplaceAll(text, "```", "")
}

// ExtractJSON returns the last balanced top-level {...} or [...] block in
// text after code fences are stripped. Brackets inside JSON strings are
// ignored once a block has been opened.
func ExtractJSON(text string) (string, bool) {
	text = StripCodeFences(text)

	var (
		last     string
		found    bool
		stack    []byte
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text) || len(stack) > 0; i++ {
		if i == len(text) {
			// An opener in prose never closed; rescan past it so a complete
			// block later in the text is still found.
			stack = stack[:0]
			inString, escaped = false, false
			i = start
			continue
		}
		c := text[i]
		if len(stack) == 0 {
			switch c {
			case '{':
				stack = append(stack, '}')
				start = i
			case '[':
				stack = append(stack, ']')
				start = i
			}
			continue
		}

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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if stack[len(stack)-1] != c {
				// Unbalanced; abandon this candidate and rescan from the
				// character after its opening bracket.
				stack = stack[:0]
				i = start
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				last = text[start : i+1]
				found = true
			}
		}
	}
	return last, found
}
