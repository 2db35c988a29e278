package planner

import "strings"

// ExtractJSONBlock returns the first balanced JSON object or array in the
// text, or "". LLMs wrap their JSON in prose and markdown fences; this strips
// all of that without caring what surrounds the block.
func ExtractJSONBlock(text string) string {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start := objStart
	open, clos := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, clos = '[', ']'
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case clos:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
