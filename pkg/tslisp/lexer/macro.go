package lexer

import (
	"regexp"
	"strings"
)

// Macro is a textual rewrite applied to source before tokenizing.
type Macro struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewMacro compiles pattern into a Macro.
func NewMacro(pattern, replacement string) (Macro, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Macro{}, err
	}
	return Macro{Pattern: re, Replacement: replacement}, nil
}

// Expand applies macros in order and then rewrites backtick quotes:
// `(a b) becomes (quote (a b)) and `x becomes (quote x).
func Expand(src string, macros []Macro) string {
	for _, m := range macros {
		src = m.Pattern.ReplaceAllString(src, m.Replacement)
	}
	if !strings.Contains(src, "`") {
		return src
	}
	return expandQuotes(src)
}

func expandQuotes(src string) string {
	var sb strings.Builder
	sb.Grow(len(src) + 16)

	inString := false
	templateDepth := 0

	for i := 0; i < len(src); i++ {
		ch := src[i]

		switch {
		case inString:
			sb.WriteByte(ch)
			if ch == '\\' && i+1 < len(src) {
				i++
				sb.WriteByte(src[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		case templateDepth > 0:
			sb.WriteByte(ch)
			if ch == '{' {
				templateDepth++
			} else if ch == '}' {
				templateDepth--
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			sb.WriteByte(ch)
		case '{':
			templateDepth = 1
			sb.WriteByte(ch)
		case ';':
			// comments pass through untouched
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				sb.WriteString(src[i:])
				return sb.String()
			}
			sb.WriteString(src[i : i+end])
			i += end - 1
		case '`':
			if i+1 < len(src) && src[i+1] == '(' {
				sb.WriteString("(quote ")
				i++
				continue
			}
			j := i + 1
			for j < len(src) && !isDelimiter(src[j]) {
				j++
			}
			if j == i+1 {
				sb.WriteByte(ch)
				continue
			}
			sb.WriteString("(quote ")
			sb.WriteString(src[i+1 : j])
			sb.WriteByte(')')
			i = j - 1
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String()
}
