package decompose

import "strings"

// RepairJSON applies lenient, string-aware repairs to almost-JSON text:
// it strips // line comments and /* */ block comments, removes trailing
// commas before ] or }, rewrites single-quoted strings to double-quoted
// ones, and quotes bare object keys. Content inside string literals is
// never touched, so descriptions like "Step 1: Do something" survive
// intact. The repaired text is not guaranteed to be valid JSON; callers
// re-run the structured parse to find out.
func RepairJSON(s string) string {
	s = stripComments(s)
	s = rewriteSingleQuotes(s)
	s = removeTrailingCommas(s)
	s = quoteBareKeys(s)
	return s
}

// stripComments removes // and /* */ comments outside string literals.
// Both double- and single-quoted strings are honored since comment
// stripping runs before quote normalization.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte // 0 when outside a string
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // skip the closing '/'
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// rewriteSingleQuotes converts single-quoted string literals to
// double-quoted ones, escaping any embedded double quotes.
func rewriteSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote == '"' {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				quote = 0
			}
			continue
		}
		if quote == '\'' {
			switch {
			case c == '\\' && i+1 < len(s) && s[i+1] == '\'':
				// Escaped single quote inside a single-quoted string.
				b.WriteByte('\'')
				i++
			case c == '\\' && i+1 < len(s):
				b.WriteByte(c)
				i++
				b.WriteByte(s[i])
			case c == '\'':
				b.WriteByte('"')
				quote = 0
			case c == '"':
				b.WriteString(`\"`)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			quote = '"'
			b.WriteByte(c)
		case '\'':
			quote = '\''
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// removeTrailingCommas drops commas that are immediately followed (modulo
// whitespace) by a closing bracket or brace.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// quoteBareKeys wraps unquoted object keys in double quotes. A bare key is
// an identifier that follows { or , (at object position) and precedes a
// colon. Colons inside string values are unaffected.
func quoteBareKeys(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	expectKey := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			expectKey = false
			b.WriteByte(c)
		case c == '{':
			expectKey = true
			b.WriteByte(c)
		case c == ',':
			// A comma re-opens key position only inside objects; inside
			// arrays the identifier will not be followed by a colon and
			// is left alone by the lookahead below.
			expectKey = true
			b.WriteByte(c)
		case expectKey && isIdentStart(c):
			start := i
			for i < len(s) && isIdentChar(s[i]) {
				i++
			}
			ident := s[start:i]
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			if j < len(s) && s[j] == ':' {
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
			} else {
				b.WriteString(ident)
			}
			i--
			expectKey = false
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			b.WriteByte(c)
		default:
			expectKey = false
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
