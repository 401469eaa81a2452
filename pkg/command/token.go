package command

import (
	"fmt"
	"strings"
)

// Arg is one command argument: positional when Key is empty, otherwise
// key=value.
type Arg struct {
	Key   string
	Raw   string
	Value Value
}

// Token is one parsed command: a catalog path and its arguments in the order
// they were given.
type Token struct {
	Path string
	Args []Arg
}

func (t Token) positional() int {
	n := 0
	for _, a := range t.Args {
		if a.Key == "" {
			n++
		}
	}
	return n
}

// String reassembles the token in its comma separated form.
func (t Token) String() string {
	parts := []string{t.Path}
	for _, a := range t.Args {
		if a.Key != "" {
			parts = append(parts, a.Key+"="+a.Raw)
		} else {
			parts = append(parts, a.Raw)
		}
	}
	return strings.Join(parts, ",")
}

// ParseToken builds a Token from its items. Item 0 is the path; a later item
// is a keyword argument only when the text before its first '=' is an
// identifier ([A-Za-z_][A-Za-z0-9_]*). Anything else, such as "=5", "a b=1"
// or "'a=b'", is kept whole as a positional value. Values are coerced with
// Coerce.
func ParseToken(items []string) (Token, error) {
	if len(items) == 0 || strings.TrimSpace(items[0]) == "" {
		return Token{}, fmt.Errorf("command: empty command")
	}
	tok := Token{Path: strings.TrimSpace(items[0])}
	for _, item := range items[1:] {
		key, raw, ok := strings.Cut(item, "=")
		if !ok || !isKeyword(key) {
			tok.Args = append(tok.Args, Arg{Raw: item, Value: Coerce(item)})
			continue
		}
		tok.Args = append(tok.Args, Arg{Key: key, Raw: raw, Value: Coerce(raw)})
	}
	return tok, nil
}

// isKeyword reports whether s can name a parameter. Items such as
// "'a=b'" or "[1]=x" stay positional.
func isKeyword(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// SplitTokens splits the comma separated form "path,arg,key=value" into
// items. Commas inside quotes or brackets do not split, so list literals
// survive: "I.load,[1,2,3]" has two items.
func SplitTokens(s string) []string {
	var (
		items []string
		cur   strings.Builder
		depth int
		quote rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(' || r == '{':
			depth++
		case (r == ']' || r == ')' || r == '}') && depth > 0:
			depth--
		case r == ',' && depth == 0:
			items = append(items, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	items = append(items, strings.TrimSpace(cur.String()))
	return items
}

// Parse splits and parses one comma separated command.
func Parse(s string) (Token, error) {
	return ParseToken(SplitTokens(s))
}
