package command

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Kind classifies a coerced argument value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	List
	Dict
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "None"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "str"
	case List:
		return "list"
	case Dict:
		return "dict"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is an argument after literal coercion. Raw keeps the text the user
// typed.
type Value struct {
	Kind Kind
	Raw  string

	B bool
	I int64
	F float64
	S string
	L []Value
	D map[string]Value
}

// LiteralLexer tokenises the literal forms accepted on the command line:
// numbers, quoted strings, True/False/None and bracketed collections.
var LiteralLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Float", Pattern: `[-+]?(?:\d[\d_]*\.[\d_]*(?:[eE][-+]?\d+)?|\.\d[\d_]*(?:[eE][-+]?\d+)?|\d[\d_]*[eE][-+]?\d+)`},
	{Name: "Int", Pattern: `[-+]?(?:0[xX][0-9a-fA-F_]+|0[oO][0-7_]+|0[bB][01_]+|\d[\d_]*)`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\](){},:]`},
})

type literal struct {
	Float *string   `  @Float`
	Int   *string   `| @Int`
	Str   *string   `| @String`
	Ident *string   `| @Ident`
	List  *listLit  `| @@`
	Tuple *tupleLit `| @@`
	Dict  *dictLit  `| @@`
}

type listLit struct {
	Items []*literal `"[" ( @@ ( "," @@ )* )? "]"`
}

type tupleLit struct {
	Items []*literal `"(" ( @@ ( "," @@ )* )? ")"`
}

type dictLit struct {
	Entries []*dictEntry `"{" ( @@ ( "," @@ )* )? "}"`
}

type dictEntry struct {
	Key   *literal `@@ ":"`
	Value *literal `@@`
}

var literalParser = participle.MustBuild[literal](
	participle.Lexer(LiteralLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Coerce interprets raw as a native literal and falls back to a plain string
// when it is not one. Numeric-looking text always becomes a number.
func Coerce(raw string) Value {
	if strings.TrimSpace(raw) != "" {
		if lit, err := literalParser.ParseString("", raw); err == nil {
			if v, err := lit.value(); err == nil {
				v.Raw = raw
				return v
			}
		}
	}
	return Value{Kind: String, Raw: raw, S: raw}
}

func (l *literal) value() (Value, error) {
	switch {
	case l.Float != nil:
		f, err := strconv.ParseFloat(strings.ReplaceAll(*l.Float, "_", ""), 64)
		if err != nil || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("bad float %q", *l.Float)
		}
		return Value{Kind: Float, F: f}, nil
	case l.Int != nil:
		n, err := parseInt(*l.Int)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Int, I: n}, nil
	case l.Str != nil:
		s, err := unquote(*l.Str)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: String, S: s}, nil
	case l.Ident != nil:
		switch *l.Ident {
		case "True":
			return Value{Kind: Bool, B: true}, nil
		case "False":
			return Value{Kind: Bool, B: false}, nil
		case "None":
			return Value{Kind: Null}, nil
		}
		return Value{}, fmt.Errorf("not a literal: %s", *l.Ident)
	case l.List != nil:
		return sequence(l.List.Items)
	case l.Tuple != nil:
		// A parenthesised single value is just that value.
		if len(l.Tuple.Items) == 1 {
			return l.Tuple.Items[0].value()
		}
		return sequence(l.Tuple.Items)
	case l.Dict != nil:
		d := make(map[string]Value, len(l.Dict.Entries))
		for _, e := range l.Dict.Entries {
			k, err := e.Key.value()
			if err != nil {
				return Value{}, err
			}
			if k.Kind == List || k.Kind == Dict {
				return Value{}, fmt.Errorf("unhashable dict key")
			}
			v, err := e.Value.value()
			if err != nil {
				return Value{}, err
			}
			d[k.String()] = v
		}
		return Value{Kind: Dict, D: d}, nil
	}
	return Value{}, fmt.Errorf("empty literal")
}

func sequence(lits []*literal) (Value, error) {
	items := make([]Value, 0, len(lits))
	for _, it := range lits {
		v, err := it.value()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return Value{Kind: List, L: items}, nil
}

// parseInt accepts decimal, 0x, 0o and 0b integers. Decimal numbers with
// leading zeros are rejected, as are values that do not fit in int64.
func parseInt(s string) (int64, error) {
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != 'x' && digits[1] != 'X' &&
		digits[1] != 'o' && digits[1] != 'O' && digits[1] != 'b' && digits[1] != 'B' {
		if strings.Trim(digits, "0_") != "" {
			return 0, fmt.Errorf("leading zeros in decimal integer %q", s)
		}
		return 0, nil
	}
	return strconv.ParseInt(s, 0, 64)
}

func unquote(s string) (string, error) {
	if strings.HasPrefix(s, "'") {
		body := s[1 : len(s)-1]
		body = strings.ReplaceAll(body, `\'`, `'`)
		body = strings.ReplaceAll(body, `"`, `\"`)
		s = `"` + body + `"`
	}
	return strconv.Unquote(s)
}

// Interface returns the Go value carried by v: nil, bool, int, float64,
// string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.Kind {
	case Bool:
		return v.B
	case Int:
		return int(v.I)
	case Float:
		return v.F
	case String:
		return v.S
	case List:
		out := make([]any, len(v.L))
		for i, it := range v.L {
			out[i] = it.Interface()
		}
		return out
	case Dict:
		out := make(map[string]any, len(v.D))
		for k, it := range v.D {
			out[k] = it.Interface()
		}
		return out
	}
	return nil
}

// String renders v as command scripts print it: True/False/None, integers in
// decimal, floats always with a fraction or an exponent.
func (v Value) String() string {
	switch v.Kind {
	case Null:
		return "None"
	case Bool:
		if v.B {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Float:
		return formatFloat(v.F)
	case String:
		return v.S
	case List:
		parts := make([]string, len(v.L))
		for i, it := range v.L {
			parts[i] = it.repr()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Dict:
		keys := make([]string, 0, len(v.D))
		for k := range v.D {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + v.D[k].repr()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return v.Raw
}

func (v Value) repr() string {
	if v.Kind == String {
		return strconv.Quote(v.S)
	}
	return v.String()
}

func formatFloat(f float64) string {
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'e', -1, 64)
}
