package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a literal value in the pipeline config.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNone
	KindList
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindNone:
		return "None"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var ErrSyntax = errors.New("literal syntax error")

// Value is a literal stored in the pipeline config.
//
// Values are written in the literal notation of the pipeline scripts:
// quoted strings, True/False, None, numbers, [lists] and (tuples).
type Value struct {
	kind  Kind
	str   string
	i     int64
	f     float64
	b     bool
	items []Value
}

func String(s string) Value { return Value{kind: KindString, str: s} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func None() Value { return Value{kind: KindNone} }

func List(items ...Value) Value {
	return Value{kind: KindList, items: append([]Value{}, items...)}
}

func Tuple(items ...Value) Value {
	return Value{kind: KindTuple, items: append([]Value{}, items...)}
}

// StringList builds a list of strings.
func StringList(s ...string) Value {
	items := make([]Value, 0, len(s))
	for _, v := range s {
		items = append(items, String(v))
	}
	return List(items...)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns numbers (int or float) as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// IsSequence reports whether v is a list or a tuple.
func (v Value) IsSequence() bool {
	return v.kind == KindList || v.kind == KindTuple
}

// Items returns elements of a list or a tuple. Otherwise nil.
func (v Value) Items() []Value {
	if !v.IsSequence() {
		return nil
	}
	return v.items
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBool:
		return v.b == o.b
	case KindNone:
		return true
	}
	if len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !v.items[i].Equal(o.items[i]) {
			return false
		}
	}
	return true
}

// Interface converts the value into plain go values:
// string, int64, float64, bool, nil or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindNone:
		return nil
	}
	ret := make([]any, 0, len(v.items))
	for _, it := range v.items {
		ret = append(ret, it.Interface())
	}
	return ret
}

// Text is a human oriented form: strings are not quoted, others are literals.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.str
	}
	return v.Literal()
}

func (v Value) String() string {
	return v.Literal()
}

// Literal encodes the value. Parse(v.Literal()) gives a value equal to v.
func (v Value) Literal() string {
	switch v.kind {
	case KindString:
		return quote(v.str)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindNone:
		return "None"
	}

	elems := make([]string, 0, len(v.items))
	for _, it := range v.items {
		elems = append(elems, it.Literal())
	}
	if v.kind == KindList {
		return "[" + strings.Join(elems, ", ") + "]"
	}
	if len(elems) == 1 {
		return "(" + elems[0] + ",)"
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	sb := new(strings.Builder)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// Parse reads a literal.
//
// Text which is not a well-formed literal as a whole is taken as a bare string,
// so `Stevens-Reynolds 2016` and `'Stevens-Reynolds 2016'` are the same value.
// An empty text is an empty string.
func Parse(text string) (Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return String(""), nil
	}

	p := &parser{src: []rune(trimmed)}
	v, err := p.value()
	if err == nil {
		p.skipSpace()
		if p.eof() {
			return v, nil
		}
		err = fmt.Errorf("%w: trailing characters at %d in %q", ErrSyntax, p.pos, trimmed)
	}

	switch trimmed[0] {
	case '[', '(', '\'', '"':
		// looks like a literal, but broken
		return Value{}, err
	}
	return String(trimmed), nil
}

// MustParse is Parse which panics on error.
func MustParse(text string) Value {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return len(p.src) <= p.pos }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (Value, error) {
	p.skipSpace()
	if p.eof() {
		return Value{}, fmt.Errorf("%w: unexpected end of text", ErrSyntax)
	}
	switch r := p.peek(); r {
	case '[':
		items, err := p.sequence('[', ']')
		if err != nil {
			return Value{}, err
		}
		return List(items...), nil
	case '(':
		items, err := p.sequence('(', ')')
		if err != nil {
			return Value{}, err
		}
		return Tuple(items...), nil
	case '\'', '"':
		s, err := p.quoted(r)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	}
	return p.scalar()
}

func (p *parser) sequence(open, close rune) ([]Value, error) {
	start := p.pos
	p.pos++ // open
	items := []Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("%w: %c at %d is not closed", ErrSyntax, open, start)
		}
		if p.peek() == close {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
		default:
			return nil, fmt.Errorf("%w: expected ',' or '%c' at %d", ErrSyntax, close, p.pos)
		}
	}
}

func (p *parser) quoted(q rune) (string, error) {
	start := p.pos
	p.pos++
	sb := new(strings.Builder)
	for !p.eof() {
		r := p.src[p.pos]
		p.pos++
		switch r {
		case q:
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", fmt.Errorf("%w: dangling escape at %d", ErrSyntax, p.pos)
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\', '\'', '"':
				sb.WriteRune(e)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(r)
		}
	}
	return "", fmt.Errorf("%w: string at %d is not closed", ErrSyntax, start)
}

func (p *parser) scalar() (Value, error) {
	start := p.pos
scan:
	for !p.eof() {
		switch p.peek() {
		case ',', ']', ')', ' ', '\t', '\n', '\r':
			break scan
		}
		p.pos++
	}
	tok := string(p.src[start:p.pos])
	if tok == "" {
		return Value{}, fmt.Errorf("%w: unexpected '%c' at %d", ErrSyntax, p.peek(), p.pos)
	}
	switch tok {
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "None":
		return None(), nil
	case "inf", "+inf":
		return Float(math.Inf(1)), nil
	case "-inf":
		return Float(math.Inf(-1)), nil
	case "nan":
		return Float(math.NaN()), nil
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Float(f), nil
	}
	return String(tok), nil
}
