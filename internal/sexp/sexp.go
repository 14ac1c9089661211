// Package sexp implements the tiny S-expression codec used for every
// persisted value file (*.requires.sexp, *.runtime-deps.sexp,
// *.depends.{impl,intf}.sexp). It deliberately stays decoupled from
// graph.Codec's generic shape, so persisted values aren't coupled to any
// one serialization library at the type level — callers build a
// graph.Codec[V] out of the Format/Parse helpers here, graph itself
// never imports sexp.
package sexp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Value is the S-expression value tree: an atom or an ordered list.
type Value struct {
	Atom string
	List []Value
	isList bool
}

// Atom constructs a leaf value.
func Atom(s string) Value { return Value{Atom: s} }

// List constructs an ordered list value.
func List(vs ...Value) Value { return Value{List: vs, isList: true} }

// StringList is a convenience constructor for a list of atoms, the shape
// every persisted value in this spec actually uses.
func StringList(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = Atom(s)
	}
	return List(vs...)
}

// IsList reports whether v is a list (as opposed to an atom).
func (v Value) IsList() bool { return v.isList }

// Strings extracts a flat list of atoms from v, failing if v contains a
// nested list.
func (v Value) Strings() ([]string, error) {
	if !v.isList {
		return nil, xerrors.Errorf("sexp: expected a list, got atom %q", v.Atom)
	}
	out := make([]string, len(v.List))
	for i, e := range v.List {
		if e.isList {
			return nil, xerrors.Errorf("sexp: expected atom at index %d, got a list", i)
		}
		out[i] = e.Atom
	}
	return out, nil
}

// Format renders v in a diff-friendly style: one atom per line inside
// parens for lists longer than a single element, so a closure gaining or
// losing one dependency is a one-line diff.
func Format(v Value) []byte {
	var b strings.Builder
	writeValue(&b, v, 0)
	b.WriteByte('\n')
	return []byte(b.String())
}

func writeValue(b *strings.Builder, v Value, indent int) {
	if !v.isList {
		b.WriteString(quoteIfNeeded(v.Atom))
		return
	}
	if len(v.List) <= 1 {
		b.WriteByte('(')
		for i, e := range v.List {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeValue(b, e, indent)
		}
		b.WriteByte(')')
		return
	}
	b.WriteString("(\n")
	for _, e := range v.List {
		b.WriteString(strings.Repeat(" ", indent+1))
		writeValue(b, e, indent+1)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteByte(')')
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := false
	for _, r := range s {
		if r == ' ' || r == '(' || r == ')' || r == '"' || r == '\n' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	return strconv.Quote(s)
}

// Parse reads a single S-expression value from the start of data.
func Parse(data []byte) (Value, error) {
	p := &parser{toks: tokenize(string(data))}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) parseValue() (Value, error) {
	if p.pos >= len(p.toks) {
		return Value{}, xerrors.Errorf("sexp: unexpected end of input")
	}
	tok := p.toks[p.pos]
	if tok == "(" {
		p.pos++
		var elems []Value
		for {
			if p.pos >= len(p.toks) {
				return Value{}, xerrors.Errorf("sexp: unterminated list")
			}
			if p.toks[p.pos] == ")" {
				p.pos++
				return List(elems...), nil
			}
			v, err := p.parseValue()
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, v)
		}
	}
	if tok == ")" {
		return Value{}, xerrors.Errorf("sexp: unexpected %q", ")")
	}
	p.pos++
	if strings.HasPrefix(tok, `"`) {
		unq, err := strconv.Unquote(tok)
		if err != nil {
			return Value{}, xerrors.Errorf("sexp: %w", err)
		}
		return Atom(unq), nil
	}
	return Atom(tok), nil
}

func tokenize(s string) []string {
	var toks []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	sc.Split(bufio.ScanRunes)
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for sc.Scan() {
		r := sc.Text()
		switch {
		case inQuote:
			cur.WriteString(r)
			if r == `"` && !strings.HasSuffix(strings.TrimSuffix(cur.String(), `"`), `\`) {
				inQuote = false
			}
		case r == `"`:
			flush()
			cur.WriteString(r)
			inQuote = true
		case r == "(" || r == ")":
			flush()
			toks = append(toks, r)
		case r == " " || r == "\t" || r == "\n" || r == "\r":
			flush()
		default:
			cur.WriteString(r)
		}
	}
	flush()
	return toks
}

// Quick debug helper, unused in production paths but handy when a test
// fails and wants to see what was actually parsed.
func debugString(v Value) string {
	return fmt.Sprintf("%+v", v)
}
