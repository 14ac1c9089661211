// Package oset implements the Ordered Set Language: a small expression
// language over string sets with union/difference and a standard-value
// placeholder, plus references to external files whose contents supply
// additional elements.
package oset

import (
	"bufio"
	"strings"

	"golang.org/x/xerrors"
)

// Expr is the Ordered Set Language AST. Construct values with the
// exported constructors below, never by building the struct literal
// directly; evaluation relies on the tag set by those constructors.
type Expr struct {
	tag      tag
	literal  []string
	a, b     *Expr
	fromFile string // Source-relative path, for tag fromFile
}

type tag int

const (
	tagStandard tag = iota
	tagLiteral
	tagUnion
	tagDiff
	tagFromFile
)

// Standard is the placeholder resolved to the caller-supplied baseline at
// evaluation time (e.g. a library's default ocamlopt_flags).
func Standard() *Expr { return &Expr{tag: tagStandard} }

// Literal is a fixed ordered set of strings.
func Literal(elems ...string) *Expr { return &Expr{tag: tagLiteral, literal: elems} }

// Union concatenates a then b, deduplicating later occurrences.
func Union(a, b *Expr) *Expr { return &Expr{tag: tagUnion, a: a, b: b} }

// Diff removes every element of b from a, preserving a's order.
func Diff(a, b *Expr) *Expr { return &Expr{tag: tagDiff, a: a, b: b} }

// FromFile references an external file (source-relative path) whose
// whitespace-separated contents supply additional elements. Evaluating an
// expression containing FromFile must be lifted into the build graph by
// the caller (ReferencedFiles plus a FileReader), since it requires a
// file read.
func FromFile(path string) *Expr { return &Expr{tag: tagFromFile, fromFile: path} }

// ReferencedFiles returns every FromFile path referenced transitively by
// e, used by callers to register graph dependencies before evaluating.
func (e *Expr) ReferencedFiles() []string {
	var out []string
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		switch n.tag {
		case tagFromFile:
			out = append(out, n.fromFile)
		case tagUnion, tagDiff:
			walk(n.a)
			walk(n.b)
		}
	}
	walk(e)
	return out
}

// FileReader reads the contents of a FromFile-referenced path, returning
// them as one string that Eval splits on whitespace. Supplied by the caller so oset stays
// decoupled from any particular filesystem or graph representation.
type FileReader func(path string) (string, error)

// Eval evaluates e against the given standard baseline, resolving any
// FromFile references via read. Order is preserved; duplicates introduced
// by Union are removed, keeping the first occurrence, matching the
// closure dedup rule used throughout the library database.
func (e *Expr) Eval(standard []string, read FileReader) ([]string, error) {
	raw, err := e.evalRaw(standard, read)
	if err != nil {
		return nil, err
	}
	return dedupFirst(raw), nil
}

func (e *Expr) evalRaw(standard []string, read FileReader) ([]string, error) {
	if e == nil {
		return nil, nil
	}
	switch e.tag {
	case tagStandard:
		return append([]string(nil), standard...), nil
	case tagLiteral:
		return append([]string(nil), e.literal...), nil
	case tagUnion:
		a, err := e.a.evalRaw(standard, read)
		if err != nil {
			return nil, err
		}
		b, err := e.b.evalRaw(standard, read)
		if err != nil {
			return nil, err
		}
		return append(a, b...), nil
	case tagDiff:
		a, err := e.a.evalRaw(standard, read)
		if err != nil {
			return nil, err
		}
		b, err := e.b.evalRaw(standard, read)
		if err != nil {
			return nil, err
		}
		excl := make(map[string]bool, len(b))
		for _, s := range b {
			excl[s] = true
		}
		var out []string
		for _, s := range a {
			if !excl[s] {
				out = append(out, s)
			}
		}
		return out, nil
	case tagFromFile:
		if read == nil {
			return nil, xerrors.Errorf("oset: FromFile(%s) used without a FileReader", e.fromFile)
		}
		contents, err := read(e.fromFile)
		if err != nil {
			return nil, xerrors.Errorf("oset: reading %s: %w", e.fromFile, err)
		}
		return fields(contents), nil
	default:
		return nil, xerrors.Errorf("oset: unknown expression tag %d", e.tag)
	}
}

func fields(s string) []string {
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Split(bufio.ScanWords)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func dedupFirst(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
