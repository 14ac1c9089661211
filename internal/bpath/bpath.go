// Package bpath implements the path and tree model: a tagged union of
// source-relative, build-relative, and absolute paths, with
// the invariant that the build tree mirrors the source tree rooted at a
// per-context build directory.
package bpath

import (
	"path/filepath"
	"strings"
)

// Kind discriminates the Path variants.
type Kind int

const (
	KindSource Kind = iota
	KindBuild
	KindAbsolute
	KindRoot
)

// Context identifies a build context (e.g. "default", "cross-arm64"); each
// context gets its own mirrored subtree under the workspace build
// directory, e.g. _build/default/lib/foo.cmi vs _build/cross-arm64/lib/foo.cmi.
type Context string

// pathImpl is the tagged union backing P. Go has no sum types, so every
// variant's fields live on one struct and Kind discriminates which are
// valid.
type pathImpl struct {
	kind Kind
	rel  string  // KindSource, KindBuild: slash-separated, relative to the tree root
	ctx  Context // KindBuild only
	abs  string  // KindAbsolute only
}

type realPath = pathImpl

// P is the concrete, comparable path value. The zero value is Root.
type P struct{ impl realPath }

// Root is the workspace root path.
func Root() P { return P{} }

// Source constructs a source-relative path, e.g. bpath.Source("lib/foo.ml").
func Source(rel string) P {
	return P{impl: realPath{kind: KindSource, rel: clean(rel)}}
}

// Build constructs a build-relative path within the given context.
func Build(ctx Context, rel string) P {
	return P{impl: realPath{kind: KindBuild, rel: clean(rel), ctx: ctx}}
}

// Absolute constructs an absolute path, escaping the tree mirror entirely
// (used for toolchain binaries resolved via PATH, and persisted-value
// files that live outside the source tree).
func Absolute(abs string) P {
	return P{impl: realPath{kind: KindAbsolute, abs: filepath.Clean(abs)}}
}

func clean(rel string) string {
	rel = filepath.ToSlash(filepath.Clean(rel))
	return strings.TrimPrefix(rel, "./")
}

// Kind reports which variant p is.
func (p P) Kind() Kind {
	if p == (P{}) {
		return KindRoot
	}
	return p.impl.kind
}

// IsZero reports whether p is the Root path.
func (p P) IsZero() bool { return p == (P{}) }

// Rel returns the tree-relative path for Source and Build paths. It panics
// for Absolute and Root, matching the contract that only tree-mirrored
// paths have a meaningful Rel.
func (p P) Rel() string {
	switch p.Kind() {
	case KindSource, KindBuild:
		return p.impl.rel
	default:
		panic("bpath: Rel called on a path with no tree-relative form")
	}
}

// BuildContext returns the context of a Build path, or "" otherwise.
func (p P) BuildContext() Context {
	if p.impl.kind != KindBuild {
		return ""
	}
	return p.impl.ctx
}

// ExtractBuildContext returns {context, subpath} for a build path, and
// false otherwise.
func (p P) ExtractBuildContext() (ctx Context, subpath string, ok bool) {
	if p.impl.kind != KindBuild {
		return "", "", false
	}
	return p.impl.ctx, p.impl.rel, true
}

// String projects p to a platform path string.
func (p P) String() string {
	switch p.Kind() {
	case KindRoot:
		return "."
	case KindSource:
		return filepath.FromSlash(p.impl.rel)
	case KindBuild:
		return filepath.FromSlash("_build/" + string(p.impl.ctx) + "/" + p.impl.rel)
	case KindAbsolute:
		return p.impl.abs
	default:
		return "<invalid path>"
	}
}

// Less gives Path a total order, needed for stable sentinel/sorted
// output (e.g. the alias module body).
func (p P) Less(o P) bool {
	if p.impl.kind != o.impl.kind {
		return p.impl.kind < o.impl.kind
	}
	switch p.impl.kind {
	case KindAbsolute:
		return p.impl.abs < o.impl.abs
	case KindBuild:
		if p.impl.ctx != o.impl.ctx {
			return p.impl.ctx < o.impl.ctx
		}
		return p.impl.rel < o.impl.rel
	default:
		return p.impl.rel < o.impl.rel
	}
}

// Append joins name onto p, staying within the same variant.
func (p P) Append(name string) P {
	switch p.Kind() {
	case KindRoot:
		return Source(name)
	case KindSource:
		return Source(p.impl.rel + "/" + name)
	case KindBuild:
		return Build(p.impl.ctx, p.impl.rel+"/"+name)
	case KindAbsolute:
		return Absolute(filepath.Join(p.impl.abs, name))
	default:
		panic("bpath: Append on invalid path")
	}
}

// Parent returns the directory containing p.
func (p P) Parent() P {
	switch p.Kind() {
	case KindSource:
		return Source(filepath.ToSlash(filepath.Dir(p.impl.rel)))
	case KindBuild:
		return Build(p.impl.ctx, filepath.ToSlash(filepath.Dir(p.impl.rel)))
	case KindAbsolute:
		return Absolute(filepath.Dir(p.impl.abs))
	default:
		return p
	}
}

// Basename returns the final path component.
func (p P) Basename() string {
	switch p.impl.kind {
	case KindSource, KindBuild:
		return filepath.Base(p.impl.rel)
	case KindAbsolute:
		return filepath.Base(p.impl.abs)
	default:
		return "."
	}
}

// ToBuild projects a Source path into the mirrored Build path for ctx; it
// is the formal statement of the tree-mirroring invariant: every source
// path has at most one corresponding build path per context.
func (p P) ToBuild(ctx Context) P {
	if p.impl.kind != KindSource {
		panic("bpath: ToBuild called on a non-source path")
	}
	return Build(ctx, p.impl.rel)
}

// Reach returns the shortest relative string form from 'from' to p,
// required for stable command lines and line-directive rewriting. Both
// paths must be tree-mirrored (Source or Build) and, if Build, in the
// same context.
func (p P) Reach(from P) string {
	a := p.String()
	b := from.String()
	rel, err := filepath.Rel(b, a)
	if err != nil {
		return a
	}
	return filepath.ToSlash(rel)
}
