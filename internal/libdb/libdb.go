// Package libdb implements the library database: it interprets
// library-dependency expressions, resolves Selects, detects
// optional-missing dependencies, and emits transitive closures consumable
// by the compilation and archive emitters. Every library additionally
// persists two files — {name}.requires.sexp and {name}.runtime-deps.sexp —
// so a directory depending on a library elsewhere in the workspace never
// has to recompute that library's own closure. The
// persisted form is an ordered list of best_name strings; resolving a
// best_name back to a concrete library is the caller's job (it already
// holds the Index and *pkgdb.DB used to build the closure).
package libdb

import (
	"golang.org/x/exp/maps"
	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/pkgdb"
	"github.com/rdavison/dune/internal/sexp"
	"github.com/rdavison/dune/internal/stanza"
)

// Index maps a library's local name to where it lives and what it
// declares, built by a first directory-discovery pass over the workspace
// (orchestrator). Internal libraries are looked up by local name, not
// BestName, since a LibDep.Direct names the local declaration site.
type Index map[string]stanza.InternalLib

// MergeIndexes combines several directories' discovery results into one
// workspace-wide Index, the shape cmd/rulegen needs before it can call
// BuildLibrary on any one directory (a library may depend on a library
// declared anywhere else in the workspace). Later indexes win on a name
// collision.
func MergeIndexes(indexes ...Index) Index {
	out := make(Index)
	for _, idx := range indexes {
		maps.Copy(out, idx)
	}
	return out
}

// RequiresPath is the persisted-closure file for a library
// ("{item}.requires.sexp").
func RequiresPath(ctx bpath.Context, dir, name string) bpath.P {
	return bpath.Build(ctx, dir+"/"+name+".requires.sexp")
}

// RuntimeDepsPath is the persisted ppx-runtime-closure file for a library
// ("{item}.runtime-deps.sexp").
func RuntimeDepsPath(ctx bpath.Context, dir, name string) bpath.P {
	return bpath.Build(ctx, dir+"/"+name+".runtime-deps.sexp")
}

// ResolvedSet is the classification result of InterpretLibDeps.
type ResolvedSet struct {
	Internals []stanza.InternalLib
	Externals []stanza.Package
	Missing   []string // dependency names that resolved to neither an internal library nor a known package
}

// InterpretLibDeps classifies each entry of deps against idx (internal
// libraries) and pkgs (external package database). Select-variant
// entries resolve to a file, not a
// library, and contribute no dependency edge of their own; resolve them
// separately with ResolveSelects.
func InterpretLibDeps(idx Index, pkgs *pkgdb.DB, deps []stanza.LibDep) ResolvedSet {
	var rs ResolvedSet
	for _, d := range deps {
		if d.IsSelect() {
			continue
		}
		if lib, ok := idx[d.Direct]; ok {
			rs.Internals = append(rs.Internals, lib)
			continue
		}
		if pkg, err := pkgs.Find(d.Direct); err == nil {
			rs.Externals = append(rs.Externals, pkg)
			continue
		}
		rs.Missing = append(rs.Missing, d.Direct)
	}
	return rs
}

// DeferredFailure builds the error a non-optional consumer's missing
// dependencies turn into; internal/orchestrator returns it from rule
// generation as is. Optional consumers do not call this: their missing
// deps are simply absent from the closure, and the library is not
// filtered out of the install manifest.
func DeferredFailure(dir string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &direrr.DeferredDepError{Dir: dir, Missing: missing}
}

// CopyOp is one Select resolution: copy Src to Dst.
type CopyOp struct {
	Src, Dst bpath.P
}

// ResolveSelects resolves every Select-variant entry of deps against
// present (the directory's resolved external package-name set).
func ResolveSelects(dir string, deps []stanza.LibDep, present map[string]bool) ([]CopyOp, error) {
	var ops []CopyOp
	for _, d := range deps {
		if !d.IsSelect() {
			continue
		}
		src, ok := d.Select.Resolve(present)
		if !ok {
			return nil, xerrors.Errorf("%s: select for %q matched no choice and has no default", dir, d.Select.ResultFile)
		}
		ops = append(ops, CopyOp{
			Src: bpath.Source(dir + "/" + src),
			Dst: bpath.Source(dir + "/" + d.Select.ResultFile),
		})
	}
	return ops, nil
}

// namesCodec is the graph.Codec for a persisted library closure: an
// ordered list of best_name strings.
var namesCodec = graph.Codec[[]string]{
	Serialize: func(names []string) ([]byte, error) {
		return sexp.Format(sexp.StringList(names)), nil
	},
	Deserialize: func(b []byte) ([]string, error) {
		v, err := sexp.Parse(b)
		if err != nil {
			return nil, err
		}
		return v.Strings()
	},
}

// Closure emits a Node that (a) resolves the external closure of a
// directory's declared deps, (b) loads each internal dep's persisted
// requires file via graph.VPath (registering it as a real dependency),
// (c) concatenates externals first then internal closures in declaration
// order, and (d) deduplicates preserving first occurrence.
func Closure(root string, ctx bpath.Context, pkgs *pkgdb.DB, rs ResolvedSet) graph.Node[[]string] {
	return closureWith(root, ctx, pkgs, rs, RequiresPath)
}

// ClosedPpxRuntimeDepsOf is Closure's counterpart for the ppx-runtime
// closure, pulling
// runtime-deps.sexp files for internal deps instead of requires.sexp.
func ClosedPpxRuntimeDepsOf(root string, ctx bpath.Context, pkgs *pkgdb.DB, rs ResolvedSet) graph.Node[[]string] {
	return closureWith(root, ctx, pkgs, rs, RuntimeDepsPath)
}

type pathForLib func(ctx bpath.Context, dir, name string) bpath.P

func closureWith(root string, ctx bpath.Context, pkgs *pkgdb.DB, rs ResolvedSet, pf pathForLib) graph.Node[[]string] {
	extNames := make([]string, len(rs.Externals))
	for i, p := range rs.Externals {
		extNames[i] = p.Name
	}

	acc := graph.MapErr(graph.Pure(extNames), func(names []string) ([]string, error) {
		closed, err := pkgs.Closure(names)
		if err != nil {
			return nil, xerrors.Errorf("libdb: external closure: %w", err)
		}
		out := make([]string, len(closed))
		for i, p := range closed {
			out[i] = p.Name
		}
		return out, nil
	})

	for _, lib := range rs.Internals {
		lib := lib
		vfile := graph.VFileSpec[[]string]{
			Path:  pf(ctx, lib.BuildDir, lib.Spec.Name),
			Codec: namesCodec,
		}
		acc = graph.FlatMap(acc, func(prefix []string) graph.Node[[]string] {
			return graph.Map(graph.VPath(root, vfile), func(sub []string) []string {
				combined := append(append([]string{}, prefix...), lib.Spec.BestName())
				combined = append(combined, sub...)
				return combined
			})
		})
	}

	return graph.Map(acc, dedupFirst)
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
