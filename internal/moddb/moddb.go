// Package moddb implements module discovery: given a flat
// file-name set for a directory, it infers the module set and their
// implementation/interface file pairs, and filters that set against a
// user's declared Ordered Set Language expression.
package moddb

import (
	"sort"

	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/oset"
	"github.com/rdavison/dune/internal/stanza"
)

const (
	implExt = ".ml"
	intfExt = ".mli"
)

// Discover partitions files into impl/intf/other, maps each group's
// capitalized stem to its filename (duplicate stems within a group are
// fatal), outer-merges by stem (an intf-only stem is fatal; impl may
// stand alone), and emits one Module per stem with ObjectName left empty
// for later assignment by library setup.
func Discover(dir string, files []string) ([]stanza.Module, error) {
	impls := make(map[string]string)  // capitalized stem -> filename
	intfs := make(map[string]string)
	for _, f := range files {
		switch stanza.Ext(f) {
		case implExt:
			stem := stanza.Capitalize(stanza.Stem(f))
			if prev, ok := impls[stem]; ok {
				return nil, direrr.Configf(dir, "duplicate module stem %q: %s and %s", stem, prev, f)
			}
			impls[stem] = f
		case intfExt:
			stem := stanza.Capitalize(stanza.Stem(f))
			if prev, ok := intfs[stem]; ok {
				return nil, direrr.Configf(dir, "duplicate module stem %q: %s and %s", stem, prev, f)
			}
			intfs[stem] = f
		}
	}

	names := make([]string, 0, len(impls))
	for name := range impls {
		names = append(names, name)
	}
	for name := range intfs {
		if _, ok := impls[name]; !ok {
			return nil, direrr.Configf(dir, "module %q has an interface (%s) but no implementation", name, intfs[name])
		}
	}
	sort.Strings(names)

	mods := make([]stanza.Module, 0, len(names))
	for _, name := range names {
		mods = append(mods, stanza.Module{
			Name:     name,
			ImplFile: impls[name],
			IntfFile: intfs[name],
		})
	}
	return mods, nil
}

// ParseModules filters discovered modules against declared (the user's
// `modules` Ordered Set Language expression), treating the discovered
// module names as the standard baseline; unknown names referenced by
// declared are fatal.
func ParseModules(dir string, declared *oset.Expr, discovered []stanza.Module) ([]stanza.Module, error) {
	if declared == nil {
		return discovered, nil
	}
	byName := make(map[string]stanza.Module, len(discovered))
	standard := make([]string, 0, len(discovered))
	for _, m := range discovered {
		byName[m.Name] = m
		standard = append(standard, m.Name)
	}
	names, err := declared.Eval(standard, nil)
	if err != nil {
		return nil, direrr.Configf(dir, "evaluating modules expression: %v", err)
	}
	out := make([]stanza.Module, 0, len(names))
	for _, n := range names {
		m, ok := byName[n]
		if !ok {
			return nil, direrr.Configf(dir, "modules declaration references unknown module %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}
