// Package depscan implements the dependency scanner: one
// rule per ml-file kind that runs an external scanner over a directory's
// module files and persists the resulting module→deps map so downstream
// compilation rules can depend on it through graph.VPath instead of
// rescanning.
package depscan

import (
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/sexp"
	"github.com/rdavison/dune/internal/stanza"
)

// Kind discriminates which file of a module pair is scanned.
type Kind int

const (
	Impl Kind = iota // .ml
	Intf             // .mli
)

func (k Kind) String() string {
	if k == Intf {
		return "intf"
	}
	return "impl"
}

// DepsPath is the persisted module dependency map for a directory and
// kind ("{dir}/.depends.{impl|intf}.sexp").
func DepsPath(ctx bpath.Context, dir string, k Kind) bpath.P {
	return bpath.Build(ctx, dir+"/.depends."+k.String()+".sexp")
}

// VFile builds the graph.VFileSpec consumers (internal/compile) use to
// read a directory's persisted dependency map via graph.VPath, without
// depending on depMapCodec's unexported encoding.
func VFile(ctx bpath.Context, dir string, k Kind) graph.VFileSpec[stanza.DepMap] {
	return graph.VFileSpec[stanza.DepMap]{Path: DepsPath(ctx, dir, k), Codec: depMapCodec}
}

// depMapCodec is the graph.Codec for a persisted stanza.DepMap: an
// ordered list of (module, (dep...)) pairs, sorted by module name so the
// file is diff-stable across runs.
var depMapCodec = graph.Codec[stanza.DepMap]{
	Serialize: func(m stanza.DepMap) ([]byte, error) {
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		entries := make([]sexp.Value, len(names))
		for i, name := range names {
			entries[i] = sexp.List(sexp.Atom(name), sexp.StringList(m[name]))
		}
		return sexp.Format(sexp.List(entries...)), nil
	},
	Deserialize: func(b []byte) (stanza.DepMap, error) {
		v, err := sexp.Parse(b)
		if err != nil {
			return nil, err
		}
		m := make(stanza.DepMap, len(v.List))
		for _, entry := range v.List {
			if len(entry.List) != 2 {
				return nil, xerrors.Errorf("depscan: malformed dep-map entry %+v", entry)
			}
			deps, err := entry.List[1].Strings()
			if err != nil {
				return nil, err
			}
			if len(deps) == 0 {
				deps = nil
			}
			m[entry.List[0].Atom] = deps
		}
		return m, nil
	},
}

// InjectAlias prepends aliasModule, with no dependencies of its own, to
// every other module's dependency list. A no-op when
// aliasModule is empty (the library is not wrapped, or has no alias).
func InjectAlias(m stanza.DepMap, aliasModule string) stanza.DepMap {
	if aliasModule == "" {
		return m
	}
	out := make(stanza.DepMap, len(m)+1)
	out[aliasModule] = nil
	for name, deps := range m {
		out[name] = append([]string{aliasModule}, deps...)
	}
	return out
}

// parseLine parses one scanner output line of the form "<filename>: <words...>".
func parseLine(dir, line string) (filename string, words []string, err error) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", nil, direrr.Configf(dir, "malformed scanner output line %q", line)
	}
	filename = strings.TrimSpace(line[:i])
	words = strings.Fields(line[i+1:])
	return filename, words, nil
}

// filename returns the file a kind scans for a module, forcing interfaces
// with an explicit flag when the module has no .mli.
func filename(m stanza.Module, k Kind) (name string, forced bool) {
	if k == Impl {
		return m.ImplFile, false
	}
	if m.HasIntf() {
		return m.IntfFile, false
	}
	return m.ImplFile, true
}

// Scan emits the Node producing the scanner rule's Action for one kind: it
// runs scannerProg over every module's relevant file, parses the
// `<filename>: <words…>` output, keeps only words that are not the module
// itself and that name another module in byName, optionally injects the
// alias module, and persists the resulting map.
func Scan(root string, ctx bpath.Context, dir, scannerProg, aliasModule string, mods []stanza.Module) graph.Node[graph.Action] {
	// The two kinds persist to distinct files but share nothing at
	// runtime; sequence them with Fanout so both rules' dependency sets are
	// tracked by one Realizer, matching how a directory's two scan rules
	// are both emitted from a single call.
	implNode := scanOne(root, ctx, dir, scannerProg, aliasModule, mods, Impl)
	intfNode := scanOne(root, ctx, dir, scannerProg, aliasModule, mods, Intf)
	return graph.Map(graph.Fanout(implNode, intfNode), func(p graph.Pair[graph.Action, graph.Action]) graph.Action {
		return func() error {
			if err := p.A(); err != nil {
				return err
			}
			return p.B()
		}
	})
}

func scanOne(root string, ctx bpath.Context, dir, scannerProg, aliasModule string, mods []stanza.Module, k Kind) graph.Node[graph.Action] {
	byName := make(map[string]stanza.Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}

	var argSpec []graph.ArgFrag
	var scanned []stanza.Module
	for _, m := range mods {
		if k == Intf && !m.HasIntf() {
			continue
		}
		fn, forced := filename(m, k)
		if forced {
			argSpec = append(argSpec, graph.Lit("-intf"))
		}
		argSpec = append(argSpec, graph.ArgPath(bpath.Source(dir+"/"+fn)))
		scanned = append(scanned, m)
	}

	var stdout string
	runNode := graph.Run(root, dir, scannerProg, argSpec, nil, nil, &stdout, nil)

	depsPath := DepsPath(ctx, dir, k)
	return graph.FlatMap(runNode, func(runAct graph.Action) graph.Node[graph.Action] {
		value := graph.MapErr(graph.Pure(struct{}{}), func(struct{}) (stanza.DepMap, error) {
			if err := runAct(); err != nil {
				return nil, err
			}
			m, err := parseOutput(dir, stdout, byName)
			if err != nil {
				return nil, err
			}
			return InjectAlias(m, aliasModule), nil
		})
		return graph.StoreVFile(root, graph.VFileSpec[stanza.DepMap]{Path: depsPath, Codec: depMapCodec}, value)
	})
}

func parseOutput(dir, output string, byName map[string]stanza.Module) (stanza.DepMap, error) {
	byFile := make(map[string]stanza.Module, len(byName))
	for _, m := range byName {
		byFile[m.ImplFile] = m
		if m.HasIntf() {
			byFile[m.IntfFile] = m
		}
	}

	m := make(stanza.DepMap, len(byName))
	for name := range byName {
		m[name] = nil // ensure every module has an entry, even with zero deps
	}
	scannedAlready := make(map[string]bool, len(byName))
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn, words, err := parseLine(dir, line)
		if err != nil {
			return nil, err
		}
		mod, ok := byFile[fn]
		if !ok {
			continue
		}
		var deps []string
		seen := make(map[string]bool)
		for _, w := range words {
			dep, ok := byName[w]
			if !ok || dep.Name == mod.Name || seen[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			deps = append(deps, dep.Name)
		}
		if scannedAlready[mod.Name] {
			return nil, direrr.Configf(dir, "duplicate scan output for module %q", mod.Name)
		}
		scannedAlready[mod.Name] = true
		m[mod.Name] = deps
	}
	return m, nil
}
