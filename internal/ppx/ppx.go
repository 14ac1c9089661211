// Package ppx implements the preprocessor pipeline: per module, lift the
// file pair through the chosen PreprocessChoice, and,
// for the Pps variant, build (at most once per plugin set, process-wide)
// the driver executable that performs the rewrite.
package ppx

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/stanza"
)

// Lift produces the preprocessed counterpart of m under choice: "foo.ml"
// becomes "foo.pp.ml", "foo.mli" becomes "foo.pp.mli", with the ".pp."
// infix preceding the extension so downstream tooling treats foo.pp.mli
// as foo.pp.ml's interface.
func Lift(m stanza.Module) stanza.Module {
	out := m
	out.ImplFile = ppInfix(m.ImplFile)
	if m.HasIntf() {
		out.IntfFile = ppInfix(m.IntfFile)
	}
	return out
}

func ppInfix(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return filename + ".pp"
	}
	return filename[:i] + ".pp" + filename[i:]
}

// Rule emits the Node producing the preprocessing Action for one module
// under choice. None leaves the files untouched (no rule is emitted, Lift
// should not be applied either — callers check choice.None first).
// Metaquot and Command each invoke a fixed/ad-hoc external program;
// Pps routes through a shared driver (see DriverFor).
func Rule(root, dir string, m stanza.Module, choice stanza.PreprocessChoice, driverExe bpath.P) graph.Node[graph.Action] {
	prog := "ppx_metaquot_rewriter"
	var extraArgs []string
	switch {
	case choice.Command != "":
		prog = choice.Command
	case choice.Pps != nil:
		prog = driverExe.String()
		extraArgs = choice.Pps.Flags
	}

	lifted := Lift(m)
	var argSpec []graph.ArgFrag
	argSpec = append(argSpec, graph.LitAll(extraArgs)...)
	argSpec = append(argSpec, graph.ArgPath(bpath.Source(dir+"/"+m.ImplFile)))
	argSpec = append(argSpec, graph.Lit("-o"))
	argSpec = append(argSpec, graph.ArgTarget(bpath.Source(dir+"/"+lifted.ImplFile)))
	if m.HasIntf() {
		argSpec = append(argSpec, graph.ArgPath(bpath.Source(dir+"/"+m.IntfFile)))
		argSpec = append(argSpec, graph.Lit("-o"))
		argSpec = append(argSpec, graph.ArgTarget(bpath.Source(dir+"/"+lifted.IntfFile)))
	}
	return graph.Run(root, dir, prog, argSpec, nil, nil, nil, nil)
}

// DriverKey canonicalizes a plugin set to the sorted, plus-joined memo key
// ("p1+p2+…").
func DriverKey(plugins []string) string {
	sorted := append([]string(nil), plugins...)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

// driverEntry is one memoized driver build.
type driverEntry struct {
	Exe          bpath.P
	ResolvedLibs []string
}

// DriverMemo is the process-wide, single-writer memo of built ppx driver
// executables: it is a process-wide map populated during rule generation
// only, with a single writer (the generator itself). One DriverMemo is
// shared across an entire rulegen invocation so the at-most-one-driver-
// per-key guarantee holds across every directory, not just within one.
type DriverMemo struct {
	mu      sync.Mutex
	entries map[string]driverEntry
}

// NewDriverMemo constructs an empty, ready-to-use memo.
func NewDriverMemo() *DriverMemo {
	return &DriverMemo{entries: make(map[string]driverEntry)}
}

// RunnerLibrary is the fixed library every driver links last, placed at
// the end of link order.
const RunnerLibrary = "ppx_driver_runner"

// DriverCore is the fixed base library every driver's closure starts from
// a driver's library closure always starts from {DriverCore} ∪ plugins.
const DriverCore = "ppx_driver"

// Closer computes the ordered, deduplicated library closure of a name
// set; supplied by the caller (internal/libdb) so ppx stays decoupled
// from the library database's own dependencies.
type Closer func(names []string) ([]string, error)

// DriverFor returns the driver executable path and its resolved plugin
// closure for plugins, building it at most once per DriverKey across the
// memo's lifetime. On a cache miss it emits the
// driver's build rule under .ppx/{key}/ppx.exe: the closure of
// {DriverCore} ∪ plugins fanned out against RunnerLibrary, with the
// runner placed last in link order, linked as a native executable.
func DriverFor(m *DriverMemo, root string, ctx bpath.Context, closure Closer, plugins []string) (bpath.P, graph.Node[graph.Action], bool, error) {
	key := DriverKey(plugins)

	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return e.Exe, graph.Pure[graph.Action](nil), false, nil
	}
	m.mu.Unlock()

	names := append([]string{DriverCore}, plugins...)
	resolved, err := closure(names)
	if err != nil {
		return bpath.P{}, graph.Node[graph.Action]{}, false, err
	}
	linkOrder := append(append([]string(nil), resolved...), RunnerLibrary)

	exe := bpath.Build(ctx, fmt.Sprintf(".ppx/%s/ppx.exe", key))

	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		// Another call raced us between the unlock above and here; the
		// loser's rule is discarded, the winner's exe path is reused, so
		// at most one driver rule per key is ever actually emitted.
		m.mu.Unlock()
		return e.Exe, graph.Pure[graph.Action](nil), false, nil
	}
	m.entries[key] = driverEntry{Exe: exe, ResolvedLibs: linkOrder}
	m.mu.Unlock()

	var argSpec []graph.ArgFrag
	argSpec = append(argSpec, graph.Lit("-linkall"))
	for _, lib := range linkOrder {
		argSpec = append(argSpec, graph.Lit(lib))
	}
	argSpec = append(argSpec, graph.Lit("-o"), graph.ArgTarget(exe))
	rule := graph.Run(root, exe.Parent().Rel(), "ocamlfind", append([]graph.ArgFrag{graph.Lit("ocamlopt")}, argSpec...), nil, nil, nil, nil)
	return exe, rule, true, nil
}

// WellKnownPlugin identities recognized for per-invocation flag synthesis
// by inspecting the closed library set for well-known plugin identities.
const (
	PluginLocationInjection = "ppx_here"
	PluginInlineTest        = "ppx_inline_test"
	PluginInlineBench       = "ppx_bench"
)

// InvocationFlags synthesizes the per-invocation plugin arguments for a
// driver's closed library set, given the consuming stanza's own library
// name (needed to populate -inline-test-lib) and directory (needed to
// populate -dirname).
func InvocationFlags(dir, libName string, closedLibs []string) []string {
	has := make(map[string]bool, len(closedLibs))
	for _, l := range closedLibs {
		has[l] = true
	}
	var flags []string
	if has[PluginLocationInjection] {
		flags = append(flags, "-dirname", dir)
	}
	if has[PluginInlineTest] {
		flags = append(flags, "-inline-test-lib", libName)
	} else if has[PluginInlineBench] {
		// Inline benchmarks without the test library present still need
		// dead-code elimination of the benchmark forms in release builds.
		flags = append(flags, "-drop-with-key", "bench")
	}
	if has[PluginInlineTest] || has[PluginInlineBench] {
		flags = append(flags, "-drop-with-key", "test")
	}
	return flags
}
