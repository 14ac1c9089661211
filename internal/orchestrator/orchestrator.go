// Package orchestrator implements the top-level dispatcher: given a
// directory's already-typed stanzas (an external parser's output) and its
// discovered file set, it walks each stanza variant and invokes the
// emitter that knows how to turn it into rules, threading the shared
// process-wide ppx driver memo and library database across every
// directory in one generation run.
package orchestrator

import (
	"fmt"

	"github.com/rdavison/dune/internal/archive"
	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/compile"
	"github.com/rdavison/dune/internal/depscan"
	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/gen"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/install"
	"github.com/rdavison/dune/internal/libdb"
	"github.com/rdavison/dune/internal/moddb"
	"github.com/rdavison/dune/internal/pkgdb"
	"github.com/rdavison/dune/internal/ppx"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/stubs"
	"github.com/rdavison/dune/internal/toolenv"
)

// Env bundles the process-wide collaborators a generation run shares
// across every directory: the external package database, the internal
// library index built by an earlier discovery pass, the resolved tool
// environment, and the single ppx driver memo (at most one driver build
// per plugin set, workspace-wide).
type Env struct {
	Root    string
	Ctx     bpath.Context
	Tools   *toolenv.Config
	Pkgs    *pkgdb.DB
	Libs    libdb.Index
	Drivers *ppx.DriverMemo
	Config  stanza.WorkspaceConfig
}

// Output accumulates every rule and manifest entry a directory's stanzas
// produced. Rules is intentionally a flat list: ordering between rules
// carries no meaning, only the dependency edges each rule records do.
type Output struct {
	Rules    []graph.Node[graph.Action]
	Manifest *install.Manifest
	Merlin   []install.MerlinLine
}

func (o *Output) add(n graph.Node[graph.Action], ok bool) {
	if ok {
		o.Rules = append(o.Rules, n)
	}
}

// BuildLibrary emits every rule a Library stanza expands to: module
// discovery and filtering, preprocessing, dependency scanning, per-module
// compilation, the library-wide all-cm sentinels, the stub pipeline (if
// any), the archive/cmxs rules, and its install-manifest contribution.
func BuildLibrary(env Env, dir string, spec stanza.LibSpec, files []string) (*Output, error) {
	out := &Output{Manifest: install.NewManifest(spec.BestName())}

	discovered, err := moddb.Discover(dir, files)
	if err != nil {
		return nil, err
	}
	mods, err := moddb.ParseModules(dir, spec.Modules, discovered)
	if err != nil {
		return nil, err
	}
	mods = compile.AssignObjectNames(spec.Name, spec.Wrapped, mods)

	var aliasModuleName string
	if compile.NeedsAlias(spec.Wrapped, mods) {
		alias, body := compile.AliasModule(spec.Name, mods)
		out.add(compile.AliasRule(env.Root, env.Ctx, dir, alias, body), true)
		mods = append(mods, alias)
		aliasModuleName = alias.Name
	}

	objectNameOf := make(map[string]string, len(mods))
	for _, m := range mods {
		objectNameOf[m.Name] = m.ObjectName
	}

	mods, err = preprocessModules(env, out, dir, spec, mods)
	if err != nil {
		return nil, err
	}

	idx := libdb.Index(env.Libs)
	rs := libdb.InterpretLibDeps(idx, env.Pkgs, spec.Libraries)
	if !spec.Optional {
		if err := libdb.DeferredFailure(dir, rs.Missing); err != nil {
			return nil, err
		}
	}

	scannerProg := env.Tools.OCamlDep()
	out.add(depscan.Scan(env.Root, env.Ctx, dir, scannerProg, aliasModuleName, mods), true)

	depsNode := graph.Map(dependencyMap(env.Root, env.Ctx, dir, depscan.Impl), func(m stanza.DepMap) stanza.DepMap {
		return depscan.InjectAlias(m, aliasModuleName)
	})

	standardOCamlc, _ := spec.OCamlcFlags.Eval(env.Config.OCamlcFlags, nil)
	standardOCamlopt, _ := spec.OCamloptFlags.Eval(env.Config.OCamloptFlags, nil)
	linkFlags, _ := spec.LinkFlags.Eval(nil, nil)
	cLibraryFlags, _ := spec.CLibraryFlags.Eval(nil, nil)

	libCtx := compile.LibContext{
		Dir:           dir,
		ObjectNameOf:  objectNameOf,
		AliasModule:   aliasModuleName,
		OCamlcFlags:   standardOCamlc,
		OCamloptFlags: standardOCamlopt,
		LinkFlags:     linkFlags,
	}

	allCMDeps := libraryClosureSentinels(env.Ctx, rs)

	var byteCM, nativeCM []bpath.P
	for _, m := range mods {
		m := m
		modDeps := graph.Map(depsNode, func(full stanza.DepMap) []string { return full[m.Name] })
		for artifact, rule := range compile.ModuleRules(env.Root, env.Ctx, libCtx, m, env.Tools, modDeps, allCMDeps) {
			out.add(rule, true)
			switch artifact {
			case compile.Bytecode:
				byteCM = append(byteCM, compile.ArtifactPath(env.Ctx, dir, m.ObjectName, compile.Bytecode))
			case compile.Native:
				nativeCM = append(nativeCM, compile.ArtifactPath(env.Ctx, dir, m.ObjectName, compile.Native))
			}
		}
	}
	if spec.HasMode("byte") {
		out.add(compile.AllCMSentinel(env.Root, env.Ctx, dir, spec.Name, compile.Bytecode, byteCM), true)
	}
	if spec.HasMode("native") {
		out.add(compile.AllCMSentinel(env.Root, env.Ctx, dir, spec.Name, compile.Native, nativeCM), true)
	}

	var stubsArchive bpath.P
	if !spec.SelfBuildStubsArchive && (len(spec.CNames) > 0 || len(spec.CxxNames) > 0) {
		cFlags, _ := spec.CFlags.Eval(env.Config.CFlags, nil)
		cxxFlags, _ := spec.CxxFlags.Eval(env.Config.CxxFlags, nil)

		var objects []bpath.P
		for _, name := range spec.CNames {
			if rule, obj, ok := stubs.ObjectRule(env.Root, env.Ctx, dir, name, stubs.C, env.Tools, cFlags); ok {
				out.add(rule, true)
				objects = append(objects, obj)
			}
		}
		for _, name := range spec.CxxNames {
			if rule, obj, ok := stubs.ObjectRule(env.Root, env.Ctx, dir, name, stubs.Cxx, env.Tools, cxxFlags); ok {
				out.add(rule, true)
				objects = append(objects, obj)
			}
		}
		if r, ok := stubs.ArchiveRule(env.Root, env.Ctx, dir, spec.Name, objects, env.Tools, cLibraryFlags); ok {
			out.add(r, true)
			stubsArchive = bpath.Build(env.Ctx, dir+"/lib"+spec.Name+"_stubs.a")
		}
	} else if spec.SelfBuildStubsArchive {
		stubsArchive = bpath.Build(env.Ctx, dir+"/lib"+spec.Name+"_stubs.a")
	}

	linkOrder := linkOrderNode(depsNode, moduleNames(mods), dir)

	isRewriter := spec.Kind == stanza.KindPpxRewriter || spec.Kind == stanza.KindPpxTypeConvPlugin
	if spec.HasMode("byte") {
		if _, ok := env.Tools.Lookup("OCAMLC"); ok {
			cfg := archive.ArchiveConfig{
				Dir: dir, LibName: spec.Name, ObjectNameOf: objectNameOf,
				ModeFlags: standardOCamlc, LinkFlags: linkFlags, CLibraryFlags: cLibraryFlags,
				HasStubs: !stubsArchive.IsZero(), LinkAll: isRewriter,
			}
			out.add(graph.FlatMap(linkOrder, func(order []string) graph.Node[graph.Action] {
				rule, _ := archive.ArchiveRule(env.Root, env.Ctx, cfg, archive.Byte, env.Tools, order)
				return rule
			}), true)
		}
	}
	if spec.HasMode("native") {
		if _, ok := env.Tools.Lookup("OCAMLOPT"); ok {
			cfg := archive.ArchiveConfig{
				Dir: dir, LibName: spec.Name, ObjectNameOf: objectNameOf,
				ModeFlags: standardOCamlopt, LinkFlags: linkFlags, CLibraryFlags: cLibraryFlags,
				HasStubs: !stubsArchive.IsZero(), LinkAll: isRewriter,
			}
			out.add(graph.FlatMap(linkOrder, func(order []string) graph.Node[graph.Action] {
				rule, _ := archive.ArchiveRule(env.Root, env.Ctx, cfg, archive.Native, env.Tools, order)
				return rule
			}), true)
		}
		if r, ok := archive.CmxsRule(env.Root, env.Ctx, dir, spec.Name, env.Tools, stubsArchive); ok {
			out.add(r, true)
		}
	}

	out.Manifest.AddLibraryArtifacts(env.Ctx, stanza.InternalLib{BuildDir: dir, Spec: spec})
	return out, nil
}

func asCycleError(err error, target **direrr.CycleError) bool {
	ce, ok := err.(*direrr.CycleError)
	if ok {
		*target = ce
	}
	return ok
}

func moduleNames(mods []stanza.Module) []string {
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return names
}

// dependencyMap is a Node producing a directory's persisted module
// dependency map (the scanner's output, written by the depscan rule this
// directory also emits). The backing file is registered as a real input
// via graph.Path, threaded through the same Realizer as every other rule
// built from it, so a later generation run over an executed build sees
// the edge; the read itself is best-effort via a throwaway Realize, since
// on a clean build the scanner hasn't run yet and the file doesn't exist
// — two-phase dynamic dependencies are the executor's contract, not the
// generator's.
func dependencyMap(root string, ctx bpath.Context, dir string, k depscan.Kind) graph.Node[stanza.DepMap] {
	spec := depscan.VFile(ctx, dir, k)
	return graph.FlatMap(graph.Path(spec.Path), func(bpath.P) graph.Node[stanza.DepMap] {
		m, _, _ := graph.Realize(graph.VPath(root, spec))
		return graph.Pure(m)
	})
}

// linkOrderNode closes deps over roots once the dependency map is known,
// deferring a cycle to a FailNode rather than aborting generation: the
// cycle only surfaces when whichever archive/executable rule consumes
// this order is itself realized.
func linkOrderNode(deps graph.Node[stanza.DepMap], roots []string, dir string) graph.Node[[]string] {
	return graph.FlatMap(deps, func(m stanza.DepMap) graph.Node[[]string] {
		order, err := archive.LinkOrder(m, roots)
		if err != nil {
			var cycleErr *direrr.CycleError
			if asCycleError(err, &cycleErr) {
				err = fmt.Errorf("%s: %w", dir, cycleErr)
			}
			return graph.FailNode[[]string](func() error { return err })
		}
		return graph.Pure(order)
	})
}

// libraryClosureSentinels is the all-cm sentinel path of every internal
// library rs names directly, for each mode that library builds: a module
// compiling against a dependency library waits on that whole library's
// cm files, not just the specific modules it imports. Libraries reached
// only transitively are not included.
func libraryClosureSentinels(ctx bpath.Context, rs libdb.ResolvedSet) []bpath.P {
	var deps []bpath.P
	for _, lib := range rs.Internals {
		if lib.Spec.HasMode("byte") {
			deps = append(deps, compile.AllCMSentinelPath(ctx, lib.BuildDir, lib.Spec.Name, compile.Bytecode))
		}
		if lib.Spec.HasMode("native") {
			deps = append(deps, compile.AllCMSentinelPath(ctx, lib.BuildDir, lib.Spec.Name, compile.Native))
		}
	}
	return deps
}

// preprocessModules replaces each module needing preprocessing with its
// lifted counterpart and emits the corresponding ppx/metaquot/command
// rule, building the plugin driver (at most once per workspace) on first
// use of a given plugin set.
func preprocessModules(env Env, out *Output, dir string, spec stanza.LibSpec, mods []stanza.Module) ([]stanza.Module, error) {
	lifted := make([]stanza.Module, len(mods))
	for i, m := range mods {
		choice := spec.Preprocess.For(m.Name)
		if choice.None {
			lifted[i] = m
			continue
		}
		var driverExe bpath.P
		if choice.Pps != nil {
			closer := func(names []string) ([]string, error) {
				rs := libdb.InterpretLibDeps(env.Libs, env.Pkgs, namesToDeps(names))
				closed, _, err := realizeClosure(env, rs)
				return closed, err
			}
			exe, rule, isNew, err := ppx.DriverFor(env.Drivers, env.Root, env.Ctx, closer, choice.Pps.Plugins)
			if err != nil {
				return nil, err
			}
			if isNew {
				out.add(rule, true)
			}
			driverExe = exe
		}
		out.add(ppx.Rule(env.Root, dir, m, choice, driverExe), true)
		lifted[i] = ppx.Lift(m)
	}
	return lifted, nil
}

func namesToDeps(names []string) []stanza.LibDep {
	deps := make([]stanza.LibDep, len(names))
	for i, n := range names {
		deps[i] = stanza.DirectDep(n)
	}
	return deps
}

func realizeClosure(env Env, rs libdb.ResolvedSet) ([]string, *graph.Realizer, error) {
	v, r, err := graph.Realize(libdb.Closure(env.Root, env.Ctx, env.Pkgs, rs))
	return v, r, err
}

// BuildExecutables emits every rule an Executables stanza expands to:
// one compiled artifact per declared name, per enabled mode, linked
// against its module closure with the stanza's own link_flags. No library
// archives or library link flags are passed to the link step.
func BuildExecutables(env Env, dir string, spec stanza.ExecutablesSpec, files []string) (*Output, error) {
	out := &Output{Manifest: install.NewManifest("")}

	discovered, err := moddb.Discover(dir, files)
	if err != nil {
		return nil, err
	}
	mods, err := moddb.ParseModules(dir, spec.Modules, discovered)
	if err != nil {
		return nil, err
	}
	mods = compile.AssignObjectNames("", false, mods)

	objectNameOf := make(map[string]string, len(mods))
	for _, m := range mods {
		objectNameOf[m.Name] = m.ObjectName
	}

	idx := libdb.Index(env.Libs)
	rs := libdb.InterpretLibDeps(idx, env.Pkgs, spec.Libraries)
	if err := libdb.DeferredFailure(dir, rs.Missing); err != nil {
		return nil, err
	}

	scannerProg := env.Tools.OCamlDep()
	out.add(depscan.Scan(env.Root, env.Ctx, dir, scannerProg, "", mods), true)

	depsNode := dependencyMap(env.Root, env.Ctx, dir, depscan.Impl)

	linkFlags, _ := spec.LinkFlags.Eval(nil, nil)

	libCtx := compile.LibContext{
		Dir: dir, ObjectNameOf: objectNameOf, LinkFlags: linkFlags,
	}

	allCMDeps := libraryClosureSentinels(env.Ctx, rs)

	for _, m := range mods {
		m := m
		modDeps := graph.Map(depsNode, func(full stanza.DepMap) []string { return full[m.Name] })
		for _, rule := range compile.ModuleRules(env.Root, env.Ctx, libCtx, m, env.Tools, modDeps, allCMDeps) {
			out.add(rule, true)
		}
	}

	linkOrder := linkOrderNode(depsNode, moduleNames(mods), dir)

	for _, name := range spec.Names {
		if spec.Modes["byte"] {
			if _, ok := env.Tools.Lookup("OCAMLC"); ok {
				out.add(graph.FlatMap(linkOrder, func(order []string) graph.Node[graph.Action] {
					rule, _ := archive.ExecutableRule(env.Root, env.Ctx, dir, name, archive.Byte, env.Tools, objectNameOf, order, nil, linkFlags)
					return rule
				}), true)
			}
		}
		if spec.Modes["native"] {
			if _, ok := env.Tools.Lookup("OCAMLOPT"); ok {
				out.add(graph.FlatMap(linkOrder, func(order []string) graph.Node[graph.Action] {
					rule, _ := archive.ExecutableRule(env.Root, env.Ctx, dir, name, archive.Native, env.Tools, objectNameOf, order, nil, linkFlags)
					return rule
				}), true)
			}
		}
		install.AddExecutable(out.Manifest, env.Ctx, dir, name, spec.Modes)
	}

	return out, nil
}

// BuildDirectory dispatches every stanza declared in one directory to its
// matching emitter, accumulating every directory's Output into one flat
// list for the caller to merge into the run-wide rule set.
func BuildDirectory(env Env, dir string, stanzas []stanza.Stanza, files []string) ([]*Output, error) {
	var outs []*Output
	for _, s := range stanzas {
		switch s.Kind {
		case stanza.KindLibrary:
			out, err := BuildLibrary(env, dir, *s.Library, files)
			if err != nil {
				return nil, err
			}
			outs = append(outs, out)
		case stanza.KindExecutables:
			out, err := BuildExecutables(env, dir, *s.Executables, files)
			if err != nil {
				return nil, err
			}
			outs = append(outs, out)
		case stanza.KindOcamllex:
			out := &Output{Manifest: install.NewManifest("")}
			for _, name := range s.Ocamllex.Names {
				if pipe, ok := gen.LexRule(env.Root, env.Ctx, dir, name, env.Tools); ok {
					out.add(pipe.Generate, true)
					out.add(pipe.Rewrite, true)
				}
			}
			outs = append(outs, out)
		case stanza.KindOcamlyacc:
			out := &Output{Manifest: install.NewManifest("")}
			for _, name := range s.Ocamlyacc.Names {
				if pipe, ok := gen.YaccRule(env.Root, env.Ctx, dir, name, env.Tools); ok {
					out.add(pipe.Generate, true)
					out.add(pipe.RewriteML, true)
					out.add(pipe.RewriteMLI, true)
				}
			}
			outs = append(outs, out)
		case stanza.KindInstall:
			m := install.NewManifest("")
			m.AddInstallSpec(dir, *s.Install)
			outs = append(outs, &Output{Manifest: m})
		}
	}
	return outs, nil
}
