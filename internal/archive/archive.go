// Package archive implements the archive and executable emitter: it
// closes a module set over the persisted dependency graph into link
// order, then emits the per-mode archive rule, the native shared-object
// rule, and the executable rule.
package archive

import (
	"fmt"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/compile"
	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/toolenv"
)

// Mode discriminates the two code-generation link modes.
type Mode int

const (
	Byte Mode = iota
	Native
)

// ArchiveExt is the mode's archive file extension.
func (m Mode) ArchiveExt() string {
	if m == Native {
		return ".cmxa"
	}
	return ".cma"
}

func (m Mode) cmKind() compile.Artifact {
	if m == Native {
		return compile.Native
	}
	return compile.Bytecode
}

func (m Mode) compilerVar() string {
	if m == Native {
		return "OCAMLOPT"
	}
	return "OCAMLC"
}

// LinkOrder closes roots over depMap via a depth-first walk, visiting
// dependencies before dependents, so the returned order is safe to pass
// to a linker one module at a time. A module reachable from roots but
// absent from depMap is treated as having no further dependencies.
//
// On a cycle, returns a *direrr.CycleError naming the cycle starting and
// ending at the module where the back-edge was found.
func LinkOrder(depMap stanza.DepMap, roots []string) ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(depMap))
	var order []string
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range depMap[name] {
			switch color[dep] {
			case gray:
				return &direrr.CycleError{Cycle: append(cycleFrom(stack, dep), dep)}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, r := range roots {
		if color[r] == white {
			if err := visit(r); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func cycleFrom(stack []string, start string) []string {
	for i, s := range stack {
		if s == start {
			return append([]string(nil), stack[i:]...)
		}
	}
	return stack
}

// ArchiveConfig bundles the per-library inputs ArchiveRule needs beyond
// mode and link order.
type ArchiveConfig struct {
	Dir            string
	LibName        string
	ObjectNameOf   map[string]string // Module.name -> object name, in link order
	ModeFlags      []string          // ocamlc_flags or ocamloptflags, already OrderedSetLang-evaluated
	LinkFlags      []string
	CLibraryFlags  []string
	HasStubs       bool // whether the library declares c_names/cxx_names or a prebuilt stubs archive
	LinkAll        bool // rewriter/type-conv-plugin kinds force -linkall
}

// ArchiveRule emits the rule invoking mode's compiler with -a over order
// (already closed via LinkOrder) to produce the mode's archive. Native
// archiving additionally produces the platform .a companion as a second
// target, since ocamlopt -a always emits both.
func ArchiveRule(root string, ctx bpath.Context, cfg ArchiveConfig, mode Mode, cc *toolenv.Config, order []string) (graph.Node[graph.Action], bool) {
	prog, ok := cc.Lookup(mode.compilerVar())
	if !ok {
		return graph.Node[graph.Action]{}, false
	}

	var argSpec []graph.ArgFrag
	argSpec = append(argSpec, graph.Lit("-a"))
	argSpec = append(argSpec, graph.LitAll(cfg.ModeFlags)...)
	if cfg.HasStubs {
		if mode == Byte {
			argSpec = append(argSpec, graph.Lit("-dllib"), graph.Lit("-l"+cfg.LibName+"_stubs"))
		}
		argSpec = append(argSpec, graph.Lit("-cclib"), graph.Lit("-l"+cfg.LibName+"_stubs"))
	}
	for _, f := range cfg.CLibraryFlags {
		argSpec = append(argSpec, graph.Lit("-cclib"), graph.Lit(f))
	}
	if cfg.LinkAll {
		argSpec = append(argSpec, graph.Lit("-linkall"))
	}
	for _, name := range order {
		obj := cfg.ObjectNameOf[name]
		if obj == "" {
			continue
		}
		argSpec = append(argSpec, graph.ArgPath(compile.ArtifactPath(ctx, cfg.Dir, obj, mode.cmKind())))
	}

	archivePath := bpath.Build(ctx, cfg.Dir+"/"+cfg.LibName+mode.ArchiveExt())
	argSpec = append(argSpec, graph.ArgTarget(archivePath))
	if mode == Native {
		argSpec = append(argSpec, graph.ArgTarget(bpath.Build(ctx, cfg.Dir+"/"+cfg.LibName+".a")))
	}

	return graph.Run(root, cfg.Dir, prog, argSpec, nil, nil, nil, nil), true
}

// CmxsRule emits the native shared-object rule, linked with -shared
// -linkall from the library's .cmxa. stubsArchive, if non-zero, is an
// extra dependency so the shared object waits on the stub archive's
// completion, matching the ordering guarantee stub objects -> stub
// archive -> byte/native archives -> .cmxs.
func CmxsRule(root string, ctx bpath.Context, dir, libName string, cc *toolenv.Config, stubsArchive bpath.P) (graph.Node[graph.Action], bool) {
	ocamlopt, ok := cc.Lookup("OCAMLOPT")
	if !ok {
		return graph.Node[graph.Action]{}, false
	}
	cmxa := bpath.Build(ctx, dir+"/"+libName+".cmxa")
	cmxs := bpath.Build(ctx, dir+"/"+libName+".cmxs")
	argSpec := []graph.ArgFrag{
		graph.Lit("-shared"), graph.Lit("-linkall"),
		graph.ArgPath(cmxa),
	}
	if !stubsArchive.IsZero() {
		argSpec = append(argSpec, graph.ArgPath(stubsArchive))
	}
	argSpec = append(argSpec, graph.ArgTarget(cmxs))
	return graph.Run(root, dir, ocamlopt, argSpec, nil, nil, nil, nil), true
}

// ExecutableRule emits the rule linking an executable from the closed,
// ordered cm files of its own module set plus its library closure's
// link flags and the stanza's own link_flags.
func ExecutableRule(root string, ctx bpath.Context, dir, name string, mode Mode, cc *toolenv.Config, objectNameOf map[string]string, order []string, closureLinkFlags, ownLinkFlags []string) (graph.Node[graph.Action], bool) {
	prog, ok := cc.Lookup(mode.compilerVar())
	if !ok {
		return graph.Node[graph.Action]{}, false
	}
	var argSpec []graph.ArgFrag
	argSpec = append(argSpec, graph.LitAll(closureLinkFlags)...)
	argSpec = append(argSpec, graph.LitAll(ownLinkFlags)...)
	for _, n := range order {
		obj := objectNameOf[n]
		if obj == "" {
			continue
		}
		argSpec = append(argSpec, graph.ArgPath(compile.ArtifactPath(ctx, dir, obj, mode.cmKind())))
	}
	ext := ".byte"
	if mode == Native {
		ext = ".exe"
	}
	target := bpath.Build(ctx, fmt.Sprintf("%s/%s%s", dir, name, ext))
	argSpec = append(argSpec, graph.Lit("-o"), graph.ArgTarget(target))
	return graph.Run(root, dir, prog, argSpec, nil, nil, nil, nil), true
}
