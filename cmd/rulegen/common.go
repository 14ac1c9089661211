package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/gtrace"
	"github.com/rdavison/dune/internal/install"
	"github.com/rdavison/dune/internal/orchestrator"
	"github.com/rdavison/dune/internal/ppx"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/toolenv"
	"github.com/rdavison/dune/internal/workspace"
)

const defaultContext = bpath.Context("default")

// generationResult bundles every directory's emitted Output plus the
// realized rule list, the shape every subcommand renders differently.
type generationResult struct {
	outputs []*orchestrator.Output
	rules   []graph.Rule
}

// generate loads the workspace description at workspaceFile, builds the
// package and library databases, and dispatches every directory's
// stanzas through the orchestrator, realizing every emitted rule. ctx is
// checked once up front so a Ctrl-C during a long generation run is
// noticed before any work starts; the subcommands pass rootCtx, tests
// can pass any context directly without going through cobra.
func generate(ctx context.Context) (*generationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws, err := workspace.Load(workspaceFile)
	if err != nil {
		return nil, err
	}
	dirs, err := workspace.Convert(ws)
	if err != nil {
		return nil, err
	}

	root := toolenv.Root
	cfg, err := stanza.LoadWorkspaceConfig(filepath.Join(root, "rulegen.yml"))
	if err != nil {
		return nil, err
	}

	env := orchestrator.Env{
		Root:    root,
		Ctx:     defaultContext,
		Tools:   toolenv.Default(),
		Pkgs:    workspace.PackageDB(ws),
		Libs:    workspace.BuildIndex(dirs),
		Drivers: ppx.NewDriverMemo(),
		Config:  cfg,
	}

	var outputs []*orchestrator.Output
	var rules []graph.Rule
	for tid, d := range dirs {
		ev := gtrace.Event(d.Dir, tid)
		outs, err := orchestrator.BuildDirectory(env, d.Dir, d.Stanzas, d.Files)
		ev.Done()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Dir, err)
		}
		outputs = append(outputs, outs...)
		for _, out := range outs {
			for _, n := range out.Rules {
				rule, err := graph.Emit(n, nil, nil)
				if err != nil {
					return nil, err
				}
				rules = append(rules, rule)
			}
		}
	}

	return &generationResult{outputs: outputs, rules: rules}, nil
}

// mergedManifest folds every directory's install.Manifest into one,
// since install-manifest renders a single workspace-wide manifest.
func mergedManifest(outputs []*orchestrator.Output) *install.Manifest {
	merged := install.NewManifest("")
	for _, out := range outputs {
		if out.Manifest == nil {
			continue
		}
		for _, sec := range []install.Section{install.Lib, install.Libexec, install.Stublibs, install.Doc, install.Bin, install.Etc} {
			for _, e := range out.Manifest.Sections[sec] {
				merged.Add(sec, e)
			}
		}
	}
	return merged
}
