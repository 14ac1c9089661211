package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rdavison/dune/internal/install"
)

const fixtureWorkspace = `
packages:
  - name: acme.foo
    version: "1.0"
directories:
  - dir: lib/foo
    files: [foo.ml, foo.mli]
    stanzas:
      - kind: library
        library:
          name: foo
          public_name: acme.foo
  - dir: bin
    files: [main.ml]
    stanzas:
      - kind: executables
        executables:
          names: [main]
          libraries: [foo]
  - dir: share
    stanzas:
      - kind: install
        install:
          section: Doc
          files:
            - source: README.md
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.yml")
	if err := os.WriteFile(path, []byte(fixtureWorkspace), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateBuildsRulesAcrossDirectories(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	res, err := generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.outputs) != 3 {
		t.Fatalf("expected 3 stanza outputs (library, executables, install), got %d", len(res.outputs))
	}
	if len(res.rules) == 0 {
		t.Fatal("expected at least one realized rule")
	}
}

func TestGenerateRespectsCanceledContext(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := generate(ctx); err == nil {
		t.Fatal("expected an error from a canceled context")
	}
}

func TestMergedManifestFoldsSections(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	res, err := generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	merged := mergedManifest(res.outputs)
	if len(merged.Sections[install.Doc]) == 0 {
		t.Fatal("expected the install stanza's doc entry to survive merging")
	}
}

func TestBuildCmdReportsSummary(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	var out bytes.Buffer
	buildCmd.SetOut(&out)
	buildCmd.SetErr(&out)
	rootCtx = context.Background()
	if err := buildCmd.RunE(buildCmd, nil); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Fatal("expected a non-empty summary line")
	}
}

func TestInstallManifestCmdRendersMergedManifest(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	var out bytes.Buffer
	installManifestCmd.SetOut(&out)
	installManifestCmd.SetErr(&out)
	rootCtx = context.Background()
	if err := installManifestCmd.RunE(installManifestCmd, nil); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Fatal("expected rendered manifest text")
	}
}

func TestGraphCmdPrintsOneLinePerRule(t *testing.T) {
	workspaceFile = writeFixture(t)
	t.Cleanup(func() { workspaceFile = "workspace.yml" })

	var out bytes.Buffer
	graphCmd.SetOut(&out)
	graphCmd.SetErr(&out)
	rootCtx = context.Background()
	if err := graphCmd.RunE(graphCmd, nil); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Fatal("expected s-expression rule output")
	}
}
