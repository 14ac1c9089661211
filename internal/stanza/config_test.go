package stanza

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWorkspaceConfigAbsentFileIsEmpty(t *testing.T) {
	cfg, err := LoadWorkspaceConfig(filepath.Join(t.TempDir(), "rulegen.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.OCamloptFlags) != 0 {
		t.Fatalf("expected an empty config, got %+v", cfg)
	}
}

func TestLoadWorkspaceConfigParsesFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rulegen.yml")
	body := "ocamlopt_flags:\n  - -w\n  - -a\nc_flags:\n  - -O2\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWorkspaceConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.OCamloptFlags) != 2 || cfg.OCamloptFlags[0] != "-w" || cfg.OCamloptFlags[1] != "-a" {
		t.Fatalf("got %+v", cfg.OCamloptFlags)
	}
	if len(cfg.CFlags) != 1 || cfg.CFlags[0] != "-O2" {
		t.Fatalf("got %+v", cfg.CFlags)
	}
}
