package stanza

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// WorkspaceConfig is the optional "rulegen.yml" found at a workspace
// root: a baseline of default flags every directory's Ordered Set
// Language "standard" value is evaluated against, letting a workspace
// declare its own conventions (e.g. "always compile with -w -a") once
// instead of repeating them in every stanza.
type WorkspaceConfig struct {
	OCamlcFlags   []string `yaml:"ocamlc_flags"`
	OCamloptFlags []string `yaml:"ocamlopt_flags"`
	CFlags        []string `yaml:"c_flags"`
	CxxFlags      []string `yaml:"cxx_flags"`
}

// LoadWorkspaceConfig reads path, returning a zero-value WorkspaceConfig
// (an empty standard baseline, not an error) if the file is absent: a
// workspace is never required to declare one.
func LoadWorkspaceConfig(path string) (WorkspaceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WorkspaceConfig{}, nil
		}
		return WorkspaceConfig{}, xerrors.Errorf("reading %s: %w", path, err)
	}
	var cfg WorkspaceConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return WorkspaceConfig{}, xerrors.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
