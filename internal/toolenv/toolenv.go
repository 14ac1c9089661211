// Package toolenv resolves the built-in variable map available to user
// actions and the workspace root directory: an environment variable
// override, falling back to a sane default.
package toolenv

import (
	"os"
	"os/exec"
)

// Root is the workspace root directory (the ROOT built-in variable is
// computed relative to it per directory). RULEGEN_ROOT overrides the
// default of the current working directory.
var Root = findRoot()

func findRoot() string {
	if v := os.Getenv("RULEGEN_ROOT"); v != "" {
		return v
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Config is the resolved built-in variable map. Default resolves every
// value once, when it builds the Config; a tool not found on PATH keeps
// its bare name, so a workspace without a C++ toolchain installed does
// not fail merely because Config was constructed.
type Config struct {
	vars map[string]string
}

func lookPath(name string) string {
	p, err := exec.LookPath(name)
	if err != nil {
		return name // unresolved; let the action itself fail at realization
	}
	return p
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Default builds the built-in variable map from the environment,
// overridable per variable (e.g. OCAMLC=/path/to/ocamlc.opt rulegen build).
func Default() *Config {
	ocamlBin := envOr("OCAML_BIN", "")
	c := &Config{vars: map[string]string{
		"CPP":            envOr("CPP", lookPath("cpp")),
		"PA_CPP":         envOr("PA_CPP", lookPath("cpp")),
		"CC":             envOr("CC", lookPath("cc")),
		"CXX":            envOr("CXX", lookPath("c++")),
		"ocaml_bin":      ocamlBin,
		"OCAML":          envOr("OCAML", lookPath("ocaml")),
		"OCAMLC":         envOr("OCAMLC", lookPath("ocamlc")),
		"OCAMLOPT":       envOr("OCAMLOPT", lookPath("ocamlopt")),
		"OCAMLMKLIB":     envOr("OCAMLMKLIB", lookPath("ocamlmklib")),
		"MAKE":           envOr("MAKE", lookPath("make")),
		"-verbose":       "",
		"ARCH_SIXTYFOUR": envOr("ARCH_SIXTYFOUR", "true"),
		"PORTABLE_INT63": envOr("PORTABLE_INT63", "true"),
	}}
	c.vars["ocaml_version"] = envOr("OCAML_VERSION", detectOCamlVersion(c.vars["OCAMLC"]))
	c.vars["ocaml_where"] = envOr("OCAML_WHERE", detectOCamlWhere(c.vars["OCAMLC"]))
	return c
}

func detectOCamlVersion(ocamlc string) string {
	out, err := exec.Command(ocamlc, "-version").Output()
	if err != nil {
		return "unknown"
	}
	return trimNL(string(out))
}

func detectOCamlWhere(ocamlc string) string {
	out, err := exec.Command(ocamlc, "-where").Output()
	if err != nil {
		return ""
	}
	return trimNL(string(out))
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// New builds a Config directly from vars, bypassing environment and PATH
// lookups. Used by tests that need a fixed, deterministic tool set.
func New(vars map[string]string) *Config {
	return &Config{vars: vars}
}

// Lookup returns the built-in variable's value and whether it exists,
// used by internal/gen's variable expander.
func (c *Config) Lookup(name string) (string, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// OCamlDep resolves the external scanner binary used by internal/depscan.
// It is not one of the user-facing built-in variables, so it is kept off
// the vars map and exposed as its own accessor instead.
func (c *Config) OCamlDep() string {
	return envOr("OCAMLDEP", lookPath("ocamldep"))
}
