package stanza

import "github.com/rdavison/dune/internal/oset"

// Kind discriminates the stanza variants.
type Kind int

const (
	KindLibrary Kind = iota
	KindExecutables
	KindRule
	KindOcamllex
	KindOcamlyacc
	KindInstall
	KindProvides
	KindOther
)

// Stanza is one top-level form in a directory's build description. The
// surface S-expression syntax is parsed by an external collaborator;
// this struct is the typed result the orchestrator dispatches on.
type Stanza struct {
	Kind Kind

	Library     *LibSpec
	Executables *ExecutablesSpec
	Rule        *UserRuleSpec
	Ocamllex    *GeneratorSpec
	Ocamlyacc   *GeneratorSpec
	Install     *InstallSpec
	Provides    *ProvidesSpec
}

// ExecutablesSpec is the Executables stanza: one or more executable names
// sharing one module set and dependency list.
type ExecutablesSpec struct {
	Names        []string
	Libraries    []LibDep
	Preprocess   PreprocessMap
	Modules      *oset.Expr
	LinkFlags    *oset.Expr
	Modes        map[string]bool
}

// GeneratorSpec is the Ocamllex/Ocamlyacc stanza: names map 1:1 to
// <name>.mll/<name>.mly source files.
type GeneratorSpec struct {
	Names []string
}

// UserRuleSpec is the Rule stanza.
type UserRuleSpec struct {
	Deps    []string // dependency expressions, including glob/recursive forms
	Targets []string
	Action  []string // argv, each element subject to variable expansion
}

// InstallSpec is an explicit Install stanza: files to be
// installed into a named section without being produced by a Library or
// Executables stanza.
type InstallSpec struct {
	Section string // "Lib", "Libexec", "Stublibs", "Doc", "Bin", "Etc"
	Files   []InstallFile
	Package string
}

// InstallFile is one entry of an InstallSpec.
type InstallFile struct {
	Source          string
	OptionalDestName string
}

// ProvidesSpec declares a package name -> providing-library association.
// No emitter reads it: internal/orchestrator.BuildDirectory skips
// Provides stanzas.
type ProvidesSpec struct {
	Package   string
	Libraries []string
}
