package stanza

import "github.com/rdavison/dune/internal/oset"

// PpxKind distinguishes an ordinary library from the two preprocessor-
// plugin kinds.
type PpxKind int

const (
	KindNormal PpxKind = iota
	KindPpxRewriter
	KindPpxTypeConvPlugin
)

// PreprocessChoice is one entry of a PreprocessMap.
type PreprocessChoice struct {
	// None: the module passes through unpreprocessed.
	None bool
	// Metaquot: preprocessed with the metaquotation rewriter.
	Metaquot bool
	// Command, if non-empty, is an ad-hoc shell command template.
	Command string
	// Pps, if non-nil, requests the plugin-driver pipeline.
	Pps *PpsChoice
}

// PpsChoice is the Pps-variant payload: the plugin set to compose into a
// driver, and extra flags passed to every invocation.
type PpsChoice struct {
	Plugins []string // plugin library names; canonicalized (sorted) by ppx.DriverKey
	Flags   []string
}

// PreprocessMap maps a module name to its PreprocessChoice; a module not
// present uses Default: a per-module default applies when the module is
// not keyed explicitly.
type PreprocessMap struct {
	PerModule map[string]PreprocessChoice
	Default   PreprocessChoice
}

// For returns the PreprocessChoice for a module, applying Default when
// the module has no explicit entry.
func (pm PreprocessMap) For(module string) PreprocessChoice {
	if c, ok := pm.PerModule[module]; ok {
		return c
	}
	return pm.Default
}

// DepConf is one entry of LibSpec.PreprocessorDeps: a runtime dependency a
// preprocessor driver needs at the consuming stanza's build time (data
// files, generated sources), distinct from the plugin libraries it links.
type DepConf struct {
	Name string
	Kind string // e.g. "file", "glob", "package"
}

// LibSpec is the library stanza record.
type LibSpec struct {
	Name        string
	PublicName  string // "" if not declared; BestName falls back to Name
	Wrapped     bool
	Modes       map[string]bool // "byte", "native"
	Kind        PpxKind
	Optional    bool

	Libraries           []LibDep
	PpxRuntimeLibraries []LibDep

	Preprocess        PreprocessMap
	PreprocessorDeps  []DepConf
	VirtualDeps       []string

	Flags          *oset.Expr
	CFlags         *oset.Expr
	CxxFlags       *oset.Expr
	OCamlcFlags    *oset.Expr
	OCamloptFlags  *oset.Expr
	LinkFlags      *oset.Expr
	LibraryFlags   *oset.Expr
	CLibraryFlags  *oset.Expr

	CNames           []string
	CxxNames         []string
	InstallCHeaders  []string

	SelfBuildStubsArchive bool
	JSArtifacts           []string

	// Modules is the user-declared module set expression; nil means use
	// every module discovered in the directory.
	Modules *oset.Expr
}

// BestName is the library's identity: its public name if declared,
// otherwise its local name.
func (l LibSpec) BestName() string {
	if l.PublicName != "" {
		return l.PublicName
	}
	return l.Name
}

// HasMode reports whether mode ("byte" or "native") is requested.
func (l LibSpec) HasMode(mode string) bool { return l.Modes[mode] }
