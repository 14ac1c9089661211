// Package stanza holds the declarative data model read from a directory's
// build description: module records, library specs, library dependency
// expressions, the preprocess map, and the stanza variants themselves.
// The S-expression parser that produces these values from a stanza file
// is an external collaborator; this package only defines the typed shape
// downstream components consume.
package stanza

import (
	"strings"
	"unicode"

	"golang.org/x/xerrors"
)

// Module is a build unit's module record. Name is the capitalized stem of
// ImplFile; ObjectName starts empty and is assigned later by library
// setup (internal/compile.AssignObjectNames). Preprocessor lifting
// (internal/ppx.Lift) replaces ImplFile and IntfFile and keeps ObjectName.
type Module struct {
	Name       string
	ImplFile   string // relative filename, e.g. "foo.ml"
	IntfFile   string // relative filename, e.g. "foo.mli"; "" if absent
	ObjectName string
}

// HasIntf reports whether the module has an explicit interface file.
func (m Module) HasIntf() bool { return m.IntfFile != "" }

// Capitalize maps a module's file stem to its capitalized Ident: a
// module's name is always the capitalized stem of its impl file.
func Capitalize(stem string) string {
	if stem == "" {
		return stem
	}
	r := []rune(stem)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Stem strips the extension from filename, e.g. "foo.ml" -> "foo".
func Stem(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[:i]
	}
	return filename
}

// Ext returns filename's extension including the leading dot, or "" if
// there is none.
func Ext(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i:]
	}
	return ""
}

// ValidateName reports a configuration error if name is not a capitalized
// identifier, matching the fatal "duplicate module stem"/"unknown module"
// class of configuration error.
func ValidateName(name string) error {
	if name == "" {
		return xerrors.Errorf("module name must not be empty")
	}
	r := []rune(name)
	if !unicode.IsUpper(r[0]) {
		return xerrors.Errorf("module name %q must start with a capital letter", name)
	}
	return nil
}

// DepMap is the dependency map: a mapping from a module's
// name to an ordered list of the names of the modules it depends on.
// Values reference only keys present in the same map plus, optionally, an
// injected alias module (see depscan.InjectAlias).
type DepMap map[string][]string

// Validate checks that every dependency name is a key (or the allowed
// alias exception) and that there are no self-edges.
func (m DepMap) Validate(aliasModule string) error {
	for name, deps := range m {
		for _, d := range deps {
			if d == name {
				return xerrors.Errorf("module %q depends on itself", name)
			}
			if _, ok := m[d]; !ok && d != aliasModule {
				return xerrors.Errorf("module %q depends on unknown module %q", name, d)
			}
		}
	}
	return nil
}
