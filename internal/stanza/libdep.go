package stanza

// LibDep is the variant type: either a direct reference to
// a library by name, or a Select that resolves to exactly one concrete
// source file chosen by the first satisfied predicate set.
type LibDep struct {
	// Direct holds the referenced library name when Select is nil.
	Direct string
	// Select, if non-nil, makes this a Select-variant dependency.
	Select *Select
}

// IsSelect reports whether d is the Select variant.
func (d LibDep) IsSelect() bool { return d.Select != nil }

// DirectDep constructs a Direct-variant LibDep.
func DirectDep(name string) LibDep { return LibDep{Direct: name} }

// SelectChoice is one alternative in a Select expression: src is chosen if
// every package in Preds is present in the resolved package set.
type SelectChoice struct {
	Preds []string // package names all of which must be present
	Src   string    // source file to copy from when this choice wins
}

// Select is the Select-variant payload: a list of choices tried in order,
// an optional Default chosen when none of Choices matches, and the
// destination filename the winning source is materialized as.
type Select struct {
	Choices    []SelectChoice
	Default    string // "" if there is no default; absence of a match is then fatal
	ResultFile string
}

// SelectDep constructs a Select-variant LibDep.
func SelectDep(s Select) LibDep { return LibDep{Select: &s} }

// Resolve picks the first choice whose predicates are all satisfied by
// present (the resolved package name set). It returns the chosen source
// file, or the Default if no
// choice matches and a Default was declared, or false if neither matches.
func (s Select) Resolve(present map[string]bool) (src string, ok bool) {
	for _, c := range s.Choices {
		satisfied := true
		for _, p := range c.Preds {
			if !present[p] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return c.Src, true
		}
	}
	if s.Default != "" {
		return s.Default, true
	}
	return "", false
}
