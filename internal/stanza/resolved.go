package stanza

// Package is an external (third-party) package as returned by the package
// database façade. The façade itself is an external
// collaborator; this is the typed shape pkgdb's client code consumes.
type Package struct {
	Name        string
	RootName    string // root_package_name(Name): the META-segmentation root
	Version     string // semver, e.g. "v1.2.0"; "" if the database doesn't track versions for this package
	HeaderDirs  []string
	ArchiveDirs []string
}

// ResolvedLib is the Resolved library variant: either Internal (a
// library built by this workspace) or External (from the package
// database). Identity is BestName.
type ResolvedLib struct {
	// Internal, if non-nil, makes this the Internal variant.
	Internal *InternalLib
	// External, if non-nil (and Internal is nil), makes this the External
	// variant.
	External *Package
}

// InternalLib is the Internal-variant payload: the directory the library
// was declared in (a build-relative path string, kept as string here to
// avoid an import cycle with bpath; callers format it themselves) and its
// LibSpec.
type InternalLib struct {
	BuildDir string
	Spec     LibSpec
}

// BestName is the resolved library's identity, used for ordered
// deduplication and persisted-closure serialization.
func (r ResolvedLib) BestName() string {
	if r.Internal != nil {
		return r.Internal.Spec.BestName()
	}
	if r.External != nil {
		return r.External.Name
	}
	return ""
}

// DedupFirst deduplicates a ResolvedLib list preserving first occurrence,
// so closure order stays stable and dedup-first.
func DedupFirst(libs []ResolvedLib) []ResolvedLib {
	seen := make(map[string]bool, len(libs))
	out := make([]ResolvedLib, 0, len(libs))
	for _, l := range libs {
		n := l.BestName()
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, l)
	}
	return out
}
