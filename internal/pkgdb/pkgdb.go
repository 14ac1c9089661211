// Package pkgdb is the external package database façade: package
// lookup, transitive closure, and the preprocessor-runtime
// closure used by the Pps preprocessor pipeline. A real implementation
// would shell out to or link against the language's package manager; DB
// here is an in-memory façade good enough to drive rule generation and
// its tests deterministically, with the same shape a live backend would
// expose.
package pkgdb

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/stanza"
)

// ErrNotFound is returned by Find when name has no registered package.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string { return "package not found: " + e.Name }

// Entry is one package's record in the database: its direct dependencies
// and its direct preprocessor-runtime dependencies (distinct, since a ppx
// plugin's *build*-time deps and its *runtime* deps for the rewritten
// code can differ).
type Entry struct {
	Pkg           stanza.Package
	Deps          []string // direct dependency package names
	PpxRuntimeDeps []string
}

// DB is the façade. Safe for concurrent Find/Closure calls once built.
type DB struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New constructs an empty DB; tests and cmd/rulegen populate it via
// Register.
func New() *DB {
	return &DB{entries: make(map[string]Entry)}
}

// Register adds or replaces a package's entry.
func (db *DB) Register(e Entry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries[e.Pkg.Name] = e
}

// Find looks up a package by name.
func (db *DB) Find(name string) (stanza.Package, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, ok := db.entries[name]
	if !ok {
		return stanza.Package{}, &ErrNotFound{Name: name}
	}
	return e.Pkg, nil
}

// RootPackageName returns the META-segmentation root of a qualified
// package name, e.g. "lwt.unix" -> "lwt".
func RootPackageName(qualified string) string {
	if i := strings.IndexByte(qualified, '.'); i >= 0 {
		return qualified[:i]
	}
	return qualified
}

// Closure computes the transitive dependency closure of pkgs, deduplicated
// in first-occurrence order. The roots themselves are looked up
// concurrently via errgroup; the walk over their dependencies is
// sequential.
func (db *DB) Closure(pkgs []string) ([]stanza.Package, error) {
	resolved := make([]stanza.Package, len(pkgs))
	var eg errgroup.Group
	for i, name := range pkgs {
		i, name := i, name
		eg.Go(func() error {
			p, err := db.Find(name)
			if err != nil {
				return err
			}
			resolved[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, xerrors.Errorf("pkgdb.Closure: %w", err)
	}

	seen := make(map[string]bool)
	var order []stanza.Package
	var walk func(name string) error
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		db.mu.RLock()
		e, ok := db.entries[name]
		db.mu.RUnlock()
		if !ok {
			return &ErrNotFound{Name: name}
		}
		order = append(order, e.Pkg)
		for _, d := range e.Deps {
			if err := walk(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range pkgs {
		if err := walk(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ClosedPpxRuntimeDepsOf computes the transitive *runtime* dependency
// closure of a preprocessor-plugin package set, used when linking the
// code a ppx rewriter emits rather than the ppx driver itself.
func (db *DB) ClosedPpxRuntimeDepsOf(pkgs []string) ([]stanza.Package, error) {
	seen := make(map[string]bool)
	var order []stanza.Package
	var walk func(name string) error
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		db.mu.RLock()
		e, ok := db.entries[name]
		db.mu.RUnlock()
		if !ok {
			return &ErrNotFound{Name: name}
		}
		order = append(order, e.Pkg)
		for _, d := range e.PpxRuntimeDeps {
			if err := walk(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range pkgs {
		if err := walk(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Names is a small helper used by callers that want a sorted, stable
// listing of every registered package (e.g. diagnostics).
func (db *DB) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := maps.Keys(db.entries)
	sort.Strings(names)
	return names
}

// FindLatest resolves rootName against every registered entry sharing
// that root package name, returning the one with the highest semver
// Version. Used when a package has multiple versions registered (e.g.
// vendored side by side during a toolchain transition) and a consumer
// names only the root, not a specific qualified version.
func (db *DB) FindLatest(rootName string) (stanza.Package, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var best stanza.Package
	found := false
	for _, e := range db.entries {
		if e.Pkg.RootName != rootName {
			continue
		}
		if !found || semver.Compare(e.Pkg.Version, best.Version) > 0 {
			best = e.Pkg
			found = true
		}
	}
	if !found {
		return stanza.Package{}, &ErrNotFound{Name: rootName}
	}
	return best, nil
}
