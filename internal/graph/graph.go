// Package graph implements the build-graph primitive: a composable,
// arrow-like value representing "(inputs) -> (outputs, action)".
// Dependency declaration is a side effect of constructing a Node value;
// Realize walks a Node to a concrete Rule.
//
// Go has no typeclasses, so this "category with products" is modeled as a
// generic monadic Node[O]: Pure/Map/FlatMap/Fanout chain pure
// Go functions while Path/DynPaths/VPath register dependencies into the
// Realizer that's threaded through every call. Dynamic dependencies
// (DynPaths, VPath) are naturally two-phase: the dependency is registered
// only once the earlier Node in the chain has actually produced its value,
// during Realize, not during construction of the Go value itself.
package graph

import (
	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
)

// Action is the terminal, realized command a Rule executes. It is a closure
// because some fragments (graph.Dyn) are only computable once dynamic
// inputs are known; the closure contract is that every path it reads is in
// Rule.Inputs and every path it writes is in Rule.Targets/ExtraTargets.
type Action func() error

// LibUse is one record emitted by RecordLibDeps: a non-I/O side channel
// consumed later by the install-manifest emitter.
type LibUse struct {
	Dir  bpath.P
	Kind string // e.g. "library", "executable"
	Deps []string
}

// Rule is the realized form of a Node: every path its Action reads must
// be in Inputs, and every path it writes must be in Targets or
// ExtraTargets.
type Rule struct {
	Inputs       map[bpath.P]bool
	Targets      map[bpath.P]bool
	ExtraTargets map[bpath.P]bool
	Globs        []GlobDep
	Action       Action
	LibDepRecords []LibUse
}

// GlobDep records a paths_glob dependency: the engine
// enumerates matches before running the action, so generation only needs
// to remember the (dir, pattern) pair, not the match list.
type GlobDep struct {
	Dir     bpath.P
	Pattern string
}

// Realizer accumulates the side effects of walking a Node: registered
// paths, targets, globs, deferred failures, and lib-dep records. One
// Realizer is used per Node realized; FlatMap/Fanout share a single
// Realizer across an entire composed Node so dependency sets union
// across the whole chain.
type Realizer struct {
	Inputs       map[bpath.P]bool
	Targets      map[bpath.P]bool
	ExtraTargets map[bpath.P]bool
	Globs        []GlobDep
	LibDepRecords []LibUse
	Failures     []error
}

func newRealizer() *Realizer {
	return &Realizer{
		Inputs:       make(map[bpath.P]bool),
		Targets:      make(map[bpath.P]bool),
		ExtraTargets: make(map[bpath.P]bool),
	}
}

func (r *Realizer) addInput(p bpath.P)  { r.Inputs[p] = true }
func (r *Realizer) addTarget(p bpath.P) { r.Targets[p] = true }
func (r *Realizer) addExtraTarget(p bpath.P) { r.ExtraTargets[p] = true }

// Fail schedules a deferred failure: construction of the Node succeeds,
// but Realize surfaces the error.
func (r *Realizer) Fail(err error) { r.Failures = append(r.Failures, err) }

// Node is the generic "Build<(),O>" value: a recipe that, given a
// Realizer to record dependencies into, produces an O or an error.
type Node[O any] struct {
	run func(r *Realizer) (O, error)
}

// Pure lifts a constant value with no dependencies.
func Pure[O any](o O) Node[O] {
	return Node[O]{run: func(r *Realizer) (O, error) { return o, nil }}
}

// Map applies a pure post-transform f.
func Map[I, O any](n Node[I], f func(I) O) Node[O] {
	return Node[O]{run: func(r *Realizer) (O, error) {
		i, err := n.run(r)
		if err != nil {
			var zero O
			return zero, err
		}
		return f(i), nil
	}}
}

// MapErr is Map for transforms that can themselves fail (e.g. parsing a
// persisted value into a typed structure).
func MapErr[I, O any](n Node[I], f func(I) (O, error)) Node[O] {
	return Node[O]{run: func(r *Realizer) (O, error) {
		i, err := n.run(r)
		if err != nil {
			var zero O
			return zero, err
		}
		return f(i)
	}}
}

// FlatMap sequences n then f(n's result): a Kleisli arrow, since the
// second stage's shape usually depends on the first stage's value, e.g.
// "resolve the library, then build a Node depending on which packages it
// closed over".
func FlatMap[I, O any](n Node[I], f func(I) Node[O]) Node[O] {
	return Node[O]{run: func(r *Realizer) (O, error) {
		i, err := n.run(r)
		if err != nil {
			var zero O
			return zero, err
		}
		return f(i).run(r)
	}}
}

// Pair is the product type returned by Fanout.
type Pair[A, B any] struct {
	A A
	B B
}

// Fanout runs a and b against the same shared Realizer, so their
// dependency sets union. Go's Node is not itself concurrent, so
// evaluation is sequential, but that is an implementation detail
// invisible to callers.
func Fanout[A, B any](a Node[A], b Node[B]) Node[Pair[A, B]] {
	return Node[Pair[A, B]]{run: func(r *Realizer) (Pair[A, B], error) {
		av, err := a.run(r)
		if err != nil {
			return Pair[A, B]{}, err
		}
		bv, err := b.run(r)
		if err != nil {
			return Pair[A, B]{}, err
		}
		return Pair[A, B]{A: av, B: bv}, nil
	}}
}

// Path adds a static input dependency and returns it.
func Path(p bpath.P) Node[bpath.P] {
	return Node[bpath.P]{run: func(r *Realizer) (bpath.P, error) {
		r.addInput(p)
		return p, nil
	}}
}

// Paths adds a list of static input dependencies.
func Paths(ps []bpath.P) Node[[]bpath.P] {
	return Node[[]bpath.P]{run: func(r *Realizer) ([]bpath.P, error) {
		for _, p := range ps {
			r.addInput(p)
		}
		return ps, nil
	}}
}

// PathSet is like Paths but for a de-duplicated set input.
func PathSet(ps map[bpath.P]bool) Node[[]bpath.P] {
	list := make([]bpath.P, 0, len(ps))
	for p := range ps {
		list = append(list, p)
	}
	return Paths(list)
}

// GlobMatcher resolves a glob dependency to its current matches; supplied
// by the caller (the executor, in the real system) so graph stays
// filesystem-agnostic. During generation it is used to make PathsGlob
// testable without a real directory tree.
type GlobMatcher func(dir bpath.P, pattern string) ([]bpath.P, error)

// PathsGlob adds a glob dependency; the engine enumerates matches before
// the action runs. Generation itself needs the
// current match list to compute e.g. module sets, so a GlobMatcher is
// threaded through; it is the one place generation and execution share a
// filesystem view.
func PathsGlob(dir bpath.P, pattern string, match GlobMatcher) Node[[]bpath.P] {
	return Node[[]bpath.P]{run: func(r *Realizer) ([]bpath.P, error) {
		r.Globs = append(r.Globs, GlobDep{Dir: dir, Pattern: pattern})
		return match(dir, pattern)
	}}
}

// FilesRecursivelyIn adds a transitive file dependency over a subtree.
func FilesRecursivelyIn(root string, dir bpath.P) Node[[]bpath.P] {
	return Node[[]bpath.P]{run: func(r *Realizer) ([]bpath.P, error) {
		files, err := bpath.FilesRecursivelyIn(root, dir)
		if err != nil {
			return nil, xerrors.Errorf("files_recursively_in(%s): %w", dir, err)
		}
		for _, f := range files {
			r.addInput(f)
		}
		return files, nil
	}}
}

// DynPaths adds each path produced by n as an input once n has run,
// the dependency is only known after an earlier rule (here, an earlier
// Node in the same chain) has produced it.
func DynPaths(n Node[[]bpath.P]) Node[[]bpath.P] {
	return Node[[]bpath.P]{run: func(r *Realizer) ([]bpath.P, error) {
		ps, err := n.run(r)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			r.addInput(p)
		}
		return ps, nil
	}}
}

// RecordLibDeps is the non-I/O side-channel recorder consumed by the
// install-manifest emitter.
func RecordLibDeps(dir bpath.P, kind string, deps []string) Node[struct{}] {
	return Node[struct{}]{run: func(r *Realizer) (struct{}, error) {
		r.LibDepRecords = append(r.LibDepRecords, LibUse{Dir: dir, Kind: kind, Deps: deps})
		return struct{}{}, nil
	}}
}

// FailNode schedules a deferred failure consumed when the rule is
// realized. f is invoked lazily so optional stanzas with a
// missing dependency can still be generated — only realizing (running)
// the failing rule surfaces the error.
func FailNode[O any](f func() error) Node[O] {
	return Node[O]{run: func(r *Realizer) (O, error) {
		var zero O
		if err := f(); err != nil {
			r.Fail(err)
			return zero, &DeferredError{Err: err}
		}
		return zero, nil
	}}
}

// DeferredError marks an error as a deferred dependency failure: rule
// generation must not abort, only the consuming rule's realization does.
type DeferredError struct{ Err error }

func (e *DeferredError) Error() string { return e.Err.Error() }
func (e *DeferredError) Unwrap() error { return e.Err }

// Realize walks n to completion, producing its value and the accumulated
// Realizer state (inputs/targets/globs/lib-dep records/failures). Callers
// that turn a Node into a concrete Rule (graph.Emit) call this internally;
// it is exported for tests and for components (e.g. libdb.Closure) that
// need a Node's value without emitting a standalone rule.
func Realize[O any](n Node[O]) (O, *Realizer, error) {
	r := newRealizer()
	v, err := n.run(r)
	return v, r, err
}

// Emit realizes n (which must produce an Action as its value — build the
// action with Map over Run/Bash/etc.) into a Rule, adding targets
// explicitly since terminal actions (run/bash/...) declare their own
// targets via ArgSpec target references rather than through the Node
// chain.
func Emit(n Node[Action], targets []bpath.P, extraTargets []bpath.P) (Rule, error) {
	act, r, err := Realize(n)
	if err != nil {
		return Rule{}, err
	}
	for _, t := range targets {
		r.addTarget(t)
	}
	for _, t := range extraTargets {
		r.addExtraTarget(t)
	}
	return Rule{
		Inputs:        r.Inputs,
		Targets:       r.Targets,
		ExtraTargets:  r.ExtraTargets,
		Globs:         r.Globs,
		Action:        act,
		LibDepRecords: r.LibDepRecords,
	}, nil
}
