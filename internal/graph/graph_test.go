package graph

import (
	"testing"

	"github.com/rdavison/dune/internal/bpath"
)

func TestEmitRegistersPathInputsAndTargets(t *testing.T) {
	src := bpath.Source("foo.ml")
	dst := bpath.Build("default", "foo.cmi")

	n := Map(Path(src), func(p bpath.P) Action {
		return func() error { return nil }
	})
	rule, err := Emit(n, []bpath.P{dst}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !rule.Inputs[src] {
		t.Fatalf("expected %v in inputs", src)
	}
	if !rule.Targets[dst] {
		t.Fatalf("expected %v in targets", dst)
	}
}

func TestFlatMapUnionsDependencies(t *testing.T) {
	a := bpath.Source("a.ml")
	b := bpath.Source("b.ml")
	n := FlatMap(Path(a), func(bpath.P) Node[bpath.P] {
		return Path(b)
	})
	_, r, err := Realize(n)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Inputs[a] || !r.Inputs[b] {
		t.Fatalf("expected both a and b registered, got %v", r.Inputs)
	}
}

func TestDynPathsRegistersAfterProducerRuns(t *testing.T) {
	dynamic := []bpath.P{bpath.Source("gen1.ml"), bpath.Source("gen2.ml")}
	producer := Node[[]bpath.P]{run: func(r *Realizer) ([]bpath.P, error) {
		return dynamic, nil
	}}
	n := DynPaths(producer)
	_, r, err := Realize(n)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range dynamic {
		if !r.Inputs[p] {
			t.Fatalf("expected %v registered as a dynamic input", p)
		}
	}
}

func TestFailNodeDefersError(t *testing.T) {
	n := FailNode[struct{}](func() error { return errBoom })
	_, r, err := Realize(n)
	if err == nil {
		t.Fatalf("expected deferred error")
	}
	if len(r.Failures) != 1 {
		t.Fatalf("expected one recorded failure, got %d", len(r.Failures))
	}
	var de *DeferredError
	if !errorsAs(err, &de) {
		t.Fatalf("expected *DeferredError, got %T", err)
	}
}

var errBoom = simpleErr("boom")

type simpleErr string

func (s simpleErr) Error() string { return string(s) }

func errorsAs(err error, target **DeferredError) bool {
	de, ok := err.(*DeferredError)
	if !ok {
		return false
	}
	*target = de
	return true
}
