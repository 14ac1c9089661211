package archive

import (
	"testing"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/direrr"
	"github.com/rdavison/dune/internal/stanza"
	"github.com/rdavison/dune/internal/toolenv"
)

func TestLinkOrderDependenciesBeforeDependents(t *testing.T) {
	deps := stanza.DepMap{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {},
	}
	order, err := LinkOrder(deps, []string{"A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	if pos["C"] >= pos["B"] || pos["B"] >= pos["A"] {
		t.Fatalf("got order %v, want C before B before A", order)
	}
}

func TestLinkOrderCycleNamesBothModules(t *testing.T) {
	deps := stanza.DepMap{
		"A": {"B"},
		"B": {"A"},
	}
	_, err := LinkOrder(deps, []string{"A"})
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	var cycleErr *direrr.CycleError
	if !asCycleError(err, &cycleErr) {
		t.Fatalf("got %v, want *direrr.CycleError", err)
	}
	if !contains(cycleErr.Cycle, "A") || !contains(cycleErr.Cycle, "B") {
		t.Fatalf("cycle %v does not name both A and B", cycleErr.Cycle)
	}
}

func asCycleError(err error, target **direrr.CycleError) bool {
	ce, ok := err.(*direrr.CycleError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func TestLinkOrderIndependentRoots(t *testing.T) {
	deps := stanza.DepMap{"A": {}, "B": {}}
	order, err := LinkOrder(deps, []string{"A", "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("got %v, want both roots present", order)
	}
}

func TestArchiveRuleByteWithStubsIsEmitted(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAMLC": "ocamlc"})
	cfg := ArchiveConfig{
		Dir:          "lib/foo",
		LibName:      "foo",
		ObjectNameOf: map[string]string{"Foo": "foo"},
		HasStubs:     true,
	}
	_, ok := ArchiveRule("/root", bpath.Context("default"), cfg, Byte, cc, []string{"Foo"})
	if !ok {
		t.Fatalf("expected an archive rule to be emitted")
	}
}

func TestArchiveRuleMissingCompilerSkipped(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	cfg := ArchiveConfig{Dir: "lib/foo", LibName: "foo", ObjectNameOf: map[string]string{"Foo": "foo"}}
	_, ok := ArchiveRule("/root", bpath.Context("default"), cfg, Byte, cc, []string{"Foo"})
	if ok {
		t.Fatalf("expected no rule when OCAMLC is not configured")
	}
}

func TestCmxsRuleRequiresOCamlopt(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAMLOPT": "ocamlopt"})
	_, ok := CmxsRule("/root", bpath.Context("default"), "lib/foo", "foo", cc, bpath.P{})
	if !ok {
		t.Fatalf("expected a cmxs rule to be emitted")
	}
}

func TestExecutableRuleNative(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAMLOPT": "ocamlopt"})
	objs := map[string]string{"Main": "main"}
	_, ok := ExecutableRule("/root", bpath.Context("default"), "bin", "main", Native, cc, objs, []string{"Main"}, nil, []string{"-thread"})
	if !ok {
		t.Fatalf("expected an executable rule to be emitted")
	}
}
