package gen

import (
	"testing"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/toolenv"
)

func TestLexRuleEmitsGenerateAndRewrite(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAML": "ocaml"})
	pipe, ok := LexRule("/root", bpath.Context("default"), "lib/foo", "lexer", cc)
	if !ok {
		t.Fatalf("expected a lex pipeline")
	}
	_ = pipe.Generate
	_ = pipe.Rewrite
}

func TestLexRuleMissingOCamlSkipped(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	_, ok := LexRule("/root", bpath.Context("default"), "lib/foo", "lexer", cc)
	if ok {
		t.Fatalf("expected no pipeline when OCAML is not configured")
	}
}

func TestYaccRuleEmitsBothOutputs(t *testing.T) {
	cc := toolenv.New(map[string]string{"OCAML": "ocaml"})
	pipe, ok := YaccRule("/root", bpath.Context("default"), "lib/foo", "parser", cc)
	if !ok {
		t.Fatalf("expected a yacc pipeline")
	}
	_ = pipe.Generate
	_ = pipe.RewriteML
	_ = pipe.RewriteMLI
}

func TestLookupAtSign(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	v, err := Lookup("@", []string{"a.ml", "b.ml"}, nil, ".", cc)
	if err != nil || v != "a.ml b.ml" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestLookupLeftAngleNoDepsFails(t *testing.T) {
	cc := toolenv.New(map[string]string{})
	_, err := Lookup("<", nil, nil, ".", cc)
	if err == nil {
		t.Fatalf("expected an error when < has no plain-file dependency")
	}
}

func TestLookupBuiltin(t *testing.T) {
	cc := toolenv.New(map[string]string{"CC": "cc"})
	v, err := Lookup("CC", nil, nil, ".", cc)
	if err != nil || v != "cc" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestScanArtifactRefsBinAndFindlib(t *testing.T) {
	refs := ScanArtifactRefs("${bin:mytool} -i $(findlib:core:core.cma)")
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2: %+v", len(refs), refs)
	}
	if refs[0].Bin != "mytool" {
		t.Fatalf("got %+v", refs[0])
	}
	if refs[1].Pkg != "core" || refs[1].File != "core.cma" {
		t.Fatalf("got %+v", refs[1])
	}
}

func TestExpandActionSubstitutesVariables(t *testing.T) {
	out, err := ExpandAction("cp ${<} ${@}", func(name string) (string, error) {
		switch name {
		case "<":
			return "in.txt", nil
		case "@":
			return "out.txt", nil
		}
		return "", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "cp in.txt out.txt" {
		t.Fatalf("got %q", out)
	}
}

func TestExpandActionPropagatesResolveError(t *testing.T) {
	_, err := ExpandAction("${UNKNOWN}", func(name string) (string, error) {
		return "", errUnknown
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
}

var errUnknown = &testError{"unknown variable"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
