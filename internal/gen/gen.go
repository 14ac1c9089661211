// Package gen implements the generator and user-rule emitters: lexer and
// parser generator stanzas (with line-directive rewriting into the
// canonical build-tree path), and user-declared rules with variable
// expansion.
package gen

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/toolenv"
)

// LexPipeline is the two rules one Ocamllex name expands to: Generate
// runs the generator into a temporary file, Rewrite canonicalizes its
// leading line directive into the real target, consuming the temporary.
// They are two separate rules, each with its own declared target, since
// no rule may declare another rule's target.
type LexPipeline struct {
	Generate graph.Node[graph.Action]
	Rewrite  graph.Node[graph.Action]
}

// LexRule emits the rule pair for one Ocamllex name.
func LexRule(root string, ctx bpath.Context, dir, name string, cc *toolenv.Config) (LexPipeline, bool) {
	prog, ok := cc.Lookup("OCAML")
	if !ok {
		return LexPipeline{}, false
	}
	ocamllex := prog + "lex"
	src := bpath.Source(dir + "/" + name + ".mll")
	tmp := bpath.Build(ctx, dir+"/."+name+".ml.tmp")
	final := bpath.Build(ctx, dir+"/"+name+".ml")

	generate := graph.Run(root, dir, ocamllex, []graph.ArgFrag{
		graph.Lit("-q"), graph.Lit("-o"), graph.ArgTarget(tmp), graph.ArgPath(src),
	}, nil, nil, nil, nil)

	return LexPipeline{Generate: generate, Rewrite: canonicalizeLineDirective(root, tmp, final)}, true
}

// YaccPipeline is the rule set one Ocamlyacc name expands to: one
// Generate rule producing both temporaries, and a Rewrite rule per
// canonicalized output.
type YaccPipeline struct {
	Generate   graph.Node[graph.Action]
	RewriteML  graph.Node[graph.Action]
	RewriteMLI graph.Node[graph.Action]
}

// YaccRule emits the rule set for one Ocamlyacc name.
func YaccRule(root string, ctx bpath.Context, dir, name string, cc *toolenv.Config) (YaccPipeline, bool) {
	prog, ok := cc.Lookup("OCAML")
	if !ok {
		return YaccPipeline{}, false
	}
	ocamlyacc := prog + "yacc"
	src := bpath.Source(dir + "/" + name + ".mly")
	tmpML := bpath.Build(ctx, dir+"/."+name+".ml.tmp")
	tmpMLI := bpath.Build(ctx, dir+"/."+name+".mli.tmp")
	finalML := bpath.Build(ctx, dir+"/"+name+".ml")
	finalMLI := bpath.Build(ctx, dir+"/"+name+".mli")

	generate := graph.Run(root, dir, ocamlyacc, []graph.ArgFrag{
		graph.Lit("-b"), graph.Lit("." + name), graph.ArgPath(src),
		graph.ArgTarget(tmpML), graph.ArgTarget(tmpMLI),
	}, nil, nil, nil, nil)

	return YaccPipeline{
		Generate:   generate,
		RewriteML:  canonicalizeLineDirective(root, tmpML, finalML),
		RewriteMLI: canonicalizeLineDirective(root, tmpMLI, finalMLI),
	}, true
}

var leadingLineDirective = regexp.MustCompile(`^# \d+ "[^"]*"`)

func canonicalizeLineDirective(root string, tmp, final bpath.P) graph.Node[graph.Action] {
	canonical := final.String()
	return graph.RewriteFile(root, tmp, final, func(contents string) string {
		lines := strings.SplitN(contents, "\n", 2)
		if len(lines) == 0 {
			return contents
		}
		if !leadingLineDirective.MatchString(lines[0]) {
			return contents
		}
		rest := ""
		if len(lines) > 1 {
			rest = "\n" + lines[1]
		}
		return fmt.Sprintf("# 1 %q%s", canonical, rest)
	})
}

// Lookup resolves one variable reference's value given the rule's own
// target/dependency lists and the built-in tool map. name is given
// without its surrounding ${...} or $(...) delimiters.
func Lookup(name string, targets, plainDeps []string, rootRel string, cc *toolenv.Config) (string, error) {
	switch name {
	case "@":
		return strings.Join(targets, " "), nil
	case "<":
		if len(plainDeps) == 0 {
			return "", xerrors.Errorf("variable expansion: %q used with no plain-file dependency", "<")
		}
		return plainDeps[0], nil
	case "^":
		return strings.Join(plainDeps, " "), nil
	case "ROOT":
		return rootRel, nil
	}
	if v, ok := cc.Lookup(name); ok {
		return v, nil
	}
	return "", xerrors.Errorf("variable expansion: unknown variable %q", name)
}

var varRef = regexp.MustCompile(`\$\{([^}]+)\}|\$\(([^)]+)\)`)

// ArtifactRef is one bin:name or findlib:pkg:file reference found in an
// action string, requiring a prerequisite build edge before expansion.
type ArtifactRef struct {
	Raw  string // the full "bin:name" or "findlib:pkg:file" token
	Bin  string // set when Raw is a bin: reference
	Pkg  string // set when Raw is a findlib: reference
	File string // set when Raw is a findlib: reference
}

// ScanArtifactRefs finds every bin:name / findlib:pkg:file reference in s,
// so the caller can stage them as a fanout dependency before the final
// substitution pass (ExpandAction).
func ScanArtifactRefs(s string) []ArtifactRef {
	var out []ArtifactRef
	for _, m := range varRef.FindAllStringSubmatch(s, -1) {
		ref := m[1]
		if ref == "" {
			ref = m[2]
		}
		switch {
		case strings.HasPrefix(ref, "bin:"):
			out = append(out, ArtifactRef{Raw: ref, Bin: strings.TrimPrefix(ref, "bin:")})
		case strings.HasPrefix(ref, "findlib:"):
			parts := strings.SplitN(strings.TrimPrefix(ref, "findlib:"), ":", 2)
			if len(parts) == 2 {
				out = append(out, ArtifactRef{Raw: ref, Pkg: parts[0], File: parts[1]})
			}
		}
	}
	return out
}

// ExpandAction substitutes every ${NAME}/$(NAME) reference in s. resolve
// is called once per distinct variable name, so bin:/findlib: references
// must already have been resolved to their build-graph path by the
// caller (via ScanArtifactRefs) and supplied through resolve alongside
// the built-in lookups.
func ExpandAction(s string, resolve func(name string) (string, error)) (string, error) {
	var firstErr error
	out := varRef.ReplaceAllStringFunc(s, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		m := varRef.FindStringSubmatch(tok)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		v, err := resolve(name)
		if err != nil {
			firstErr = err
			return tok
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
