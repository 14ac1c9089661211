package graph

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
)

// ArgFrag is one element of an argument spec tree: a
// small tree describing command arguments, with literal strings, path
// references (which also register as inputs), target references (which
// register as outputs), and deferred fragments whose contribution is
// computed from the graph's dynamic input.
type ArgFrag struct {
	lit    string
	path   bpath.P
	target bpath.P
	dyn    func(dyn any) string
	isLit  bool
	isPath bool
	isTgt  bool
	isDyn  bool
}

// Lit is a literal command-line argument.
func Lit(s string) ArgFrag { return ArgFrag{lit: s, isLit: true} }

// LitAll converts a slice of literal strings to ArgFrags.
func LitAll(ss []string) []ArgFrag {
	out := make([]ArgFrag, len(ss))
	for i, s := range ss {
		out[i] = Lit(s)
	}
	return out
}

// ArgPath references a path, which also registers it as an input.
func ArgPath(p bpath.P) ArgFrag { return ArgFrag{path: p, isPath: true} }

// ArgTarget references a path, which also registers it as an output.
func ArgTarget(p bpath.P) ArgFrag { return ArgFrag{target: p, isTgt: true} }

// Dyn is a deferred fragment computed from the graph's dynamic input at
// realization time (e.g. the resolved include-path list).
func Dyn(fn func(dyn any) string) ArgFrag { return ArgFrag{dyn: fn, isDyn: true} }

// resolve renders a fragment to its final string, registering any path or
// target dependency into r.
func (f ArgFrag) resolve(r *Realizer, root string, dyn any) string {
	switch {
	case f.isLit:
		return f.lit
	case f.isPath:
		r.addInput(f.path)
		return filepath.Join(root, f.path.String())
	case f.isTgt:
		r.addTarget(f.target)
		return filepath.Join(root, f.target.String())
	case f.isDyn:
		return f.dyn(dyn)
	default:
		return ""
	}
}

// Run builds the terminal action invoking prog with the given argument
// spec. The dyn value is resolved once, during realization (before the
// Action is returned), against whatever the caller closed over (e.g. a
// resolved include path list computed by an earlier Node in the chain).
func Run(root, dir, prog string, argSpec []ArgFrag, dyn func() any, env []string, stdout, stderr *string) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		var dynVal any
		resolved := make([]string, len(argSpec))
		for i, f := range argSpec {
			if dynVal == nil && dyn != nil {
				dynVal = dyn()
			}
			resolved[i] = f.resolve(r, root, dynVal)
		}
		return func() error {
			cmd := exec.Command(prog, resolved...)
			cmd.Dir = filepath.Join(root, dir)
			if env != nil {
				cmd.Env = env
			}
			out, err := cmd.CombinedOutput()
			if stdout != nil {
				*stdout = string(out)
			}
			if err != nil {
				return xerrors.Errorf("%v: %w: %s", cmd.Args, err, out)
			}
			return nil
		}, nil
	}}
}

// Bash runs cmd through the shell, used by user rules whose action is a
// single already-expanded string.
func Bash(root, dir, cmd string) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		return func() error {
			c := exec.Command("/bin/sh", "-c", cmd)
			c.Dir = filepath.Join(root, dir)
			out, err := c.CombinedOutput()
			if err != nil {
				return xerrors.Errorf("bash %q: %w: %s", cmd, err, out)
			}
			return nil
		}, nil
	}}
}

// Echo writes contents to target verbatim, used e.g. for
// the synthesized alias module body.
func Echo(root string, target bpath.P, contents string) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		r.addTarget(target)
		return func() error {
			dest := filepath.Join(root, target.String())
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return renameio.WriteFile(dest, []byte(contents), 0644)
		}, nil
	}}
}

// Copy copies src to dst, used by install.Manifest.EmitRule to copy the
// .install manifest into the source tree.
func Copy(root string, src, dst bpath.P) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		r.addInput(src)
		r.addTarget(dst)
		return func() error {
			in, err := os.ReadFile(filepath.Join(root, src.String()))
			if err != nil {
				return xerrors.Errorf("copy: %w", err)
			}
			dest := filepath.Join(root, dst.String())
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return renameio.WriteFile(dest, in, 0644)
		}, nil
	}}
}

// CreateFile writes contents to target, with no source dependency,
// e.g. a zero-byte all-cm sentinel.
func CreateFile(root string, target bpath.P, contents []byte) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		r.addTarget(target)
		return func() error {
			dest := filepath.Join(root, target.String())
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return renameio.WriteFile(dest, contents, 0644)
		}, nil
	}}
}

// RewriteFile reads src, applies transform to its contents, writes the
// result to dst, then removes src. Used by the lexer/parser generator
// pipeline to canonicalize the line directives a generator emits into its
// temporary output before the real target exists.
func RewriteFile(root string, src, dst bpath.P, transform func(string) string) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		r.addInput(src)
		r.addTarget(dst)
		return func() error {
			data, err := os.ReadFile(filepath.Join(root, src.String()))
			if err != nil {
				return xerrors.Errorf("rewrite: %w", err)
			}
			dest := filepath.Join(root, dst.String())
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			if err := renameio.WriteFile(dest, []byte(transform(string(data))), 0644); err != nil {
				return err
			}
			return os.Remove(filepath.Join(root, src.String()))
		}, nil
	}}
}

// CreateFiles is CreateFile for several targets sharing one action; every
// target is declared by this single rule.
func CreateFiles(root string, targets []bpath.P, contents [][]byte) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		for _, t := range targets {
			r.addTarget(t)
		}
		return func() error {
			for i, t := range targets {
				dest := filepath.Join(root, t.String())
				if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
					return err
				}
				if err := renameio.WriteFile(dest, contents[i], 0644); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}}
}
