package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rdavison/dune/internal/bpath"
	"github.com/rdavison/dune/internal/graph"
	"github.com/rdavison/dune/internal/sexp"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the realized rule graph as an s-expression, one rule per top-level form",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := generate(rootCtx)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), colorizeError(err))
			return err
		}
		for _, r := range res.rules {
			fmt.Fprintln(cmd.OutOrStdout(), string(sexp.Format(ruleSexp(r))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func sortedPaths(m map[bpath.P]bool) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

func ruleSexp(r graph.Rule) sexp.Value {
	return sexp.List(
		sexp.List(sexp.Atom("inputs"), sexp.StringList(sortedPaths(r.Inputs))),
		sexp.List(sexp.Atom("targets"), sexp.StringList(sortedPaths(r.Targets))),
		sexp.List(sexp.Atom("extra_targets"), sexp.StringList(sortedPaths(r.ExtraTargets))),
	)
}
