package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate rules for every directory in the workspace and report a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := generate(rootCtx)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), colorizeError(err))
			return err
		}

		targets := make(map[string]bool)
		inputs := make(map[string]bool)
		for _, r := range res.rules {
			for p := range r.Targets {
				targets[p.String()] = true
			}
			for p := range r.ExtraTargets {
				targets[p.String()] = true
			}
			for p := range r.Inputs {
				inputs[p.String()] = true
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d stanza outputs, %d rules, %d distinct targets, %d distinct inputs\n",
			len(res.outputs), len(res.rules), len(targets), len(inputs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
