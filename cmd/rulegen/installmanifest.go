package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installManifestCmd = &cobra.Command{
	Use:   "install-manifest",
	Short: "Print the merged .install manifest for every package in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := generate(rootCtx)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), colorizeError(err))
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), mergedManifest(res.outputs).Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installManifestCmd)
}
