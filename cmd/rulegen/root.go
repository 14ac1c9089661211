package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/rdavison/dune"
	"github.com/rdavison/dune/internal/gtrace"
)

var (
	debug       bool
	tracefile   string
	workspaceFile string
	noColor     bool

	rootCtx    context.Context
	cancelRoot context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:           "rulegen",
	Short:         "Generate build rules for a modular, separately-compiled language",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, cancelRoot = dune.InterruptibleContext()
		if tracefile != "" {
			if err := gtrace.Enable(tracefile); err != nil {
				return fmt.Errorf("enabling trace: %w", err)
			}
			dune.RegisterAtExit(func() error {
				return gtrace.Close()
			})
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cancelRoot != nil {
			cancelRoot()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "format error messages with additional detail")
	rootCmd.PersistentFlags().StringVar(&tracefile, "tracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
	rootCmd.PersistentFlags().StringVar(&workspaceFile, "workspace", "workspace.yml", "path to the workspace description file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colorized diagnostic output")
}

// wantColor decides whether diagnostics should be colorized: never when
// -no-color is set or output isn't a terminal, matching the teacher's
// practice of never coloring redirected output.
func wantColor() bool {
	if noColor {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// colorizeError renders err for the CLI boundary: the full %+v chain
// (source locations included) when -debug is set, otherwise just the
// message, colorized red/bold unless output is non-interactive or
// -no-color was passed.
func colorizeError(err error) string {
	msg := err.Error()
	if debug {
		msg = fmt.Sprintf("%+v", xerrors.Errorf("%w", err))
	}
	if !wantColor() {
		return msg
	}
	return color.New(color.FgRed, color.Bold).Sprint(msg)
}
