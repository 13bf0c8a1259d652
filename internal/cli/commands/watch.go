package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apkgbuild/internal/cli/ui"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
	"github.com/conduit-lang/apkgbuild/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the package whenever a source changes",
		Long: `Build the package, then watch the source directory and the definitions
file and rebuild on every change.

Changes are collected for 100ms before a rebuild starts, so saving several
files at once triggers a single build. A failing build is reported and
watching continues.`,
		Example: `  # Watch the project in the current directory
  apkgbuild watch

  # Log every event and build step
  apkgbuild watch --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			opts := buildOptions(cfg)
			// A change was observed, so every watch build runs in full.
			opts.Force = true

			sys, err := build.NewSystem(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			banner := color.New(color.FgCyan, color.Bold)
			hint := color.New(color.FgYellow)
			if noColor {
				banner.DisableColor()
				hint.DisableColor()
			}

			fmt.Fprintln(out)
			banner.Fprintln(out, "📦 apkgbuild watch")
			fmt.Fprintf(out, "   Sources:     %s\n", cfg.SourceDir)
			fmt.Fprintf(out, "   Definitions: %s\n", cfg.Definitions)
			fmt.Fprintf(out, "   Package:     %s\n", cfg.APKGFile)
			fmt.Fprintln(out)
			hint.Fprintln(out, "⌨️  Press Ctrl+C to stop")
			fmt.Fprintln(out)

			roots := []string{cfg.SourceDir, cfg.Definitions}
			ignored := []string{"*.swp", "*.swo", "*~", "*.tmp"}

			err = watch.Run(ctx, sys, roots, ignored, getLogger(), func(result *build.BuildResult, err error) {
				reportWatchBuild(cmd, opts.DefinitionsPath, result, err)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			fmt.Fprintln(out, "\nStopped watching.")
			return nil
		},
	}

	return cmd
}

func reportWatchBuild(cmd *cobra.Command, defsPath string, result *build.BuildResult, err error) {
	out := cmd.OutOrStdout()

	if err != nil {
		var verr *deck.ValidationError
		if errors.As(err, &verr) {
			defs, _ := deck.Load(defsPath)
			for _, d := range verr.Diagnostics.Errors() {
				fmt.Fprintln(out, ui.DiagnosticMessage(d, suggestionCandidates(defs, d), noColor))
			}
			return
		}
		fmt.Fprint(out, ui.BuildError(err.Error(), nil, noColor))
		return
	}

	ui.WriteSuccess(out, fmt.Sprintf("Built %s: %d models, %d notes in %s",
		result.PackagePath, result.Models, result.Notes, result.Duration.Round(time.Millisecond)), noColor)
}
