package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/apkgbuild/internal/cli/ui"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate definitions and compile every template",
		Long: `Validate the definitions file and compile every model's templates
without writing a collection or package.

Reported problems include unknown models or fields referenced by notes,
duplicate models, fields or guids, and templates whose partials or scripts
cannot be resolved.`,
		Example: `  # Check the project in the current directory
  apkgbuild check

  # Output diagnostics as JSON (useful for editors and CI)
  apkgbuild check --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			sys, err := build.NewSystem(buildOptions(cfg))
			if err != nil {
				return err
			}

			diags, err := sys.Check()
			if err != nil {
				return err
			}

			if asJSON {
				data, err := diags.FormatJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, data)
			} else {
				defs, _ := deck.Load(cfg.Definitions)
				ui.Header(out, "Checked "+cfg.Definitions, noColor)
				printDiagnostics(cmd, defs, diags)
			}

			if diags.HasErrors() {
				return fmt.Errorf("definitions have %d error(s)", len(diags.Errors()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output diagnostics in JSON format")

	return cmd
}

func printDiagnostics(cmd *cobra.Command, defs *deck.Definitions, diags deck.Diagnostics) {
	out := cmd.OutOrStdout()

	if len(diags) == 0 {
		ui.WriteSuccess(out, "No problems found", noColor)
		return
	}

	table := ui.NewTable(out, []string{"SEVERITY", "CODE", "LOCATION", "MESSAGE"}, noColor)
	for _, d := range diags {
		message := d.Message
		if d.Subject != "" {
			if hint := ui.FindBestMatch(d.Subject, suggestionCandidates(defs, d), nil); hint != "" {
				message = fmt.Sprintf("%s (did you mean %s?)", message, hint)
			}
		}
		table.AddRow(d.Severity.String(), d.Code, d.Location.String(), message)
	}
	table.Render()

	fmt.Fprintf(out, "\n%d error(s), %d warning(s)\n", len(diags.Errors()), len(diags.Warnings()))
}
