package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apkgbuild/internal/cli/ui"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
)

type buildFlags struct {
	json   bool
	force  bool
	output string
}

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the deck package",
		Long: `Compile every model's templates and write the deck package.

The build process:
  1. Load and validate the definitions file
  2. Compile each model's templates and stylesheets from the source directory
  3. Add the models and notes to a fresh collection
  4. Remove the stock note types no definition uses
  5. Zip the collection and media manifest into the .apkg

The build is skipped when neither the definitions nor any fragment changed
since the last build.`,
		Example: `  # Build with default settings
  apkgbuild build

  # Rebuild even when nothing changed
  apkgbuild build --force

  # Write the package somewhere else
  apkgbuild build --output release/spanish.apkg

  # Machine-readable result
  apkgbuild build --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.json, "json", false, "Output the result in JSON format")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Rebuild even if the package is up to date")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Package path (default: apkg_file from config)")

	return cmd
}

func runBuild(cmd *cobra.Command, flags *buildFlags) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		if !flags.json {
			fmt.Fprint(out, ui.ConfigError(err.Error(), noColor))
		}
		return err
	}

	opts := buildOptions(cfg)
	opts.Force = flags.force
	if flags.output != "" {
		if filepath.Ext(flags.output) != ".apkg" {
			return fmt.Errorf("output must end with .apkg, got: %s", flags.output)
		}
		opts.PackagePath, err = filepath.Abs(flags.output)
		if err != nil {
			return err
		}
	}

	sys, err := build.NewSystem(opts)
	if err != nil {
		return err
	}

	var result *build.BuildResult
	run := func() error {
		var err error
		result, err = sys.Build(commandContext(cmd))
		return err
	}

	if flags.json {
		err = run()
	} else {
		err = ui.WithSpinner(out, "Building deck", noColor, run)
	}

	if err != nil {
		return reportBuildFailure(out, sys, err, flags.json)
	}

	if flags.json {
		return outputBuildJSON(out, result)
	}

	printBuildResult(out, result)
	return nil
}

func reportBuildFailure(out io.Writer, sys *build.System, err error, asJSON bool) error {
	var verr *deck.ValidationError
	if errors.As(err, &verr) {
		if asJSON {
			data, jerr := verr.Diagnostics.FormatJSON()
			if jerr != nil {
				return jerr
			}
			fmt.Fprintln(out, data)
		} else {
			defs, _ := deck.Load(sys.Options().DefinitionsPath)
			for _, d := range verr.Diagnostics {
				fmt.Fprintln(out, ui.DiagnosticMessage(d, suggestionCandidates(defs, d), noColor))
			}
		}
		return fmt.Errorf("definitions have %d error(s)", len(verr.Diagnostics.Errors()))
	}

	if asJSON {
		data, jerr := json.MarshalIndent(map[string]string{
			"status":  "error",
			"message": err.Error(),
		}, "", "  ")
		if jerr != nil {
			return jerr
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, ui.BuildError(err.Error(), nil, noColor))
	}
	return fmt.Errorf("build failed")
}

func outputBuildJSON(out io.Writer, result *build.BuildResult) error {
	payload := struct {
		Status string `json:"status"`
		*build.BuildResult
		DurationMS int64 `json:"duration_ms"`
	}{
		Status:      "success",
		BuildResult: result,
		DurationMS:  result.Duration.Milliseconds(),
	}
	if result.Warnings == nil {
		result.Warnings = deck.Diagnostics{}
	}
	if result.Pruned == nil {
		result.Pruned = []string{}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printBuildResult(out io.Writer, result *build.BuildResult) {
	for _, d := range result.Warnings {
		fmt.Fprint(out, ui.Warning(fmt.Sprintf("%s %s (%s)", d.Code, d.Message, d.Location), noColor))
	}

	if result.UpToDate {
		info := color.New(color.FgCyan)
		if noColor {
			info.DisableColor()
		}
		info.Fprintf(out, "Package is up to date: %s (use --force to rebuild)\n", result.PackagePath)
		return
	}

	pruned := "none"
	if len(result.Pruned) > 0 {
		pruned = strings.Join(result.Pruned, ", ")
	}

	table := ui.NewKeyValueTable(out, noColor)
	table.AddRow("Models", strconv.Itoa(result.Models))
	table.AddRow("Notes", strconv.Itoa(result.Notes))
	table.AddRow("Pruned", pruned)
	table.AddRow("Collection", result.CollectionPath)
	table.AddRow("Package", result.PackagePath)
	table.AddRow("Duration", result.Duration.Round(time.Millisecond).String())
	table.Render()
}
