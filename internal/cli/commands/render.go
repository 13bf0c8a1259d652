package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/apkgbuild/internal/cli/ui"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
)

// NewRenderCommand creates the render command
func NewRenderCommand() *cobra.Command {
	var (
		back bool
		css  bool
	)

	cmd := &cobra.Command{
		Use:   "render <model>",
		Short: "Print a model's compiled template",
		Long: `Print the front template of a model after partials and scripts have
been expanded, exactly as it will be stored in the collection.`,
		Example: `  # Front template of the Vocab model
  apkgbuild render Vocab

  # Back template
  apkgbuild render Vocab --back

  # Concatenated stylesheet
  apkgbuild render Vocab --css`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if back && css {
				return fmt.Errorf("--back and --css are mutually exclusive")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			defs, err := deck.Load(cfg.Definitions)
			if err != nil {
				return err
			}

			def, ok := defs.Model(args[0])
			if !ok {
				suggestions := ui.FindSimilar(args[0], defs.ModelNames(), nil)
				fmt.Fprint(cmd.ErrOrStderr(), ui.ModelNotFoundError(args[0], suggestions, noColor))
				return fmt.Errorf("unknown model %q", args[0])
			}

			sys, err := build.NewSystem(buildOptions(cfg))
			if err != nil {
				return err
			}

			compiled, err := sys.CompileModel(def)
			if err != nil {
				return err
			}

			switch {
			case back:
				fmt.Fprintln(cmd.OutOrStdout(), compiled.Back)
			case css:
				fmt.Fprintln(cmd.OutOrStdout(), compiled.CSS)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), compiled.Front)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&back, "back", "b", false, "Print the back template")
	cmd.Flags().BoolVar(&css, "css", false, "Print the stylesheet")

	return cmd
}
