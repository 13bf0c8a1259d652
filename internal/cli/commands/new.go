package commands

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

//go:embed templates/*
var templatesFS embed.FS

var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// projectFiles maps each scaffolded file to the template that renders it.
var projectFiles = []struct {
	dest string
	tmpl string
}{
	{"apkgbuild.yml", "templates/apkgbuild.yml.tmpl"},
	{"deck.yml", "templates/deck.yml.tmpl"},
	{".gitignore", "templates/gitignore.tmpl"},
	{"src/front.html", "templates/front.html.tmpl"},
	{"src/back.html", "templates/back.html.tmpl"},
	{"src/header.html", "templates/header.html.tmpl"},
	{"src/style.css", "templates/style.css.tmpl"},
	{"src/card.js", "templates/card.js.tmpl"},
}

type newOptions struct {
	interactive bool
	deckName    string
	modelName   string
}

type projectData struct {
	Slug      string
	DeckName  string
	ModelName string
}

// validateProjectName validates project name with security checks
func validateProjectName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) == 0 || len(name) > 100 {
		return fmt.Errorf("project name must be 1-100 characters")
	}

	if filepath.IsAbs(name) {
		return fmt.Errorf("project name cannot be an absolute path")
	}

	// Also rules out "." and ".."
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("project name can only contain letters, numbers, dashes, and underscores")
	}

	return nil
}

// NewNewCommand creates the new command
func NewNewCommand() *cobra.Command {
	opts := &newOptions{}

	cmd := &cobra.Command{
		Use:   "new [project-name]",
		Short: "Create a new deck project",
		Long: `Create a deck project with a configuration file, a definitions file and
a starter note type whose templates use partials and an inlined script.

If no project name is provided, you will be prompted to enter one.`,
		Example: `  apkgbuild new spanish
  apkgbuild new spanish --deck "Spanish::Verbs" --model Verb
  apkgbuild new --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runNew(cmd, name, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for the deck and note type names")
	cmd.Flags().StringVar(&opts.deckName, "deck", "", "Deck name (default: the project name)")
	cmd.Flags().StringVar(&opts.modelName, "model", "Basic Card", "Name of the starter note type")

	return cmd
}

func runNew(cmd *cobra.Command, projectName string, opts *newOptions) error {
	out := cmd.OutOrStdout()

	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)
	promptColor := color.New(color.FgYellow)

	if projectName == "" || opts.interactive {
		questions := []*survey.Question{
			{
				Name:     "Slug",
				Prompt:   &survey.Input{Message: "Project name:", Default: projectName},
				Validate: survey.Required,
			},
			{
				Name:   "DeckName",
				Prompt: &survey.Input{Message: "Deck name:", Default: opts.deckName, Help: "Use :: to nest decks, e.g. Spanish::Verbs"},
			},
			{
				Name:     "ModelName",
				Prompt:   &survey.Input{Message: "Note type name:", Default: opts.modelName},
				Validate: survey.Required,
			},
		}

		answers := projectData{}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}
		projectName = answers.Slug
		opts.deckName = answers.DeckName
		opts.modelName = answers.ModelName
	}

	if err := validateProjectName(projectName); err != nil {
		return err
	}

	data := projectData{
		Slug:      projectName,
		DeckName:  opts.deckName,
		ModelName: opts.modelName,
	}
	if strings.TrimSpace(data.DeckName) == "" {
		data.DeckName = projectName
	}

	projectPath := filepath.Join(".", projectName)
	if _, err := os.Stat(projectPath); err == nil {
		return fmt.Errorf("directory %s already exists", projectName)
	}

	infoColor.Fprintf(out, "Creating project: %s\n\n", projectName)

	if err := scaffoldProject(projectPath, data); err != nil {
		os.RemoveAll(projectPath)
		return err
	}
	for _, f := range projectFiles {
		infoColor.Fprintf(out, "  ✓ Created %s\n", f.dest)
	}

	fmt.Fprintln(out)
	successColor.Fprintf(out, "✓ Created project: %s\n\n", projectName)

	promptColor.Fprintln(out, "Get started:")
	fmt.Fprintf(out, "  cd %s\n", projectName)
	fmt.Fprintln(out, "  apkgbuild build")
	fmt.Fprintln(out)

	return nil
}

// scaffoldProject renders every project file into dir.
func scaffoldProject(dir string, data projectData) error {
	for _, f := range projectFiles {
		dest := filepath.Join(dir, filepath.FromSlash(f.dest))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
		}

		content, err := templatesFS.ReadFile(f.tmpl)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", f.tmpl, err)
		}

		tmpl, err := template.New(filepath.Base(f.tmpl)).Parse(string(content))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", f.tmpl, err)
		}

		file, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", dest, err)
		}
		if err := tmpl.Execute(file, data); err != nil {
			file.Close()
			return fmt.Errorf("failed to execute template %s: %w", f.tmpl, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close file %s: %w", dest, err)
		}
	}
	return nil
}
