package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/apkgbuild/internal/cli/config"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig finds the project and loads its configuration with every path
// made absolute. --config wins over the project lookup.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		root, err := filepath.Abs(filepath.Dir(configFile))
		if err != nil {
			return nil, err
		}
		cfg.Resolve(root)
		return cfg, nil
	}

	root, err := config.GetProjectRoot()
	if err != nil {
		return nil, err
	}

	path := ""
	for _, name := range []string{config.FileName + ".yml", config.FileName + ".yaml"} {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Resolve(root)
	return cfg, nil
}

func buildOptions(cfg *config.Config) *build.BuildOptions {
	return &build.BuildOptions{
		SourceDir:       cfg.SourceDir,
		BuildDir:        cfg.BuildDir,
		DistDir:         cfg.DistDir,
		DefinitionsPath: cfg.Definitions,
		CollectionPath:  cfg.DeckFile,
		PackagePath:     cfg.APKGFile,
		Logger:          getLogger(),
	}
}

// suggestionCandidates returns the names a diagnostic's subject may have
// been meant as: model names for unknown models, the note's model fields for
// unknown fields, and every declared field for common fields.
func suggestionCandidates(defs *deck.Definitions, d deck.Diagnostic) []string {
	if defs == nil {
		return nil
	}
	switch d.Code {
	case deck.ErrUnknownModel:
		return defs.ModelNames()
	case deck.ErrUnknownField:
		var i int
		if _, err := fmt.Sscanf(d.Location.Path, "notes[%d]", &i); err != nil || i < 0 || i >= len(defs.Notes) {
			return nil
		}
		if m, ok := defs.Model(defs.Notes[i].Model); ok {
			return m.Fields
		}
	case deck.ErrUnknownCommonField:
		seen := make(map[string]bool)
		var fields []string
		for _, m := range defs.Models {
			for _, f := range m.Fields {
				if !seen[f] {
					seen[f] = true
					fields = append(fields, f)
				}
			}
		}
		return fields
	}
	return nil
}
