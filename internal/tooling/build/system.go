// Package build turns deck definitions and template fragments into an Anki
// deck package.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/apkgbuild/internal/anki"
	"github.com/conduit-lang/apkgbuild/internal/apkg"
	"github.com/conduit-lang/apkgbuild/internal/deck"
	"github.com/conduit-lang/apkgbuild/internal/sources"
)

// BuildOptions configures the build process
type BuildOptions struct {
	SourceDir       string
	BuildDir        string
	DistDir         string
	DefinitionsPath string
	CollectionPath  string
	PackagePath     string
	// Force rebuilds even when the fingerprint says the package is current.
	Force  bool
	Logger *zap.Logger
	// Clock overrides the time source of the collection.
	Clock func() time.Time
}

// DefaultBuildOptions returns sensible defaults
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{
		SourceDir:       "src",
		BuildDir:        "build",
		DistDir:         "dist",
		DefinitionsPath: "deck.yml",
		CollectionPath:  filepath.Join("build", "collection.anki2"),
		PackagePath:     filepath.Join("dist", "deck.apkg"),
	}
}

// BuildResult contains information about the build
type BuildResult struct {
	Models         int              `json:"models"`
	Notes          int              `json:"notes"`
	Pruned         []string         `json:"pruned"`
	CollectionPath string           `json:"collection"`
	PackagePath    string           `json:"package"`
	Duration       time.Duration    `json:"duration"`
	UpToDate       bool             `json:"up_to_date"`
	Warnings       deck.Diagnostics `json:"warnings"`
}

// System coordinates the build process.
// Thread-safety: The System is not designed for concurrent access.
type System struct {
	options *BuildOptions
	sources *sources.Sources
	cache   *Cache
	logger  *zap.Logger
}

// NewSystem creates a new build system
func NewSystem(opts *BuildOptions) (*System, error) {
	if opts == nil {
		opts = DefaultBuildOptions()
	}
	if opts.SourceDir == "" || opts.DefinitionsPath == "" || opts.CollectionPath == "" || opts.PackagePath == "" {
		return nil, fmt.Errorf("build options need a source dir, definitions, collection and package path")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	buildDir := opts.BuildDir
	if buildDir == "" {
		buildDir = filepath.Dir(opts.CollectionPath)
	}

	return &System{
		options: opts,
		sources: sources.New(opts.SourceDir),
		cache:   NewCache(filepath.Join(buildDir, ".cache")),
		logger:  logger,
	}, nil
}

// Options returns the options the system was created with.
func (s *System) Options() *BuildOptions {
	return s.options
}

// Sources returns the fragment cache used by the system.
func (s *System) Sources() *sources.Sources {
	return s.sources
}

// LoadDefinitions reads and validates the definitions file. Blocking
// diagnostics are returned as a *deck.ValidationError.
func (s *System) LoadDefinitions() (*deck.Definitions, deck.Diagnostics, error) {
	defs, err := deck.Load(s.options.DefinitionsPath)
	if err != nil {
		return nil, nil, err
	}

	diags := defs.Validate()
	if diags.HasErrors() {
		return defs, diags, &deck.ValidationError{Diagnostics: diags}
	}
	return defs, diags, nil
}

// Build performs a full build
func (s *System) Build(ctx context.Context) (*BuildResult, error) {
	startTime := time.Now()
	opts := s.options

	defs, diags, err := s.LoadDefinitions()
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		CollectionPath: opts.CollectionPath,
		PackagePath:    opts.PackagePath,
		Warnings:       diags.Warnings(),
	}

	if !opts.Force && s.cache.Fresh(opts.DefinitionsPath, opts.PackagePath) {
		s.logger.Info("package is up to date", zap.String("package", opts.PackagePath))
		result.UpToDate = true
		result.Duration = time.Since(startTime)
		return result, nil
	}

	if opts.Force {
		// A forced build that fails must not leave the old fingerprint behind.
		if err := s.cache.Clear(); err != nil {
			s.logger.Warn("failed to clear build fingerprint", zap.Error(err))
		}
	}

	s.logger.Info("rebuilding", zap.String("definitions", opts.DefinitionsPath))

	for _, dir := range []string{opts.BuildDir, opts.DistDir, filepath.Dir(opts.CollectionPath)} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	s.logger.Info("saving collection", zap.String("path", opts.CollectionPath))
	if err := os.Remove(opts.CollectionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove old collection: %w", err)
	}

	s.sources.Reset()

	var colOpts []anki.Option
	if opts.Clock != nil {
		colOpts = append(colOpts, anki.WithClock(opts.Clock))
	}
	col, err := anki.Open(ctx, opts.CollectionPath, colOpts...)
	if err != nil {
		return nil, err
	}

	if err := s.populate(ctx, col, defs, result); err != nil {
		col.Abort()
		return nil, err
	}

	if err := col.Close(ctx); err != nil {
		return nil, err
	}

	media := make([]apkg.MediaFile, len(defs.Media))
	for i, name := range defs.Media {
		media[i] = apkg.MediaFile{Name: name, Path: filepath.Join(opts.SourceDir, name)}
	}
	if err := apkg.Write(opts.CollectionPath, opts.PackagePath, media); err != nil {
		return nil, err
	}
	s.logger.Info("created package", zap.String("path", opts.PackagePath))

	inputs := make([]string, 0, len(media))
	for _, name := range s.sources.Loaded() {
		inputs = append(inputs, filepath.Join(opts.SourceDir, name))
	}
	for _, m := range media {
		inputs = append(inputs, m.Path)
	}
	if err := s.cache.Record(opts.DefinitionsPath, opts.PackagePath, inputs); err != nil {
		s.logger.Warn("failed to record build fingerprint", zap.Error(err))
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

func (s *System) populate(ctx context.Context, col *anki.Collection, defs *deck.Definitions, result *BuildResult) error {
	if defs.DeckConfig != "" {
		if _, err := col.Decks.AddConfig(defs.DeckConfig); err != nil {
			return err
		}
	}
	if defs.Deck != "" {
		if err := col.Decks.Rename(anki.DefaultDeckID, defs.Deck); err != nil {
			return err
		}
	}

	if err := s.createModels(col, defs); err != nil {
		return err
	}
	s.logger.Info("added models", zap.Int("count", len(col.Models.All())))

	if err := s.createNotes(ctx, col, defs); err != nil {
		return err
	}
	notes, err := col.NoteCount(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("added notes", zap.Int("count", notes))

	pruned, err := s.pruneModels(ctx, col, defs)
	if err != nil {
		return err
	}

	result.Models = len(col.Models.All())
	result.Notes = notes
	result.Pruned = pruned
	return nil
}
