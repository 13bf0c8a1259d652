package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/apkgbuild/internal/tooling/build"
)

// Builder is the part of the build system the watcher drives.
type Builder interface {
	Build(ctx context.Context) (*build.BuildResult, error)
}

// Rebuilder runs one build at a time in response to file changes.
type Rebuilder struct {
	ctx      context.Context
	builder  Builder
	logger   *zap.Logger
	onResult func(*build.BuildResult, error)

	mu     sync.Mutex
	builds int
}

// NewRebuilder creates a rebuilder. onResult, when set, receives the outcome
// of every build.
func NewRebuilder(ctx context.Context, builder Builder, logger *zap.Logger, onResult func(*build.BuildResult, error)) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{
		ctx:      ctx,
		builder:  builder,
		logger:   logger,
		onResult: onResult,
	}
}

// Rebuild builds the package. Build failures are reported through onResult
// and the log rather than returned, so watching continues after a bad edit.
func (r *Rebuilder) Rebuild(changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ctx.Err(); err != nil {
		return err
	}

	r.builds++
	r.logger.Info("rebuilding", zap.Strings("changed", changed), zap.Int("build", r.builds))

	result, err := r.builder.Build(r.ctx)
	if err != nil {
		r.logger.Error("build failed", zap.Error(err))
	} else {
		r.logger.Info("build finished",
			zap.Int("models", result.Models),
			zap.Int("notes", result.Notes),
			zap.Duration("duration", result.Duration))
	}

	if r.onResult != nil {
		r.onResult(result, err)
	}
	return nil
}

// Builds returns how many builds have run.
func (r *Rebuilder) Builds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds
}

// Run starts watching roots, performs an initial build, then rebuilds on
// every settled change until ctx is cancelled.
func Run(ctx context.Context, builder Builder, roots, ignored []string, logger *zap.Logger, onResult func(*build.BuildResult, error)) error {
	rebuilder := NewRebuilder(ctx, builder, logger, onResult)

	fw, err := NewFileWatcher(roots, ignored, rebuilder.Rebuild, logger)
	if err != nil {
		return err
	}

	// Watch before the initial build so edits saved during it are seen.
	if err := fw.Start(); err != nil {
		fw.Stop()
		return err
	}

	if err := rebuilder.Rebuild(nil); err != nil {
		fw.Stop()
		return err
	}

	<-ctx.Done()
	return fw.Stop()
}
