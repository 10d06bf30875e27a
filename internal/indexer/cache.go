package indexer

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/repository"
)

// LoadOrBuild loads the repository from the configured cache snapshot if
// it is still fresh, falling back to a full Build when the cache is
// missing, stale, or invalid.
//
// The cache is stale if any discovered source file's modification time is
// newer than the snapshot file's, or (when chunking is disabled, so
// documents map 1:1 to files) the cached document count doesn't match the
// number of discovered files. It is invalid if LoadFromCache rejects its
// content as non-JSON.
func (idx *Indexer) LoadOrBuild(ctx context.Context, repo *repository.Repository) error {
	if idx.cfg.CacheFile == "" {
		return idx.Build(ctx, repo)
	}

	info, err := os.Stat(idx.cfg.CacheFile)
	if err != nil {
		idx.logger.Info("no index snapshot found, building from scratch")
		return idx.Build(ctx, repo)
	}

	excludes, err := idx.collectExcludePatterns()
	if err != nil {
		return err
	}
	files, err := Discover(idx.cfg.KnowledgeDirs, idx.cfg.FileExtensions, excludes)
	if err != nil {
		return err
	}

	for _, f := range files {
		if f.ModTime.After(info.ModTime()) {
			idx.logger.Info("index snapshot is stale, rebuilding", zap.String("path", f.Path))
			return idx.Build(ctx, repo)
		}
	}

	if err := repo.LoadFromCache(idx.cfg.CacheFile); err != nil {
		idx.logger.Info("index snapshot is invalid, rebuilding", zap.Error(err))
		return idx.Build(ctx, repo)
	}

	if idx.cfg.ChunkSize <= 0 && repo.DocumentCount() != len(files) {
		idx.logger.Info("index snapshot document count mismatch, rebuilding",
			zap.Int("cached", repo.DocumentCount()),
			zap.Int("discovered", len(files)),
		)
		return idx.Build(ctx, repo)
	}

	return nil
}
