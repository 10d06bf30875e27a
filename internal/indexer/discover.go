package indexer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultSkipDirs are always skipped during discovery regardless of the
// per-project ignore configuration — generated code, dependencies, and
// version-control metadata have no business being searchable text.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// SourceFile is one file discovery found, paired with the knowledge
// directory it came from so the indexer can derive a document id relative
// to that root.
type SourceFile struct {
	KnowledgeDir string
	Path         string
	ModTime      time.Time
}

// Discover walks each configured knowledge directory and returns every
// file matching extensions, skipping symlinks, always-skipped directories,
// and anything matched by excludePatterns (doublestar glob syntax, as
// produced by ignore.Parser). A non-existent knowledge directory is
// logged by the caller and simply contributes no files; it is not an
// error here.
func Discover(knowledgeDirs []string, extensions []string, excludePatterns []string) ([]SourceFile, error) {
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[e] = true
	}

	var out []SourceFile
	for _, dir := range knowledgeDirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		err = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if fi.Mode()&os.ModeSymlink != 0 {
				if fi.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if fi.IsDir() {
				if defaultSkipDirs[filepath.Base(path)] {
					return filepath.SkipDir
				}
				return nil
			}

			if !extSet[filepath.Ext(path)] {
				return nil
			}

			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return nil
			}
			if matchesAny(rel, excludePatterns) {
				return nil
			}

			out = append(out, SourceFile{KnowledgeDir: dir, Path: path, ModTime: fi.ModTime()})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func matchesAny(relPath string, patterns []string) bool {
	slashed := filepath.ToSlash(relPath)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}
