package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Converted is what Converter.Convert produces from a source file.
type Converted struct {
	Name         string
	MarkdownText string
}

// Converter turns a source file into a document's display name and text.
// Implementations may shell out to a rendering pipeline; the default just
// reads the file, since the indexer's default file extension is already
// ".md" and needs no transformation to become searchable text.
type Converter interface {
	Convert(ctx context.Context, path string) (Converted, error)
}

// FileConverter reads a source file's bytes directly as UTF-8 text. Its
// "conversion" is nominal: the name is the file's base name without
// extension, and the markdown text is the file's content unchanged.
type FileConverter struct{}

// NewFileConverter constructs the default Converter.
func NewFileConverter() *FileConverter { return &FileConverter{} }

func (FileConverter) Convert(ctx context.Context, path string) (Converted, error) {
	select {
	case <-ctx.Done():
		return Converted{}, ctx.Err()
	default:
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Converted{}, err
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return Converted{Name: name, MarkdownText: string(data)}, nil
}

var _ Converter = (*FileConverter)(nil)

// FrontMatterConverter wraps another Converter and strips a leading
// `---`-delimited YAML front matter block from its output, returning the
// parsed fields separately so callers can fold them into document
// metadata instead of indexing them as body text.
type FrontMatterConverter struct {
	next Converter
}

// NewFrontMatterConverter wraps next, which defaults to NewFileConverter
// if nil.
func NewFrontMatterConverter(next Converter) *FrontMatterConverter {
	if next == nil {
		next = NewFileConverter()
	}
	return &FrontMatterConverter{next: next}
}

// ConvertedWithMeta is what FrontMatterConverter.ConvertWithMeta produces:
// the body text plus any front matter fields.
type ConvertedWithMeta struct {
	Converted
	Metadata map[string]interface{}
}

func (c *FrontMatterConverter) Convert(ctx context.Context, path string) (Converted, error) {
	result, err := c.ConvertWithMeta(ctx, path)
	if err != nil {
		return Converted{}, err
	}
	return result.Converted, nil
}

// ConvertWithMeta runs the wrapped Converter, then extracts a `---`
// front matter block from the start of its markdown text, if present.
func (c *FrontMatterConverter) ConvertWithMeta(ctx context.Context, path string) (ConvertedWithMeta, error) {
	converted, err := c.next.Convert(ctx, path)
	if err != nil {
		return ConvertedWithMeta{}, err
	}

	body, meta := splitFrontMatter(converted.MarkdownText)
	converted.MarkdownText = body
	return ConvertedWithMeta{Converted: converted, Metadata: meta}, nil
}

const frontMatterDelim = "---"

// splitFrontMatter returns text with its leading front matter block
// removed, along with the block's parsed fields. text without a leading
// "---\n" line is returned unchanged with a nil metadata map.
func splitFrontMatter(text string) (string, map[string]interface{}) {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != frontMatterDelim {
		return text, nil
	}

	var blockEnd = -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == frontMatterDelim {
			blockEnd = i
			break
		}
	}
	if blockEnd < 0 {
		return text, nil
	}

	raw := strings.Join(lines[1:blockEnd], "")
	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
		return text, nil
	}

	return strings.Join(lines[blockEnd+1:], ""), meta
}

var _ Converter = (*FrontMatterConverter)(nil)
