package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileConverter_PassesContentThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# hello\n\nbody text"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	converted, err := NewFileConverter().Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if converted.Name != "note" {
		t.Errorf("Name = %q, want %q", converted.Name, "note")
	}
	if converted.MarkdownText != "# hello\n\nbody text" {
		t.Errorf("MarkdownText = %q", converted.MarkdownText)
	}
}

func TestFrontMatterConverter_ExtractsMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	content := "---\ntitle: Example\ntags:\n  - a\n  - b\n---\n# Body\n\ntext"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := NewFrontMatterConverter(nil).ConvertWithMeta(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertWithMeta() error = %v", err)
	}
	if result.MarkdownText != "# Body\n\ntext" {
		t.Errorf("MarkdownText = %q", result.MarkdownText)
	}
	if result.Metadata["title"] != "Example" {
		t.Errorf("Metadata[title] = %v, want Example", result.Metadata["title"])
	}
	tags, ok := result.Metadata["tags"].([]interface{})
	if !ok || len(tags) != 2 {
		t.Errorf("Metadata[tags] = %v, want 2-element slice", result.Metadata["tags"])
	}
}

func TestFrontMatterConverter_NoFrontMatterLeavesTextUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.md")
	if err := os.WriteFile(path, []byte("just text, no front matter"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := NewFrontMatterConverter(nil).ConvertWithMeta(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertWithMeta() error = %v", err)
	}
	if result.MarkdownText != "just text, no front matter" {
		t.Errorf("MarkdownText = %q", result.MarkdownText)
	}
	if result.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", result.Metadata)
	}
}

func TestFrontMatterConverter_UnterminatedBlockLeavesTextUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.md")
	content := "---\ntitle: Example\nno closing delimiter"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := NewFrontMatterConverter(nil).ConvertWithMeta(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertWithMeta() error = %v", err)
	}
	if result.MarkdownText != content {
		t.Errorf("MarkdownText = %q, want unchanged content", result.MarkdownText)
	}
}

func TestFrontMatterConverter_ConvertDropsMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	content := "---\ntitle: Example\n---\nbody"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	converted, err := NewFrontMatterConverter(nil).Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if converted.MarkdownText != "body" {
		t.Errorf("MarkdownText = %q, want %q", converted.MarkdownText, "body")
	}
}
