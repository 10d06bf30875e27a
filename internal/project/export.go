package project

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/parchment-dev/kbase/internal/vectorstore"
)

// BundleVersion is the manifest format version written by Export and
// checked by Import.
const BundleVersion = "2.3.0"

// manifest is the bundle's manifest.json.
type manifest struct {
	Version        string    `json:"version"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	EmbeddingModel string    `json:"embedding_model"`
	Metadata       map[string]interface{} `json:"metadata"`
	DocumentCount  int       `json:"document_count"`
}

// Export serializes a project's metadata and documents to a ZIP bundle at
// path: manifest.json, documents.json. Raw vectors are not part of the
// bundle (Store exposes no bulk-vector-read API); Import re-embeds
// documents through the caller's Embedder when it re-adds them, which also
// sidesteps any cross-model vector incompatibility on restore.
func (m *Manager) Export(ctx context.Context, id, path string, documents []vectorstore.Document) error {
	p, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("project: creating bundle file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	mf := manifest{
		Version:        BundleVersion,
		ProjectID:      p.ID,
		Name:           p.Name,
		Description:    p.Description,
		EmbeddingModel: p.EmbeddingModel,
		Metadata:       p.Metadata,
		DocumentCount:  len(documents),
	}
	if err := writeJSONEntry(zw, "manifest.json", mf); err != nil {
		zw.Close()
		return err
	}
	if err := writeJSONEntry(zw, "documents.json", documents); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// Import restores a project from a ZIP bundle written by Export, under
// newName. overwrite=false fails with ErrDuplicateName if newName is
// already taken; overwrite=true deletes any existing project with that
// name first. Returns the new project and its documents, which the
// caller (typically the KnowledgeBase facade) is responsible for
// re-embedding and adding to the new project's collection.
func (m *Manager) Import(ctx context.Context, path, newName string, overwrite bool) (*Project, []vectorstore.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("project: opening bundle: %w", err)
	}
	defer zr.Close()

	var mf manifest
	if err := readJSONEntry(&zr.Reader, "manifest.json", &mf); err != nil {
		return nil, nil, err
	}
	if mf.Version != BundleVersion {
		return nil, nil, fmt.Errorf("project: unsupported bundle version %q (expected %q)", mf.Version, BundleVersion)
	}

	var documents []vectorstore.Document
	if err := readJSONEntry(&zr.Reader, "documents.json", &documents); err != nil {
		return nil, nil, err
	}

	if overwrite {
		if existing, err := m.GetByName(ctx, newName); err == nil {
			if _, derr := m.Delete(ctx, existing.ID); derr != nil {
				return nil, nil, fmt.Errorf("project: deleting existing project %s before overwrite: %w", newName, derr)
			}
		}
	}

	p, err := m.Create(ctx, newName, mf.Description, mf.EmbeddingModel, mf.Metadata)
	if err != nil {
		return nil, nil, err
	}

	return p, documents, nil
}

func writeJSONEntry(zw *zip.Writer, name string, v interface{}) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("project: creating bundle entry %s: %w", name, err)
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("project: writing bundle entry %s: %w", name, err)
	}
	return nil
}

func readJSONEntry(zr *zip.Reader, name string, v interface{}) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("project: bundle missing %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("project: reading bundle entry %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("project: decoding bundle entry %s: %w", name, err)
	}
	return nil
}
