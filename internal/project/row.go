package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// projectRow mirrors the projects table for sqlx scanning; metadata_json
// is unmarshaled into Project.Metadata by toProject.
type projectRow struct {
	ID             string    `db:"project_id"`
	Name           string    `db:"name"`
	Description    string    `db:"description"`
	CollectionName string    `db:"collection_name"`
	EmbeddingModel string    `db:"embedding_model"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	MetadataJSON   string    `db:"metadata_json"`
}

func (r projectRow) toProject() (*Project, error) {
	metadata := map[string]interface{}{}
	if r.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("project: decoding metadata for %s: %w", r.ID, err)
		}
	}
	return &Project{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		CollectionName: r.CollectionName,
		EmbeddingModel: r.EmbeddingModel,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Metadata:       metadata,
	}, nil
}

func marshalMetadata(metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("project: encoding metadata: %w", err)
	}
	return string(b), nil
}

// expandPath expands a leading ~ to the user's home directory and ensures
// the parent directory exists, mirroring vectorstore.ChromemConfig's path
// handling. ":memory:" is passed through unchanged for in-memory databases.
func expandPath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return path, nil
}
