package project

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parchment-dev/kbase/internal/kberrors"
)

// Common errors. ErrProjectNotFound and ErrDuplicateName wrap the matching
// kberrors sentinels.
var (
	ErrProjectNotFound    = fmt.Errorf("%w: project not found", kberrors.ErrNotFound)
	ErrDuplicateName      = fmt.Errorf("%w: project name already exists", kberrors.ErrDuplicateName)
	ErrInvalidProjectID   = errors.New("invalid project ID")
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrEmptyProjectID     = errors.New("project ID cannot be empty")
	ErrEmptyProjectName   = errors.New("project name cannot be empty")
)

// Project is a tenant boundary: one row of metadata, one dedicated backend
// collection, one LRU query cache. Every document a caller ingests under a
// project ID lands in that project's collection alone.
type Project struct {
	// ID is the unique project identifier (UUID v4).
	ID string `json:"id" db:"project_id"`

	// Name is the human-readable, globally unique project name.
	Name string `json:"name" db:"name"`

	// Description is a free-form note about the project's purpose.
	Description string `json:"description" db:"description"`

	// CollectionName is the backend vector-store collection this project
	// writes to and queries, derived once at creation via GetCollectionName.
	CollectionName string `json:"collection_name" db:"collection_name"`

	// EmbeddingModel identifies which embedding model produced (and must
	// continue to produce) the vectors stored in CollectionName.
	EmbeddingModel string `json:"embedding_model" db:"embedding_model"`

	// CreatedAt is when the project was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is when the project metadata was last modified.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Metadata is caller-defined, opaque key/value data persisted as JSON.
	Metadata map[string]interface{} `json:"metadata" db:"-"`
}

// newProject creates a new project with a generated UUID and derived
// collection name. now is injected so tests and callers can pin a clock.
func newProject(name, description, embeddingModel string, metadata map[string]interface{}, now time.Time) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}

	id := uuid.New().String()
	collectionName, err := GetCollectionName(id)
	if err != nil {
		return nil, err
	}

	return &Project{
		ID:             id,
		Name:           name,
		Description:    description,
		CollectionName: collectionName,
		EmbeddingModel: embeddingModel,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       metadata,
	}, nil
}

// Validate checks that the project has well-formed required fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return ErrInvalidProjectID
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	return nil
}
