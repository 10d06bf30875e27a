package project

import (
	"github.com/parchment-dev/kbase/internal/sanitize"
)

// CollectionPrefix is prepended to every sanitized project ID to build the
// backend collection name. Keeping a fixed prefix means a human scanning
// `ListCollections` output can tell a knowledge-base collection apart from
// one created by an unrelated tool sharing the same backend.
const CollectionPrefix = "kb_project_"

// GetCollectionName returns the single backend collection name for a
// project: one collection per project, holding every document the project
// has ingested. Format: kb_project_{sanitized_project_id}.
func GetCollectionName(projectID string) (string, error) {
	if projectID == "" {
		return "", ErrEmptyProjectID
	}
	return CollectionPrefix + sanitize.Identifier(projectID), nil
}
