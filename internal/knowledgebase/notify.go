package knowledgebase

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Notifier publishes best-effort lifecycle events for a project's knowledge
// base over NATS. A nil *Notifier (or one built with a nil connection) is
// safe to call: every publish becomes a no-op, since NATS is optional
// infrastructure that a deployment may not run.
type Notifier struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNotifier wraps an existing NATS connection. conn may be nil.
func NewNotifier(conn *nats.Conn, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{conn: conn, logger: logger}
}

type ingestCompletedEvent struct {
	ProjectID     string    `json:"project_id"`
	DocumentCount int       `json:"document_count"`
	At            time.Time `json:"at"`
}

type projectDeletedEvent struct {
	ProjectID string    `json:"project_id"`
	At        time.Time `json:"at"`
}

// IngestCompleted publishes "kbase.ingest.completed" after a successful
// RebuildIndex. Failure to publish is logged, never returned: ingestion
// already succeeded by the time this runs.
func (n *Notifier) IngestCompleted(projectID string, documentCount int) {
	n.publish("kbase.ingest.completed", ingestCompletedEvent{
		ProjectID:     projectID,
		DocumentCount: documentCount,
		At:            time.Now(),
	})
}

// ProjectDeleted publishes "kbase.project.deleted" after a project and its
// collection have been removed.
func (n *Notifier) ProjectDeleted(projectID string) {
	n.publish("kbase.project.deleted", projectDeletedEvent{
		ProjectID: projectID,
		At:        time.Now(),
	})
}

func (n *Notifier) publish(subject string, payload interface{}) {
	if n == nil || n.conn == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("marshaling notification event", zap.String("subject", subject), zap.Error(err))
		return
	}

	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Warn("publishing notification event", zap.String("subject", subject), zap.Error(err))
	}
}
