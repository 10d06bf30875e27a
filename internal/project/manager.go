package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/parchment-dev/kbase/internal/lru"
	"github.com/parchment-dev/kbase/internal/vectorstore"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id      TEXT PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	description     TEXT NOT NULL DEFAULT '',
	collection_name TEXT NOT NULL,
	embedding_model TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	metadata_json   TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);
`

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// DBPath is the SQLite database file path, or ":memory:" for a
	// process-local database.
	DBPath string

	// VectorSize is the embedding dimensionality used when creating a
	// project's backend collection.
	VectorSize int

	// CacheCapacity bounds each project's per-project query cache.
	CacheCapacity int
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *ManagerConfig) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "~/.config/kbase/projects.db"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 1000
	}
}

// UpdateFields carries the subset of project fields Update should change.
// A nil pointer means "leave unchanged".
type UpdateFields struct {
	Description    *string
	EmbeddingModel *string
	Metadata       map[string]interface{}
}

// Manager is the SQLite-backed ProjectManager: one metadata row, one
// pooled vector-backend client, and one LRU query cache per project.
//
// All public operations acquire mu for the duration of their metadata
// mutation; the collection existence cache and the backend client each
// have their own lock so neither nests inside mu.
type Manager struct {
	db *sqlx.DB
	mu sync.Mutex

	newStore  func() (vectorstore.Store, error)
	storeOnce sync.Once
	store     vectorstore.Store
	storeErr  error

	collMu    sync.RWMutex
	collKnown map[string]bool // project_id -> collection confirmed to exist

	cacheMu       sync.RWMutex
	caches        map[string]*lru.Cache[string, any]
	cacheCapacity int

	vectorSize int
	logger     *zap.Logger
}

// NewManager opens (creating if necessary) the SQLite database at
// cfg.DBPath and returns a Manager backed by it. newStore lazily
// constructs the pooled vector-backend client on first use.
func NewManager(cfg ManagerConfig, newStore func() (vectorstore.Store, error), logger *zap.Logger) (*Manager, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if newStore == nil {
		return nil, fmt.Errorf("project: newStore factory is required")
	}

	path, err := expandPath(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("project: resolving db path: %w", err)
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("project: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite has no native connection pooling

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("project: applying schema: %w", err)
	}

	return &Manager{
		db:            db,
		newStore:      newStore,
		collKnown:     make(map[string]bool),
		caches:        make(map[string]*lru.Cache[string, any]),
		cacheCapacity: cfg.CacheCapacity,
		vectorSize:    cfg.VectorSize,
		logger:        logger,
	}, nil
}

// backendClient returns the pooled vector-backend client, constructing it
// exactly once via sync.Once (the idiomatic replacement for a hand rolled
// double-checked lock).
func (m *Manager) backendClient() (vectorstore.Store, error) {
	m.storeOnce.Do(func() {
		m.store, m.storeErr = m.newStore()
	})
	return m.store, m.storeErr
}

// Create inserts a new project, provisions its backend collection, and
// attaches a fresh query cache. Fails with ErrDuplicateName if name
// already exists.
func (m *Manager) Create(ctx context.Context, name, description, embeddingModel string, metadata map[string]interface{}) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exists int
	if err := m.db.GetContext(ctx, &exists, "SELECT COUNT(1) FROM projects WHERE name = ?", name); err != nil {
		return nil, fmt.Errorf("project: checking name uniqueness: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	p, err := newProject(name, description, embeddingModel, metadata, time.Now())
	if err != nil {
		return nil, err
	}

	store, err := m.backendClient()
	if err != nil {
		return nil, fmt.Errorf("project: acquiring backend client: %w", err)
	}
	if err := store.CreateCollection(ctx, p.CollectionName, m.vectorSize); err != nil {
		return nil, fmt.Errorf("project: creating collection %s: %w", p.CollectionName, err)
	}

	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		store.DeleteCollection(ctx, p.CollectionName)
		return nil, err
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, name, description, collection_name, embedding_model, created_at, updated_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CollectionName, p.EmbeddingModel, p.CreatedAt, p.UpdatedAt, metadataJSON,
	)
	if err != nil {
		store.DeleteCollection(ctx, p.CollectionName)
		return nil, fmt.Errorf("project: inserting project row: %w", err)
	}

	m.collMu.Lock()
	m.collKnown[p.ID] = true
	m.collMu.Unlock()

	m.cacheMu.Lock()
	m.caches[p.ID] = lru.New[string, any](m.cacheCapacity)
	m.cacheMu.Unlock()

	m.logger.Info("created project",
		zap.String("project_id", p.ID),
		zap.String("name", p.Name),
		zap.String("collection", p.CollectionName),
	)
	return p, nil
}

// Get retrieves a project by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Project, error) {
	if id == "" {
		return nil, ErrInvalidProjectID
	}
	return m.queryOne(ctx, "SELECT * FROM projects WHERE project_id = ?", id)
}

// GetByName retrieves a project by its unique name.
func (m *Manager) GetByName(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		return nil, ErrInvalidProjectName
	}
	return m.queryOne(ctx, "SELECT * FROM projects WHERE name = ?", name)
}

func (m *Manager) queryOne(ctx context.Context, query string, arg string) (*Project, error) {
	var row projectRow
	err := m.db.GetContext(ctx, &row, query, arg)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("project: querying project: %w", err)
	}
	return row.toProject()
}

// List returns all projects ordered by creation time, newest first.
func (m *Manager) List(ctx context.Context) ([]*Project, error) {
	var rows []projectRow
	if err := m.db.SelectContext(ctx, &rows, "SELECT * FROM projects ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("project: listing projects: %w", err)
	}

	projects := make([]*Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toProject()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Update applies a partial update to a project's metadata row.
// Name uniqueness is not re-checked here since spec.md does not expose
// project renaming through UpdateFields; only description, embedding
// model, and metadata are mutable after creation.
func (m *Manager) Update(ctx context.Context, id string, fields UpdateFields) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.queryOne(ctx, "SELECT * FROM projects WHERE project_id = ?", id)
	if err != nil {
		return nil, err
	}

	if fields.Description != nil {
		p.Description = *fields.Description
	}
	if fields.EmbeddingModel != nil {
		p.EmbeddingModel = *fields.EmbeddingModel
	}
	if fields.Metadata != nil {
		p.Metadata = fields.Metadata
	}
	p.UpdatedAt = time.Now()

	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = m.db.ExecContext(ctx, `
		UPDATE projects SET description = ?, embedding_model = ?, updated_at = ?, metadata_json = ?
		WHERE project_id = ?`,
		p.Description, p.EmbeddingModel, p.UpdatedAt, metadataJSON, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("project: updating project: %w", err)
	}
	return p, nil
}

// Delete removes a project: its cache, its collection cache entry, its
// backend collection (logged but non-fatal on failure), and its metadata
// row. Returns true if a row was deleted.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.queryOne(ctx, "SELECT * FROM projects WHERE project_id = ?", id)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return false, nil
		}
		return false, err
	}

	m.cacheMu.Lock()
	delete(m.caches, id)
	m.cacheMu.Unlock()

	m.collMu.Lock()
	delete(m.collKnown, id)
	m.collMu.Unlock()

	if store, serr := m.backendClient(); serr == nil {
		if derr := store.DeleteCollection(ctx, p.CollectionName); derr != nil {
			m.logger.Warn("failed to delete backend collection",
				zap.String("project_id", id),
				zap.String("collection", p.CollectionName),
				zap.Error(derr),
			)
		}
	}

	res, err := m.db.ExecContext(ctx, "DELETE FROM projects WHERE project_id = ?", id)
	if err != nil {
		return false, fmt.Errorf("project: deleting project row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("project: checking delete result: %w", err)
	}
	return n > 0, nil
}

// Cache returns the per-project query cache for id, or nil if the project
// is unknown (it may have been deleted, or never created through this
// Manager instance, e.g. after a process restart).
func (m *Manager) Cache(id string) *lru.Cache[string, any] {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	return m.caches[id]
}

// Store returns the pooled vector-backend client.
func (m *Manager) Store(ctx context.Context) (vectorstore.Store, error) {
	return m.backendClient()
}

// Close clears all caches and releases the backend client and database
// handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cacheMu.Lock()
	m.caches = make(map[string]*lru.Cache[string, any])
	m.cacheMu.Unlock()

	m.collMu.Lock()
	m.collKnown = make(map[string]bool)
	m.collMu.Unlock()

	var storeErr error
	if m.store != nil {
		storeErr = m.store.Close()
	}
	dbErr := m.db.Close()
	if storeErr != nil {
		return storeErr
	}
	return dbErr
}

