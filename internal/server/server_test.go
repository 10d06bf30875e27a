package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/config"
	"github.com/parchment-dev/kbase/internal/project"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

type fakeEmbedder struct{ size int }

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.size)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.size), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	embedder := &fakeEmbedder{size: 8}

	newStore := func() (vectorstore.Store, error) {
		cfg := vectorstore.ChromemConfig{Path: filepath.Join(dir, "vectors"), VectorSize: 8}
		return vectorstore.NewChromemStore(cfg, embedder, zap.NewNop())
	}

	manager, err := project.NewManager(project.ManagerConfig{
		DBPath:        filepath.Join(dir, "projects.db"),
		VectorSize:    8,
		CacheCapacity: 16,
	}, newStore, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	kbCfg := config.KnowledgeBaseConfig{
		MaxCacheSize:     16,
		EmbeddingModel:   "test-model",
		VectorSearchMode: "vector",
		ChunkSize:        1000,
		HybridAlpha:      0.5,
	}
	return New(manager, embedder, kbCfg, config.RepositoryConfig{}, zap.NewNop(), nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_CreateAndGetProject(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/projects", createProjectRequest{Name: "demo"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created project.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}

	rec = doJSON(t, s, http.MethodGet, "/projects/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServer_GetProject_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/projects/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_IngestThenQuery(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/projects", createProjectRequest{Name: "ingest-query"})
	var created project.Project
	json.Unmarshal(rec.Body.Bytes(), &created)

	ingestReq := ingestRequest{Documents: []vectorstore.Document{
		{ID: "a", Content: "alpha document about gophers"},
		{ID: "b", Content: "beta document about whales"},
	}}
	rec = doJSON(t, s, http.MethodPost, "/projects/"+created.ID+"/ingest", ingestReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/projects/"+created.ID+"/query", queryRequest{
		Text: "gophers", Mode: "vector", TopK: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Stats_UnknownProject(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/projects/missing/stats", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServer_DeleteProject_ClearsKnowledgeBaseCache(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/projects", createProjectRequest{Name: "to-delete"})
	var created project.Project
	json.Unmarshal(rec.Body.Bytes(), &created)

	doJSON(t, s, http.MethodGet, "/projects/"+created.ID+"/stats", nil)

	rec = doJSON(t, s, http.MethodDelete, "/projects/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	s.mu.Lock()
	_, cached := s.kbs[created.ID]
	s.mu.Unlock()
	if cached {
		t.Error("expected knowledge base cache entry to be cleared after delete")
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
