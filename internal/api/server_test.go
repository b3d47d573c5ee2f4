package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/intent"
	"TechHub-Embassy/internal/match"
	"TechHub-Embassy/internal/orchestrator"
	"TechHub-Embassy/internal/project"
	"TechHub-Embassy/internal/session"
)

func newTestServer(t *testing.T) (*Server, project.Store) {
	t.Helper()

	source := catalog.NewStaticSource([]catalog.Entry{
		{
			ID:         "comp-ocr",
			Title:      "OCR component",
			Category:   catalog.CategoryComponent,
			Tags:       []string{"ocr", "logistics"},
			Keywords:   []string{"ocr", "invoice", "intake", "automate"},
			Industries: []string{"logistics"},
			UpdatedAt:  100,
		},
	})
	index, err := catalog.NewIndex(context.Background(), source)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}

	store := project.NewMemoryStore()
	orch := orchestrator.New(
		orchestrator.Config{},
		store,
		session.NewMemoryStore(0),
		index,
		match.NewMatcher(match.Config{}),
		intent.NewRuleRouter(0),
		nil,
	)
	return NewServer(":0", orch, store, index), store
}

func postEvent(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestEventEndpointDrivesLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.routes()

	rec := postEvent(t, handler, `{"event_type":"start_new_project","actor_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start project: status %d body %s", rec.Code, rec.Body.String())
	}
	var outcome orchestrator.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.ProjectID == "" || outcome.ProjectStatus != project.StatusDraft {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	intake := `{"event_type":"submit_intake","actor_id":"alice","project_id":"` + outcome.ProjectID + `",` +
		`"payload":{"title":"Invoice automation","description":"Automate invoice intake with OCR",` +
		`"industry":"logistics","outcome":"automate invoice intake","resource_preferences":["component"]}}`
	rec = postEvent(t, handler, intake)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit intake: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = postEvent(t, handler, `{"event_type":"request_match","actor_id":"alice","project_id":"`+outcome.ProjectID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("request match: status %d body %s", rec.Code, rec.Body.String())
	}
	var matched orchestrator.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &matched); err != nil {
		t.Fatalf("decode match outcome: %v", err)
	}
	if matched.ProjectStatus != project.StatusMatched {
		t.Fatalf("expected matched status, got %+v", matched)
	}

	// 项目详情与匹配列表可查。
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+outcome.ProjectID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("project detail: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+outcome.ProjectID+"/matches", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("project matches: status %d", rec.Code)
	}
	var matches []*project.ResourceMatch
	if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestEventEndpointErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.routes()

	rec := postEvent(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = postEvent(t, handler, `{"event_type":"resume_project","project_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown project: expected 404, got %d", rec.Code)
	}
	var resp struct {
		Error struct {
			Code xerrors.Code `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error.Code != xerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %s", resp.Error.Code)
	}

	rec = postEvent(t, handler, `{"event_type":"approve_outline","project_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing project, got %d", rec.Code)
	}
}

func TestProjectListAndStats(t *testing.T) {
	server, store := newTestServer(t)
	handler := server.routes()
	ctx := context.Background()

	seed := []*project.Project{
		{ID: "p1", OwnerID: "alice", Status: project.StatusDraft},
		{ID: "p2", OwnerID: "bob", Status: project.StatusMatched},
	}
	for _, p := range seed {
		if err := store.CreateProject(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects?owner=alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var projects []*project.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &projects); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "p1" {
		t.Fatalf("unexpected list: %+v", projects)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects/stats", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
	var stats project.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Draft != 1 || stats.Matched != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects?status=bogus", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter: expected 400, got %d", rec.Code)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.routes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("catalog: status %d", rec.Code)
	}
	var entries []catalog.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "comp-ocr" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog?category=bogus", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid category: expected 400, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}
