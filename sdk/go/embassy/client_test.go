package embassy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitEventReturnsOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if ev.Type != "start_new_project" {
			t.Fatalf("unexpected event type: %s", ev.Type)
		}
		_ = json.NewEncoder(w).Encode(Outcome{
			NextAction:    "complete_intake",
			ProjectID:     "proj-1",
			ProjectStatus: "draft",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	outcome, err := client.SubmitEvent(context.Background(), Event{
		Type:    "start_new_project",
		ActorID: "alice",
	})
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}
	if outcome.ProjectID != "proj-1" || outcome.ProjectStatus != "draft" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestListProjectsEncodesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/projects" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		query := r.URL.Query()
		if got := query["status"]; len(got) != 2 || got[0] != "draft" || got[1] != "matched" {
			t.Fatalf("unexpected status filter: %v", got)
		}
		if query.Get("owner") != "alice" {
			t.Fatalf("unexpected owner: %q", query.Get("owner"))
		}
		if query.Get("limit") != "5" || query.Get("order") != "asc" {
			t.Fatalf("unexpected paging params: %v", query)
		}
		_ = json.NewEncoder(w).Encode([]Project{{ID: "proj-1", Status: "draft"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	projects, err := client.ListProjects(context.Background(), ListProjectsOptions{
		Statuses:  []string{"draft", "matched"},
		Owner:     "alice",
		Limit:     5,
		Ascending: true,
	})
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "proj-1" {
		t.Fatalf("unexpected projects: %+v", projects)
	}
}

func TestGetProjectError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/projects/proj-404" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(struct {
				Error APIError `json:"error"`
			}{Error: APIError{Code: "NOT_FOUND", Message: "missing"}})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.GetProject(context.Background(), "proj-404")
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestCatalogFiltersByCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/catalog" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("category") != "component" {
			t.Fatalf("unexpected category: %q", r.URL.Query().Get("category"))
		}
		_ = json.NewEncoder(w).Encode([]CatalogEntry{{ID: "comp-1", Category: "Component"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	entries, err := client.Catalog(context.Background(), "component")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "comp-1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
