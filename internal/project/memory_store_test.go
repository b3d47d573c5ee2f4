package project

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreOptimisticVersioning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := &Project{ID: "p1", OwnerID: "owner-1", Title: "demo", Status: StatusDraft}
	if err := store.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateProject(ctx, &Project{ID: "p1", Status: StatusDraft}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	loaded, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != 1 {
		t.Fatalf("expected initial version 1, got %d", loaded.Version)
	}

	loaded.Status = StatusIntakeComplete
	saved, err := store.Save(ctx, loaded, loaded.Version)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", saved.Version)
	}

	// 使用过期版本写入必须失败。
	stale := *loaded
	stale.Title = "stale write"
	if _, err := store.Save(ctx, &stale, 1); !IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	current, err := store.Load(ctx, "p1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Title != "demo" || current.Version != 2 {
		t.Fatalf("stale write must not change state: %+v", current)
	}
}

func TestMemoryStoreAppendMatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateProject(ctx, &Project{ID: "p1", Status: StatusMatching}); err != nil {
		t.Fatalf("create: %v", err)
	}

	match := &ResourceMatch{
		ID:        "m1",
		UseCaseID: "uc-1",
		Candidates: []Candidate{
			{ResourceID: "demo-1", Title: "OCR demo", Confidence: 0.82},
		},
	}
	updated, err := store.AppendMatch(ctx, "p1", match, 1)
	if err != nil {
		t.Fatalf("append match: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("append must bump project version, got %d", updated.Version)
	}
	if updated.LatestMatchID() != "m1" {
		t.Fatalf("unexpected latest match: %s", updated.LatestMatchID())
	}

	if _, err := store.AppendMatch(ctx, "p1", match, 1); !IsVersionConflict(err) {
		t.Fatalf("expected version conflict on stale append, got %v", err)
	}
	if _, err := store.AppendMatch(ctx, "missing", match, 1); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	// 已保存的匹配记录不受调用方后续修改影响。
	match.Candidates[0].Confidence = 0.1
	stored, err := store.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.Candidates[0].Confidence != 0.82 {
		t.Fatalf("match record must be immutable, got %+v", stored.Candidates[0])
	}

	matches, err := store.ListMatches(ctx, "p1")
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ProjectID != "p1" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestMemoryStoreUseCaseFinalized(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uc := &UseCase{ID: "uc-1", Title: "t", Description: "d", Industry: "i", Outcome: "o"}
	if err := store.PutUseCase(ctx, uc); err != nil {
		t.Fatalf("put: %v", err)
	}

	uc.Finalized = true
	if err := store.PutUseCase(ctx, uc); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	uc.Title = "changed"
	if err := store.PutUseCase(ctx, uc); err == nil {
		t.Fatal("finalized use case must reject overwrite")
	}

	got, err := store.GetUseCase(ctx, "uc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "t" {
		t.Fatalf("unexpected title after rejected overwrite: %s", got.Title)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	projects := []*Project{
		{ID: "p1", OwnerID: "alice", Status: StatusDraft},
		{ID: "p2", OwnerID: "bob", Status: StatusMatching},
		{ID: "p3", OwnerID: "alice", Status: StatusPromoted, Promoted: true},
	}
	for _, p := range projects {
		if err := store.CreateProject(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	store.mu.Lock()
	store.projects["p1"].UpdatedAt = base.Unix()
	store.projects["p2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.projects["p3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 projects, got %d", len(all))
	}
	if all[0].ID != "p3" {
		t.Fatalf("expected newest project first, got %s", all[0].ID)
	}

	owned, err := store.List(ctx, BuildListOptions([]ListOption{WithOwner("alice")}))
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("expected 2 projects for alice, got %d", len(owned))
	}

	matching, err := store.List(ctx, BuildListOptions([]ListOption{WithStatuses(StatusMatching)}))
	if err != nil {
		t.Fatalf("list matching: %v", err)
	}
	if len(matching) != 1 || matching[0].ID != "p2" {
		t.Fatalf("unexpected matching list: %+v", matching)
	}

	since := base.Add(15 * time.Second)
	recent, err := store.List(ctx, BuildListOptions([]ListOption{WithUpdatedSince(since)}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 projects to match since filter, got %d", len(recent))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Minute)
	projects := []*Project{
		{ID: "a", OwnerID: "alice", Status: StatusDraft},
		{ID: "b", OwnerID: "bob", Status: StatusMatched},
		{ID: "c", OwnerID: "alice", Status: StatusPromoted, Promoted: true},
	}
	for _, p := range projects {
		if err := store.CreateProject(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	store.mu.Lock()
	store.projects["a"].UpdatedAt = base.Unix()
	store.projects["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.projects["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Draft != 1 || stats.Matched != 1 || stats.Promoted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected newest timestamp: %d", stats.NewestUpdatedAt)
	}
	if stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected oldest timestamp: %d", stats.OldestUpdatedAt)
	}

	ownerStats, err := store.Stats(ctx, BuildListOptions([]ListOption{WithOwner("alice")}))
	if err != nil {
		t.Fatalf("stats by owner: %v", err)
	}
	if ownerStats.Total != 2 || ownerStats.Draft != 1 || ownerStats.Promoted != 1 {
		t.Fatalf("unexpected owner stats: %+v", ownerStats)
	}
}
