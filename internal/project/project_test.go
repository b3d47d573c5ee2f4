package project

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusIntakeComplete, true},
		{StatusIntakeComplete, StatusMatching, true},
		{StatusMatching, StatusMatched, true},
		{StatusMatched, StatusOutlined, true},
		{StatusOutlined, StatusPromoted, true},
		{StatusMatching, StatusIntakeComplete, true},
		{StatusDraft, StatusMatching, false},
		{StatusMatched, StatusIntakeComplete, false},
		{StatusMatched, StatusPromoted, false},
		{StatusDraft, StatusAbandoned, true},
		{StatusOutlined, StatusAbandoned, true},
		{StatusPromoted, StatusAbandoned, false},
		{StatusAbandoned, StatusDraft, false},
		{StatusPromoted, StatusOutlined, false},
		{StatusDraft, StatusDraft, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestProjectAdvanceRecordsHistory(t *testing.T) {
	p := &Project{ID: "p1", Status: StatusDraft}
	now := time.Now().Unix()

	if err := p.Advance(StatusIntakeComplete, "owner-1", "intake done", now); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := p.Advance(StatusMatching, "system", "", now+1); err != nil {
		t.Fatalf("advance to matching: %v", err)
	}
	if err := p.Advance(StatusIntakeComplete, "system", "no match found", now+2); err != nil {
		t.Fatalf("rollback to intake complete: %v", err)
	}

	if len(p.History) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(p.History))
	}
	last := p.History[2]
	if last.From != StatusMatching || last.To != StatusIntakeComplete {
		t.Fatalf("unexpected last transition: %+v", last)
	}

	if err := p.Advance(StatusMatched, "system", "", now+3); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if len(p.History) != 3 {
		t.Fatalf("failed transition must not append history, got %d entries", len(p.History))
	}
}

func TestProjectAdvancePromotedFlag(t *testing.T) {
	p := &Project{ID: "p1", Status: StatusOutlined}
	if err := p.Advance(StatusPromoted, "owner-1", "", time.Now().Unix()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !p.Promoted {
		t.Fatal("expected Promoted flag set")
	}
	if err := p.Advance(StatusAbandoned, "owner-1", "", time.Now().Unix()); err == nil {
		t.Fatal("promoted project must be immutable")
	}
}

func TestUseCaseMissingFields(t *testing.T) {
	uc := &UseCase{Title: "OCR pipeline", Industry: "logistics"}
	missing := uc.MissingFields()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", missing)
	}
	if uc.Complete() {
		t.Fatal("incomplete use case reported complete")
	}

	uc.Description = "Extract fields from shipping manifests"
	uc.Outcome = "Reduce manual entry"
	if !uc.Complete() {
		t.Fatalf("expected complete, missing: %v", uc.MissingFields())
	}
}

func TestUseCaseAmendProducesRevision(t *testing.T) {
	original := &UseCase{
		ID:          "uc-1",
		Rev:         1,
		Title:       "Original",
		Description: "d",
		Industry:    "retail",
		Outcome:     "o",
		Constraints: Constraints{Dependencies: []string{"erp"}},
		Finalized:   true,
	}

	amended := original.Amend("uc-2", time.Now().Unix())
	if amended.ID != "uc-2" || amended.Rev != 2 || amended.RevisionOf != "uc-1" {
		t.Fatalf("unexpected revision identity: %+v", amended)
	}
	if amended.Finalized {
		t.Fatal("amended revision must start unfinalized")
	}

	amended.Constraints.Dependencies[0] = "crm"
	if original.Constraints.Dependencies[0] != "erp" {
		t.Fatal("amend must deep-copy constraint slices")
	}
}
