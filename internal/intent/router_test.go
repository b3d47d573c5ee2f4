package intent

import (
	"context"
	"errors"
	"testing"

	"TechHub-Embassy/internal/completion"
)

func TestRuleRouterExplicitEventType(t *testing.T) {
	router := NewRuleRouter(0)

	decision, err := router.Classify(context.Background(), Request{EventType: "request_match", Text: "whatever"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if decision.Action != ActionRequestMatch || decision.Confidence != 1 {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	decision, err = router.Classify(context.Background(), Request{EventType: "bogus_type"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if decision.Action != ActionUnknown {
		t.Fatalf("unknown event type must map to unknown, got %+v", decision)
	}
}

func TestRuleRouterKeywordScoring(t *testing.T) {
	router := NewRuleRouter(0)
	ctx := context.Background()

	cases := []struct {
		text string
		want Action
	}{
		{"I'd like to start a project for our warehouse", ActionStartNewProject},
		{"can we resume where we left off", ActionResumeProject},
		{"here is our use case and requirements", ActionSubmitIntake},
		{"please find resources that match our needs", ActionRequestMatch},
		{"the outline looks good, go ahead", ActionApproveOutline},
		{"cancel everything, we want to abandon this", ActionAbandon},
		{"the weather is nice today", ActionUnknown},
	}

	for _, tc := range cases {
		decision, err := router.Classify(ctx, Request{Text: tc.text})
		if err != nil {
			t.Fatalf("classify %q: %v", tc.text, err)
		}
		if decision.Action != tc.want {
			t.Errorf("classify %q = %s, want %s", tc.text, decision.Action, tc.want)
		}
	}
}

func TestRuleRouterThreshold(t *testing.T) {
	router := NewRuleRouter(0.9)

	decision, err := router.Classify(context.Background(), Request{Text: "we could maybe submit something"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if decision.Action != ActionUnknown {
		t.Fatalf("single weak hit must stay below a 0.9 threshold, got %+v", decision)
	}
}

type stubCompletion struct {
	text string
	err  error
}

func (s *stubCompletion) Complete(context.Context, completion.Request) (*completion.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &completion.Response{Text: s.text}, nil
}

func TestModelRouterFallsBackToRules(t *testing.T) {
	router := NewModelRouter(NewRuleRouter(0), &stubCompletion{err: errors.New("should not be called")})

	decision, err := router.Classify(context.Background(), Request{Text: "please match our use case against the catalog"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if decision.Action == ActionUnknown {
		t.Fatalf("rules should have resolved this text: %+v", decision)
	}
}

func TestModelRouterUsesModelForFreeText(t *testing.T) {
	router := NewModelRouter(NewRuleRouter(0), &stubCompletion{text: "approve_outline"})

	decision, err := router.Classify(context.Background(), Request{Text: "yes that works for us"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if decision.Action != ActionApproveOutline {
		t.Fatalf("expected model decision, got %+v", decision)
	}
}

func TestModelRouterNeverFails(t *testing.T) {
	ctx := context.Background()

	broken := NewModelRouter(NewRuleRouter(0), &stubCompletion{err: errors.New("model down")})
	decision, err := broken.Classify(ctx, Request{Text: "gibberish nobody understands"})
	if err != nil {
		t.Fatalf("model failure must not surface: %v", err)
	}
	if decision.Action != ActionUnknown {
		t.Fatalf("expected unknown on model failure, got %+v", decision)
	}

	garbled := NewModelRouter(NewRuleRouter(0), &stubCompletion{text: "definitely-not-an-action"})
	decision, err = garbled.Classify(ctx, Request{Text: "gibberish nobody understands"})
	if err != nil {
		t.Fatalf("unparseable output must not surface: %v", err)
	}
	if decision.Action != ActionUnknown {
		t.Fatalf("expected unknown on unparseable output, got %+v", decision)
	}
}
