package match

import (
	"reflect"
	"testing"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/project"
)

func testSnapshot() *catalog.Snapshot {
	return catalog.BuildSnapshot([]catalog.Entry{
		{
			ID:         "demo-ocr",
			Title:      "Document OCR demo",
			Category:   catalog.CategoryDemo,
			Tags:       []string{"logistics", "ocr", "aws"},
			Keywords:   []string{"ocr", "document", "manifest", "extraction"},
			Industries: []string{"logistics"},
			UpdatedAt:  300,
		},
		{
			ID:         "demo-chatbot",
			Title:      "Retail chatbot demo",
			Category:   catalog.CategoryDemo,
			Tags:       []string{"retail", "chat"},
			Keywords:   []string{"chatbot", "support"},
			Industries: []string{"retail"},
			UpdatedAt:  200,
		},
		{
			ID:         "sol-intake",
			Title:      "Intelligent document processing solution",
			Category:   catalog.CategorySolution,
			Tags:       []string{"logistics", "ocr"},
			Keywords:   []string{"document", "pipeline", "ocr"},
			Industries: []string{"logistics", "insurance"},
			UpdatedAt:  250,
		},
		{
			ID:        "comp-queue",
			Title:     "Ingestion queue component",
			Category:  catalog.CategoryComponent,
			Tags:      []string{"queue", "ingestion"},
			Keywords:  []string{"queue", "ingestion", "document"},
			UpdatedAt: 100,
		},
	})
}

func logisticsUseCase() *project.UseCase {
	return &project.UseCase{
		ID:          "uc-1",
		Title:       "OCR for shipping manifests",
		Description: "Extract structured fields from scanned shipping documents",
		Industry:    "logistics",
		Outcome:     "Reduce manual data entry",
		Constraints: project.Constraints{Dependencies: []string{"ocr"}},
	}
}

func TestMatchAssemblesBOMAcrossCategories(t *testing.T) {
	matcher := NewMatcher(Config{ConfidenceFloor: 0.3})
	result, err := matcher.Match(logisticsUseCase(), testSnapshot())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.UseCaseID != "uc-1" {
		t.Fatalf("unexpected use case id: %s", result.UseCaseID)
	}
	if len(result.BOM) != 3 {
		t.Fatalf("expected one BOM item per category, got %+v", result.BOM)
	}

	byCapability := make(map[string]project.BOMItem)
	for _, item := range result.BOM {
		byCapability[item.Capability] = item
	}
	if byCapability["demo"].ResourceID != "demo-ocr" {
		t.Fatalf("expected OCR demo selected, got %+v", byCapability["demo"])
	}
	if byCapability["solution"].ResourceID != "sol-intake" {
		t.Fatalf("expected document solution selected, got %+v", byCapability["solution"])
	}
}

func TestMatchRespectsCategoryPreference(t *testing.T) {
	uc := logisticsUseCase()
	uc.ResourcePreferences = []catalog.Category{catalog.CategoryDemo}

	matcher := NewMatcher(Config{ConfidenceFloor: 0.3})
	result, err := matcher.Match(uc, testSnapshot())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.BOM) != 1 || result.BOM[0].Category != catalog.CategoryDemo {
		t.Fatalf("expected a demo-only BOM, got %+v", result.BOM)
	}
}

func TestMatchNoMatchFound(t *testing.T) {
	uc := &project.UseCase{
		ID:          "uc-2",
		Title:       "Quantum portfolio optimization",
		Description: "Optimize trading portfolios with quantum annealing",
		Industry:    "finance",
		Outcome:     "Faster rebalancing",
	}

	matcher := NewMatcher(Config{ConfidenceFloor: 0.6})
	_, err := matcher.Match(uc, testSnapshot())
	if xerrors.CodeOf(err) != xerrors.CodeNoMatchFound {
		t.Fatalf("expected NO_MATCH_FOUND, got %v", err)
	}

	domainErr, ok := xerrors.From(err)
	if !ok {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Metadata()["query_terms"] == "" {
		t.Fatal("expected query terms in error metadata")
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	// 下限放低，让每个类目都有候选参与排序。
	matcher := NewMatcher(Config{ConfidenceFloor: 0.1})
	snap := testSnapshot()
	uc := logisticsUseCase()

	first, err := matcher.Match(uc, snap)
	if err != nil {
		t.Fatalf("first match: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := matcher.Match(uc, snap)
		if err != nil {
			t.Fatalf("match %d: %v", i, err)
		}
		if !reflect.DeepEqual(first.Candidates, again.Candidates) {
			t.Fatalf("candidate order changed between runs")
		}
		if !reflect.DeepEqual(first.BOM, again.BOM) {
			t.Fatalf("BOM changed between runs")
		}
	}
}

func TestBOMDoesNotReuseResources(t *testing.T) {
	candidates := map[catalog.Category][]project.Candidate{
		catalog.CategoryDemo: {
			{ResourceID: "shared", Title: "shared", Category: catalog.CategoryDemo, Confidence: 0.9},
			{ResourceID: "demo-b", Title: "b", Category: catalog.CategoryDemo, Confidence: 0.5},
		},
		catalog.CategorySolution: {
			{ResourceID: "shared", Title: "shared", Category: catalog.CategorySolution, Confidence: 0.8},
			{ResourceID: "sol-b", Title: "b", Category: catalog.CategorySolution, Confidence: 0.4},
		},
	}

	bom := assembleBOM([]catalog.Category{catalog.CategoryDemo, catalog.CategorySolution}, candidates)
	if len(bom) != 2 {
		t.Fatalf("expected 2 items, got %+v", bom)
	}
	if bom[0].ResourceID != "shared" || bom[1].ResourceID != "sol-b" {
		t.Fatalf("greedy selection must not reuse a resource: %+v", bom)
	}
}

func TestMatchAppendsCloudAndComplianceItems(t *testing.T) {
	uc := logisticsUseCase()
	uc.CloudPreference = "AWS"
	uc.Constraints.Compliance = []string{"GDPR data residency", "gdpr", "SOC2 Type II"}
	uc.ResourcePreferences = []catalog.Category{catalog.CategoryDemo}

	matcher := NewMatcher(Config{ConfidenceFloor: 0.3})
	result, err := matcher.Match(uc, testSnapshot())
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	byResource := make(map[string]project.BOMItem)
	for _, item := range result.BOM {
		byResource[item.ResourceID] = item
	}
	if _, ok := byResource["infra-aws-account"]; !ok {
		t.Fatalf("expected AWS infrastructure in BOM: %+v", result.BOM)
	}
	if item := byResource["infra-aws-cloudwatch"]; item.Required {
		t.Fatalf("monitoring item must be optional: %+v", item)
	}
	if _, ok := byResource["compliance-soc2"]; !ok {
		t.Fatalf("expected SOC2 item in BOM: %+v", result.BOM)
	}
	gdpr := 0
	for _, item := range result.BOM {
		if item.ResourceID == "compliance-gdpr" {
			gdpr++
		}
	}
	if gdpr != 1 {
		t.Fatalf("duplicate compliance requirement must append once, got %d items", gdpr)
	}
}

func TestBuildQueryFiltersStopwords(t *testing.T) {
	uc := &project.UseCase{
		Title:       "We want to extract the fields",
		Description: "OCR pipeline for manifests",
		Industry:    "Logistics",
	}
	query := BuildQuery(uc)

	for _, keyword := range query.Keywords {
		if keyword == "the" || keyword == "we" || keyword == "to" {
			t.Fatalf("stopword leaked into query: %q", keyword)
		}
	}
	if len(query.Tags) != 1 || query.Tags[0] != "logistics" {
		t.Fatalf("unexpected tags: %v", query.Tags)
	}
}
