package project

import "TechHub-Embassy/internal/catalog"

// Candidate 是匹配阶段给出的一个候选资源。
type Candidate struct {
	ResourceID string           `json:"resource_id"`
	Title      string           `json:"title"`
	Category   catalog.Category `json:"category"`
	Confidence float64          `json:"confidence"`
	Rationale  string           `json:"rationale,omitempty"`
}

// BOMItem 是物料清单中的一项资源引用。
type BOMItem struct {
	ResourceID string           `json:"resource_id"`
	Title      string           `json:"title"`
	Category   catalog.Category `json:"category"`
	Capability string           `json:"capability"`
	Quantity   int              `json:"quantity"`
	Required   bool             `json:"required"`
}

// ResourceMatch 保存一次匹配的完整结果。记录一经生成不可变更：
// 重新匹配会产生新的记录并链接到同一项目，保证物料清单的演进可追溯。
type ResourceMatch struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	UseCaseID  string      `json:"use_case_id"`
	Candidates []Candidate `json:"candidates"`
	BOM        []BOMItem   `json:"bom"`
	Notes      string      `json:"notes,omitempty"`
	CreatedAt  int64       `json:"created_at"`
}

func cloneMatch(m *ResourceMatch) *ResourceMatch {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Candidates != nil {
		clone.Candidates = make([]Candidate, len(m.Candidates))
		copy(clone.Candidates, m.Candidates)
	}
	if m.BOM != nil {
		clone.BOM = make([]BOMItem, len(m.BOM))
		copy(clone.BOM, m.BOM)
	}
	return &clone
}
