package project

import (
	"strings"

	"TechHub-Embassy/internal/catalog"
)

// IntakeMode 区分逐项引导式与一次性完整式的采集方式。
type IntakeMode string

const (
	IntakeModeGuided        IntakeMode = "guided"
	IntakeModeComprehensive IntakeMode = "comprehensive"
)

// Constraints 描述用例的项目约束。
type Constraints struct {
	Budget       string   `json:"budget,omitempty"`
	Timeline     string   `json:"timeline,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Compliance   []string `json:"compliance,omitempty"`
}

// UseCase 捕获一次业务诉求的全部采集信息。定稿后不可变：
// 任何修订都会产生新的版本记录，而不是原地覆盖。
type UseCase struct {
	ID              string      `json:"id"`
	Rev             int         `json:"rev"`
	RevisionOf      string      `json:"revision_of,omitempty"`
	SubmitterID     string      `json:"submitter_id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Industry        string      `json:"industry,omitempty"`
	Outcome         string      `json:"outcome,omitempty"`
	Constraints     Constraints `json:"constraints"`
	CloudPreference string      `json:"cloud_preference,omitempty"`
	SuccessCriteria []string    `json:"success_criteria,omitempty"`
	// ResourcePreferences 列出期望的资源类别，为空表示全部类别都必选。
	ResourcePreferences []catalog.Category `json:"resource_preferences,omitempty"`
	Mode                IntakeMode         `json:"mode"`
	Finalized           bool               `json:"finalized"`
	CreatedAt           int64              `json:"created_at"`
}

// requiredIntakeFields 是定稿所必需的字段集合。
var requiredIntakeFields = []struct {
	name  string
	check func(uc *UseCase) bool
}{
	{"title", func(uc *UseCase) bool { return strings.TrimSpace(uc.Title) != "" }},
	{"description", func(uc *UseCase) bool { return strings.TrimSpace(uc.Description) != "" }},
	{"industry", func(uc *UseCase) bool { return strings.TrimSpace(uc.Industry) != "" }},
	{"outcome", func(uc *UseCase) bool { return strings.TrimSpace(uc.Outcome) != "" }},
}

// MissingFields 返回尚未填写的必填字段。为空表示采集完整。
func (uc *UseCase) MissingFields() []string {
	var missing []string
	for _, field := range requiredIntakeFields {
		if !field.check(uc) {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// Complete 判断采集是否完整。
func (uc *UseCase) Complete() bool {
	return len(uc.MissingFields()) == 0
}

// MandatoryCategories 返回匹配时的必选类别。
func (uc *UseCase) MandatoryCategories() []catalog.Category {
	if len(uc.ResourcePreferences) == 0 {
		out := make([]catalog.Category, len(catalog.Categories))
		copy(out, catalog.Categories)
		return out
	}
	out := make([]catalog.Category, 0, len(uc.ResourcePreferences))
	seen := make(map[catalog.Category]struct{}, len(uc.ResourcePreferences))
	for _, category := range uc.ResourcePreferences {
		if !catalog.IsValidCategory(category) {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		out = append(out, category)
	}
	return out
}

// Amend 基于当前用例生成下一个修订版本。原版本保持不变以保留审计链。
func (uc *UseCase) Amend(newID string, at int64) *UseCase {
	next := *uc
	next.ID = newID
	next.Rev = uc.Rev + 1
	next.RevisionOf = uc.ID
	next.Finalized = false
	next.CreatedAt = at
	next.Constraints.Dependencies = cloneStrings(uc.Constraints.Dependencies)
	next.Constraints.Compliance = cloneStrings(uc.Constraints.Compliance)
	next.SuccessCriteria = cloneStrings(uc.SuccessCriteria)
	if uc.ResourcePreferences != nil {
		next.ResourcePreferences = make([]catalog.Category, len(uc.ResourcePreferences))
		copy(next.ResourcePreferences, uc.ResourcePreferences)
	}
	return &next
}

func cloneUseCase(uc *UseCase) *UseCase {
	if uc == nil {
		return nil
	}
	clone := uc.Amend(uc.ID, uc.CreatedAt)
	clone.Rev = uc.Rev
	clone.RevisionOf = uc.RevisionOf
	clone.Finalized = uc.Finalized
	return clone
}
