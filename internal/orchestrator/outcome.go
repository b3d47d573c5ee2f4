package orchestrator

import (
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/project"
)

// NextAction 告诉调用方下一步应当做什么。
type NextAction string

const (
	// NextClarify 表示无法识别意图，需要访客澄清。
	NextClarify NextAction = "clarify"
	// NextCompleteIntake 表示用例缺少必填字段。
	NextCompleteIntake NextAction = "complete_intake"
	// NextRequestMatch 表示用例已就绪，可以发起匹配。
	NextRequestMatch NextAction = "request_match"
	// NextRefineIntake 表示匹配失败，需要补充或调整用例。
	NextRefineIntake NextAction = "refine_intake"
	// NextReviewMatch 表示匹配完成，等待评审。
	NextReviewMatch NextAction = "review_match"
	// NextPromote 表示方案大纲已确认，可以触发晋升。
	NextPromote NextAction = "promote"
	// NextDone 表示项目已进入终态。
	NextDone NextAction = "done"
)

// Outcome 是一次事件处理的结果。
type Outcome struct {
	NextAction    NextAction     `json:"next_action"`
	ProjectID     string         `json:"project_id,omitempty"`
	ProjectStatus project.Status `json:"project_status,omitempty"`
	// Code 标记工作流层面的失败分支（如 NO_MATCH_FOUND），正常分支为空。
	Code xerrors.Code `json:"code,omitempty"`
	Data any          `json:"data,omitempty"`
}

// Clarification 提示访客补充说明。
type Clarification struct {
	Prompt string `json:"prompt"`
}

// MissingFieldsData 列出 intake 中缺失的必填字段。
type MissingFieldsData struct {
	UseCaseID     string   `json:"use_case_id,omitempty"`
	MissingFields []string `json:"missing_fields"`
}

// MatchData 携带匹配结果。
type MatchData struct {
	Match *project.ResourceMatch `json:"match"`
}

// GapData 描述一次失败的匹配尝试。
type GapData struct {
	Reason     string `json:"reason"`
	QueryTerms string `json:"query_terms,omitempty"`
}

// SummaryData 是 resume 时返回的项目概要。
type SummaryData struct {
	Project *project.Project `json:"project"`
	UseCase *project.UseCase `json:"use_case,omitempty"`
}

// ReportData 是项目晋升时生成的终版报告。
type ReportData struct {
	ProjectID    string               `json:"project_id"`
	Title        string               `json:"title"`
	Industry     string               `json:"industry,omitempty"`
	Outcome      string               `json:"outcome,omitempty"`
	BOM          []project.BOMItem    `json:"bom,omitempty"`
	History      []project.Transition `json:"history,omitempty"`
	MatchCount   int                  `json:"match_count"`
	GeneratedAt  int64                `json:"generated_at"`
	PromotedInto string               `json:"promoted_into"`
}
