package orchestrator

import (
	"encoding/json"
	"strings"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/project"
)

// Event 是来自会话层或事件队列的入站事件。Payload 的结构由事件
// 类型决定，在进入状态机前完成校验。
type Event struct {
	Type      string          `json:"event_type"`
	SessionID string          `json:"session_id,omitempty"`
	ProjectID string          `json:"project_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// IntakePayload 是 submit_intake 事件的载荷。
type IntakePayload struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Industry            string   `json:"industry"`
	Outcome             string   `json:"outcome"`
	CloudPreference     string   `json:"cloud_preference,omitempty"`
	SuccessCriteria     []string `json:"success_criteria,omitempty"`
	Budget              string   `json:"budget,omitempty"`
	Timeline            string   `json:"timeline,omitempty"`
	Dependencies        []string `json:"dependencies,omitempty"`
	Compliance          []string `json:"compliance,omitempty"`
	ResourcePreferences []string `json:"resource_preferences,omitempty"`
	Mode                string   `json:"mode,omitempty"`
}

// StartPayload 是 start_new_project 事件的载荷。
type StartPayload struct {
	Title string `json:"title,omitempty"`
}

// decodePayload 将事件载荷解析到目标结构。空载荷解析为零值。
func decodePayload(ev Event, dest any) error {
	if len(ev.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(ev.Payload, dest); err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "事件载荷格式不正确")
	}
	return nil
}

// toUseCase 将 intake 载荷转换为用例。字段完整性由调用方检查。
func (p IntakePayload) toUseCase(id, submitter string, at int64) *project.UseCase {
	mode := project.IntakeModeComprehensive
	if strings.EqualFold(p.Mode, string(project.IntakeModeGuided)) {
		mode = project.IntakeModeGuided
	}

	var prefs []catalog.Category
	for _, raw := range p.ResourcePreferences {
		if category, ok := catalog.ParseCategory(raw); ok {
			prefs = append(prefs, category)
		}
	}

	return &project.UseCase{
		ID:          id,
		Rev:         1,
		SubmitterID: submitter,
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		Industry:    strings.TrimSpace(p.Industry),
		Outcome:     strings.TrimSpace(p.Outcome),
		Constraints: project.Constraints{
			Budget:       p.Budget,
			Timeline:     p.Timeline,
			Dependencies: p.Dependencies,
			Compliance:   p.Compliance,
		},
		CloudPreference:     p.CloudPreference,
		SuccessCriteria:     p.SuccessCriteria,
		ResourcePreferences: prefs,
		Mode:                mode,
		CreatedAt:           at,
	}
}
