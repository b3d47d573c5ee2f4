package intent

import "context"

// Action 是路由器能够识别的动作。
type Action string

const (
	ActionStartNewProject Action = "start_new_project"
	ActionResumeProject   Action = "resume_project"
	ActionSubmitIntake    Action = "submit_intake"
	ActionRequestMatch    Action = "request_match"
	ActionApproveOutline  Action = "approve_outline"
	ActionAbandon         Action = "abandon"
	ActionUnknown         Action = "unknown"
)

// Actions 列出全部已知动作，不含 Unknown。
var Actions = []Action{
	ActionStartNewProject,
	ActionResumeProject,
	ActionSubmitIntake,
	ActionRequestMatch,
	ActionApproveOutline,
	ActionAbandon,
}

// ParseAction 将原始字符串解析为动作。
func ParseAction(raw string) (Action, bool) {
	for _, action := range Actions {
		if string(action) == raw {
			return action, true
		}
	}
	return ActionUnknown, false
}

// Request 携带待分类的事件信息。EventType 非空时表示调用方已经
// 明确声明了动作，文本规则直接跳过。
type Request struct {
	EventType string
	Text      string
}

// Decision 是一次分类的结果。
type Decision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// Router 将事件归类为动作。分类失败不应阻断调用方，实现需要在
// 无法判断时返回 Unknown 而不是错误。
type Router interface {
	Classify(ctx context.Context, req Request) (Decision, error)
}
