package intent

import (
	"context"
	"strings"
)

// 每个动作的关键词表。命中的关键词越多，置信度越高。
var actionKeywords = map[Action][]string{
	ActionStartNewProject: {"new project", "start a project", "kick off", "begin", "start over", "onboard"},
	ActionResumeProject:   {"resume", "continue", "pick up", "where we left", "back to my project"},
	ActionSubmitIntake:    {"use case", "intake", "requirements", "my goal is", "we want to", "we need", "submit"},
	ActionRequestMatch:    {"match", "find resources", "recommend", "what demos", "catalog", "bill of materials"},
	ActionApproveOutline:  {"approve", "looks good", "sign off", "accept the outline", "go ahead", "proceed"},
	ActionAbandon:         {"abandon", "cancel", "drop the project", "stop", "not interested", "give up"},
}

// RuleRouter 基于关键词表进行分类。
type RuleRouter struct {
	threshold float64
}

// NewRuleRouter 创建规则路由器。threshold 非正时使用默认值 0.5。
func NewRuleRouter(threshold float64) *RuleRouter {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &RuleRouter{threshold: threshold}
}

// Classify 实现 Router 接口。显式声明的事件类型绕过文本规则。
func (r *RuleRouter) Classify(_ context.Context, req Request) (Decision, error) {
	if req.EventType != "" {
		if action, ok := ParseAction(req.EventType); ok {
			return Decision{Action: action, Confidence: 1}, nil
		}
		return Decision{Action: ActionUnknown}, nil
	}

	text := strings.ToLower(req.Text)
	if strings.TrimSpace(text) == "" {
		return Decision{Action: ActionUnknown}, nil
	}

	best := Decision{Action: ActionUnknown}
	for _, action := range Actions {
		keywords := actionKeywords[action]
		hits := 0
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		// 命中一个关键词给基础分，额外命中逐步提高置信度。
		confidence := 0.6 + 0.2*float64(hits-1)
		if confidence > 1 {
			confidence = 1
		}
		if confidence > best.Confidence {
			best = Decision{Action: action, Confidence: confidence}
		}
	}

	if best.Confidence < r.threshold {
		return Decision{Action: ActionUnknown, Confidence: best.Confidence}, nil
	}
	return best, nil
}

var _ Router = (*RuleRouter)(nil)
