package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"TechHub-Embassy/internal/completion"
	"TechHub-Embassy/pkg/logger"
)

const classifySystemPrompt = `You classify visitor messages for a technology
showcase concierge. Reply with exactly one of: start_new_project,
resume_project, submit_intake, request_match, approve_outline, abandon,
unknown. Reply with the action name only.`

// ModelRouter 先使用规则路由，规则无法判断时交给补全模型。模型出错
// 或输出无法解析时回退为 Unknown，分类永远不会让调用方失败。
type ModelRouter struct {
	rules  *RuleRouter
	client completion.Client
	log    *slog.Logger
}

// NewModelRouter 创建模型辅助路由器。
func NewModelRouter(rules *RuleRouter, client completion.Client) *ModelRouter {
	return &ModelRouter{
		rules:  rules,
		client: client,
		log:    logger.Named("intent"),
	}
}

// Classify 实现 Router 接口。
func (r *ModelRouter) Classify(ctx context.Context, req Request) (Decision, error) {
	decision, err := r.rules.Classify(ctx, req)
	if err == nil && decision.Action != ActionUnknown {
		return decision, nil
	}
	if r.client == nil || strings.TrimSpace(req.Text) == "" {
		return Decision{Action: ActionUnknown}, nil
	}

	resp, err := r.client.Complete(ctx, completion.Request{
		System: classifySystemPrompt,
		Prompt: fmt.Sprintf("Visitor message: %q", req.Text),
	})
	if err != nil {
		r.log.Warn("意图模型调用失败，回退为 unknown", "error", err)
		return Decision{Action: ActionUnknown}, nil
	}

	raw := strings.ToLower(strings.TrimSpace(resp.Text))
	if action, ok := ParseAction(raw); ok {
		return Decision{Action: action, Confidence: 0.75}, nil
	}
	r.log.Warn("意图模型输出无法解析", "output", resp.Text)
	return Decision{Action: ActionUnknown}, nil
}

var _ Router = (*ModelRouter)(nil)
