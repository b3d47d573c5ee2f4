package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"TechHub-Embassy/internal/catalog"
	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/intent"
	"TechHub-Embassy/internal/match"
	"TechHub-Embassy/internal/observability/alerting"
	"TechHub-Embassy/internal/project"
	"TechHub-Embassy/internal/session"
	"TechHub-Embassy/pkg/logger"
)

// Config 控制编排器的重试与超时行为。
type Config struct {
	// ConflictRetries 是版本冲突时的最大重载重试次数。
	ConflictRetries int
	// MatchTimeout 是一次匹配允许的最长耗时。
	MatchTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ConflictRetries <= 0 {
		c.ConflictRetries = 3
	}
	if c.MatchTimeout <= 0 {
		c.MatchTimeout = 10 * time.Second
	}
}

// Matcher 是编排器对资源匹配器的依赖。*match.Matcher 实现了该接口。
type Matcher interface {
	Match(uc *project.UseCase, snap *catalog.Snapshot) (*project.ResourceMatch, error)
}

var _ Matcher = (*match.Matcher)(nil)

// Orchestrator 将入站事件应用到项目状态机。
type Orchestrator struct {
	cfg      Config
	store    project.Store
	sessions session.Store
	index    *catalog.Index
	matcher  Matcher
	router   intent.Router
	guard    *keyedGuard
	alerts   alerting.Dispatcher
	log      *slog.Logger
}

// New 创建编排器。alerts 可以为 nil。
func New(cfg Config, store project.Store, sessions session.Store, index *catalog.Index, matcher Matcher, router intent.Router, alerts alerting.Dispatcher) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		index:    index,
		matcher:  matcher,
		router:   router,
		guard:    newKeyedGuard(),
		alerts:   alerts,
		log:      logger.Named("orchestrator"),
	}
}

// Handle 处理一个入站事件并返回结果。同一项目同一时刻只允许一个
// 在途事件，拿不到名额的事件收到 PROJECT_BUSY。
func (o *Orchestrator) Handle(ctx context.Context, ev Event) (*Outcome, error) {
	decision, err := o.router.Classify(ctx, intent.Request{EventType: ev.Type, Text: ev.Text})
	if err != nil {
		// 分类失败按 Unknown 处理，不阻断事件。
		decision = intent.Decision{Action: intent.ActionUnknown}
	}

	o.recordTurn(ctx, ev, decision.Action)

	if decision.Action == intent.ActionUnknown {
		return &Outcome{
			NextAction: NextClarify,
			ProjectID:  ev.ProjectID,
			Data: Clarification{
				Prompt: "请说明您要做什么：开始新项目、继续已有项目、提交用例、发起匹配、确认大纲或放弃项目。",
			},
		}, nil
	}

	if decision.Action == intent.ActionStartNewProject {
		return o.startProject(ctx, ev)
	}

	if ev.ProjectID == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "该事件需要携带项目 ID")
	}
	if !o.guard.acquire(ev.ProjectID) {
		return nil, xerrors.New(xerrors.CodeProjectBusy,
			fmt.Sprintf("项目 %s 正在处理另一事件", ev.ProjectID))
	}
	defer o.guard.release(ev.ProjectID)

	switch decision.Action {
	case intent.ActionResumeProject:
		return o.resumeProject(ctx, ev)
	case intent.ActionSubmitIntake:
		return o.submitIntake(ctx, ev)
	case intent.ActionRequestMatch:
		return o.requestMatch(ctx, ev)
	case intent.ActionApproveOutline:
		return o.approveOutline(ctx, ev)
	case intent.ActionAbandon:
		return o.abandon(ctx, ev)
	default:
		return nil, xerrors.New(xerrors.CodeValidation, fmt.Sprintf("不支持的动作 %s", decision.Action))
	}
}

func (o *Orchestrator) startProject(ctx context.Context, ev Event) (*Outcome, error) {
	var payload StartPayload
	if err := decodePayload(ev, &payload); err != nil {
		return nil, err
	}

	p := &project.Project{
		ID:      uuid.NewString(),
		OwnerID: ev.ActorID,
		Title:   payload.Title,
		Status:  project.StatusDraft,
	}
	if err := o.store.CreateProject(ctx, p); err != nil {
		return nil, o.storageFailure(ev, err, "创建项目失败")
	}

	if ev.SessionID != "" && o.sessions != nil {
		if s, err := o.sessions.Get(ctx, ev.SessionID); err == nil {
			s.ProjectID = p.ID
			_ = o.sessions.Put(ctx, s)
		}
	}

	o.log.Info("项目已创建", slog.String("project_id", p.ID), slog.String("owner", p.OwnerID))
	return &Outcome{
		NextAction:    NextCompleteIntake,
		ProjectID:     p.ID,
		ProjectStatus: p.Status,
		Data:          SummaryData{Project: p},
	}, nil
}

func (o *Orchestrator) resumeProject(ctx context.Context, ev Event) (*Outcome, error) {
	p, err := o.store.Load(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}

	summary := SummaryData{Project: p}
	if p.UseCaseID != "" {
		if uc, err := o.store.GetUseCase(ctx, p.UseCaseID); err == nil {
			summary.UseCase = uc
		}
	}

	return &Outcome{
		NextAction:    nextActionFor(p.Status),
		ProjectID:     p.ID,
		ProjectStatus: p.Status,
		Data:          summary,
	}, nil
}

func (o *Orchestrator) submitIntake(ctx context.Context, ev Event) (*Outcome, error) {
	var payload IntakePayload
	if err := decodePayload(ev, &payload); err != nil {
		return nil, err
	}

	p, err := o.store.Load(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}
	if p.Status != project.StatusDraft && p.Status != project.StatusIntakeComplete {
		return nil, xerrors.New(xerrors.CodeInvalidTransition,
			fmt.Sprintf("项目处于 %s 状态，无法提交用例", p.Status))
	}

	now := time.Now().Unix()
	uc := payload.toUseCase(uuid.NewString(), ev.ActorID, now)

	if missing := uc.MissingFields(); len(missing) > 0 {
		// 缺字段是正常的工作流分支，不是错误。草稿之外的状态不落盘，
		// 也不返回悬空的用例 id。
		data := MissingFieldsData{MissingFields: missing}
		if p.Status == project.StatusDraft {
			if err := o.store.PutUseCase(ctx, uc); err != nil {
				return nil, o.storageFailure(ev, err, "保存草稿用例失败")
			}
			if _, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
				p.UseCaseID = uc.ID
				return nil
			}); err != nil {
				return nil, err
			}
			data.UseCaseID = uc.ID
		}
		return &Outcome{
			NextAction:    NextCompleteIntake,
			ProjectID:     p.ID,
			ProjectStatus: p.Status,
			Data:          data,
		}, nil
	}

	// 重新提交时生成新修订，历史用例保持可追溯。
	if p.UseCaseID != "" {
		if prev, err := o.store.GetUseCase(ctx, p.UseCaseID); err == nil {
			uc.Rev = prev.Rev + 1
			uc.RevisionOf = prev.ID
		}
	}
	uc.Finalized = true
	if err := o.store.PutUseCase(ctx, uc); err != nil {
		return nil, o.storageFailure(ev, err, "保存用例失败")
	}

	updated, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
		p.UseCaseID = uc.ID
		if p.Status == project.StatusDraft {
			return p.Advance(project.StatusIntakeComplete, ev.ActorID, "intake complete", now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		NextAction:    NextRequestMatch,
		ProjectID:     updated.ID,
		ProjectStatus: updated.Status,
		Data:          SummaryData{Project: updated, UseCase: uc},
	}, nil
}

func (o *Orchestrator) requestMatch(ctx context.Context, ev Event) (*Outcome, error) {
	p, err := o.store.Load(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case project.StatusMatched:
		// 重放同一事件返回已有结果，不重复匹配。
		return o.reviewOutcome(ctx, p)
	case project.StatusIntakeComplete:
		if p.UseCaseID == "" {
			return nil, xerrors.New(xerrors.CodeValidation, "项目没有关联用例")
		}
		if p, err = o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
			return p.Advance(project.StatusMatching, ev.ActorID, "", time.Now().Unix())
		}); err != nil {
			return nil, err
		}
	case project.StatusMatching:
		// 上一次处理中断后恢复：已有针对当前用例的匹配直接完成流转。
		if recovered, ok, err := o.recoverMatching(ctx, ev, p); err != nil {
			return nil, err
		} else if ok {
			return recovered, nil
		}
	default:
		return nil, xerrors.New(xerrors.CodeInvalidTransition,
			fmt.Sprintf("项目处于 %s 状态，无法发起匹配", p.Status))
	}

	uc, err := o.store.GetUseCase(ctx, p.UseCaseID)
	if err != nil {
		return nil, err
	}

	result, matchErr := o.runMatch(ctx, uc)
	if matchErr != nil {
		return o.rollbackMatching(ctx, ev, p.ID, matchErr)
	}

	result.ID = uuid.NewString()
	result.ProjectID = p.ID
	result.CreatedAt = time.Now().Unix()

	p, err = o.appendMatchWithRetry(ctx, ev, p.ID, result)
	if err != nil {
		return nil, err
	}
	p, err = o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
		return p.Advance(project.StatusMatched, ev.ActorID, "match "+result.ID, time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("匹配完成",
		slog.String("project_id", p.ID),
		slog.String("match_id", result.ID),
		slog.Int("candidates", len(result.Candidates)),
		slog.Int("bom_items", len(result.BOM)),
	)
	return &Outcome{
		NextAction:    NextReviewMatch,
		ProjectID:     p.ID,
		ProjectStatus: p.Status,
		Data:          MatchData{Match: result},
	}, nil
}

// runMatch 在时间预算内执行匹配。匹配是纯计算，超时后结果被丢弃，
// 不会有半成品落库。
func (o *Orchestrator) runMatch(ctx context.Context, uc *project.UseCase) (*project.ResourceMatch, error) {
	snapshot := o.index.Snapshot()

	type matchResult struct {
		match *project.ResourceMatch
		err   error
	}
	done := make(chan matchResult, 1)
	go func() {
		m, err := o.matcher.Match(uc, snapshot)
		done <- matchResult{match: m, err: err}
	}()

	timer := time.NewTimer(o.cfg.MatchTimeout)
	defer timer.Stop()

	select {
	case result := <-done:
		return result.match, result.err
	case <-ctx.Done():
		return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "匹配被取消")
	case <-timer.C:
		return nil, xerrors.New(xerrors.CodeTimeout, "匹配超出时间预算")
	}
}

// rollbackMatching 在匹配失败后把项目恢复到 IntakeComplete，并把失败
// 原因作为引导返回给调用方。
func (o *Orchestrator) rollbackMatching(ctx context.Context, ev Event, projectID string, matchErr error) (*Outcome, error) {
	code := xerrors.CodeOf(matchErr)
	note := "no match found"
	if code == xerrors.CodeTimeout {
		note = "matching timed out"
	}

	p, err := o.updateProject(ctx, ev, projectID, func(p *project.Project) error {
		return p.Advance(project.StatusIntakeComplete, "system", note, time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}

	gap := GapData{Reason: matchErr.Error()}
	if domainErr, ok := xerrors.From(matchErr); ok {
		gap.Reason = domainErr.Message()
		gap.QueryTerms = domainErr.Metadata()["query_terms"]
	}

	o.log.Warn("匹配失败，项目已回退",
		slog.String("project_id", projectID),
		slog.String("code", string(code)),
	)
	return &Outcome{
		NextAction:    NextRefineIntake,
		ProjectID:     p.ID,
		ProjectStatus: p.Status,
		Code:          code,
		Data:          gap,
	}, nil
}

// recoverMatching 检查 Matching 状态的项目是否已经有针对当前用例的
// 匹配记录。有则补上状态流转并返回结果，保证事件重放不产生重复匹配。
func (o *Orchestrator) recoverMatching(ctx context.Context, ev Event, p *project.Project) (*Outcome, bool, error) {
	matches, err := o.store.ListMatches(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	for i := len(matches) - 1; i >= 0; i-- {
		if matches[i].UseCaseID != p.UseCaseID {
			continue
		}
		result := matches[i]
		updated, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
			return p.Advance(project.StatusMatched, "system", "recovered match "+result.ID, time.Now().Unix())
		})
		if err != nil {
			return nil, false, err
		}
		return &Outcome{
			NextAction:    NextReviewMatch,
			ProjectID:     updated.ID,
			ProjectStatus: updated.Status,
			Data:          MatchData{Match: result},
		}, true, nil
	}
	return nil, false, nil
}

func (o *Orchestrator) reviewOutcome(ctx context.Context, p *project.Project) (*Outcome, error) {
	latest := p.LatestMatchID()
	if latest == "" {
		return nil, xerrors.New(xerrors.CodeNotFound, "项目没有匹配记录")
	}
	result, err := o.store.GetMatch(ctx, latest)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		NextAction:    NextReviewMatch,
		ProjectID:     p.ID,
		ProjectStatus: p.Status,
		Data:          MatchData{Match: result},
	}, nil
}

func (o *Orchestrator) approveOutline(ctx context.Context, ev Event) (*Outcome, error) {
	p, err := o.store.Load(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case project.StatusMatched:
		updated, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
			return p.Advance(project.StatusOutlined, ev.ActorID, "outline approved", time.Now().Unix())
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{
			NextAction:    NextPromote,
			ProjectID:     updated.ID,
			ProjectStatus: updated.Status,
			Data:          SummaryData{Project: updated},
		}, nil

	case project.StatusOutlined:
		updated, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
			return p.Advance(project.StatusPromoted, ev.ActorID, "promoted to catalog corpus", time.Now().Unix())
		})
		if err != nil {
			return nil, err
		}
		report, err := o.buildReport(ctx, updated)
		if err != nil {
			return nil, err
		}
		o.log.Info("项目已晋升", slog.String("project_id", updated.ID))
		return &Outcome{
			NextAction:    NextDone,
			ProjectID:     updated.ID,
			ProjectStatus: updated.Status,
			Data:          report,
		}, nil

	default:
		return nil, xerrors.New(xerrors.CodeInvalidTransition,
			fmt.Sprintf("项目处于 %s 状态，无法确认大纲", p.Status))
	}
}

func (o *Orchestrator) abandon(ctx context.Context, ev Event) (*Outcome, error) {
	p, err := o.store.Load(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}
	if p.Status == project.StatusAbandoned {
		// 重复放弃是幂等操作。
		return &Outcome{NextAction: NextDone, ProjectID: p.ID, ProjectStatus: p.Status}, nil
	}

	updated, err := o.updateProject(ctx, ev, p.ID, func(p *project.Project) error {
		return p.Advance(project.StatusAbandoned, ev.ActorID, "abandoned", time.Now().Unix())
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		NextAction:    NextDone,
		ProjectID:     updated.ID,
		ProjectStatus: updated.Status,
	}, nil
}

// buildReport 为晋升的项目生成终版报告。
func (o *Orchestrator) buildReport(ctx context.Context, p *project.Project) (ReportData, error) {
	report := ReportData{
		ProjectID:    p.ID,
		Title:        p.Title,
		History:      p.History,
		MatchCount:   len(p.MatchIDs),
		GeneratedAt:  time.Now().Unix(),
		PromotedInto: "catalog corpus",
	}
	if p.UseCaseID != "" {
		if uc, err := o.store.GetUseCase(ctx, p.UseCaseID); err == nil {
			report.Industry = uc.Industry
			report.Outcome = uc.Outcome
			if report.Title == "" {
				report.Title = uc.Title
			}
		}
	}
	if latest := p.LatestMatchID(); latest != "" {
		if result, err := o.store.GetMatch(ctx, latest); err == nil {
			report.BOM = result.BOM
		}
	}
	return report, nil
}

// updateProject 执行加载-修改-保存循环。版本冲突时重载重试，超出
// 上限后上报 CONCURRENT_MODIFICATION。
func (o *Orchestrator) updateProject(ctx context.Context, ev Event, id string, mutate func(*project.Project) error) (*project.Project, error) {
	var lastErr error
	for attempt := 0; attempt < o.cfg.ConflictRetries; attempt++ {
		p, err := o.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(p); err != nil {
			return nil, err
		}
		saved, err := o.store.Save(ctx, p, p.Version)
		if err == nil {
			return saved, nil
		}
		if !project.IsVersionConflict(err) {
			return nil, o.storageFailure(ev, err, "保存项目失败")
		}
		lastErr = err
	}

	o.alert(ev, id, xerrors.CodeConcurrentModification, "版本冲突重试次数耗尽")
	return nil, xerrors.Wrap(xerrors.CodeConcurrentModification, lastErr,
		fmt.Sprintf("项目 %s 版本冲突重试 %d 次后失败", id, o.cfg.ConflictRetries))
}

// appendMatchWithRetry 与 updateProject 相同的冲突语义，作用于
// AppendMatch 写入。
func (o *Orchestrator) appendMatchWithRetry(ctx context.Context, ev Event, id string, result *project.ResourceMatch) (*project.Project, error) {
	var lastErr error
	for attempt := 0; attempt < o.cfg.ConflictRetries; attempt++ {
		p, err := o.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err := o.store.AppendMatch(ctx, id, result, p.Version)
		if err == nil {
			return updated, nil
		}
		if !project.IsVersionConflict(err) {
			return nil, o.storageFailure(ev, err, "保存匹配记录失败")
		}
		lastErr = err
	}

	o.alert(ev, id, xerrors.CodeConcurrentModification, "版本冲突重试次数耗尽")
	return nil, xerrors.Wrap(xerrors.CodeConcurrentModification, lastErr,
		fmt.Sprintf("项目 %s 匹配写入重试 %d 次后失败", id, o.cfg.ConflictRetries))
}

func (o *Orchestrator) recordTurn(ctx context.Context, ev Event, action intent.Action) {
	if ev.SessionID == "" || o.sessions == nil {
		return
	}
	turn := session.Turn{Input: ev.Text, Action: string(action)}
	if _, err := o.sessions.AppendTurn(ctx, ev.SessionID, turn); err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeNotFound {
			s := &session.Session{ID: ev.SessionID, OwnerID: ev.ActorID, ProjectID: ev.ProjectID}
			if putErr := o.sessions.Put(ctx, s); putErr == nil {
				_, _ = o.sessions.AppendTurn(ctx, ev.SessionID, turn)
			}
			return
		}
		o.log.Warn("记录会话失败", slog.String("session_id", ev.SessionID), "error", err)
	}
}

func (o *Orchestrator) storageFailure(ev Event, err error, message string) error {
	if xerrors.CodeOf(err) == xerrors.CodeStorageFailure {
		o.alert(ev, ev.ProjectID, xerrors.CodeStorageFailure, message)
	}
	if _, ok := xerrors.From(err); ok {
		return err
	}
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, message)
}

func (o *Orchestrator) alert(ev Event, projectID string, code xerrors.Code, message string) {
	if o.alerts == nil {
		return
	}
	_ = o.alerts.Notify(context.Background(), alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   xerrors.AttributesOf(code).Severity,
		ProjectID:  projectID,
		EventType:  ev.Type,
		MaxRetries: o.cfg.ConflictRetries,
		OccurredAt: time.Now(),
	})
}

// nextActionFor 根据项目当前状态推导下一步引导。
func nextActionFor(status project.Status) NextAction {
	switch status {
	case project.StatusDraft:
		return NextCompleteIntake
	case project.StatusIntakeComplete:
		return NextRequestMatch
	case project.StatusMatching:
		return NextRequestMatch
	case project.StatusMatched:
		return NextReviewMatch
	case project.StatusOutlined:
		return NextPromote
	default:
		return NextDone
	}
}
