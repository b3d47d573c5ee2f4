package event

import (
	"context"
	"log/slog"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/observability/alerting"
	"TechHub-Embassy/internal/orchestrator"
	"TechHub-Embassy/pkg/logger"
)

// Dispatcher 定义了中继所需的编排能力。
type Dispatcher interface {
	Handle(ctx context.Context, ev orchestrator.Event) (*orchestrator.Outcome, error)
}

// Relay 从队列消费事件信封并交给编排器处理。收到 busy 信号的事件
// 重投一次，之后放弃并告警，避免在队列里无限打转。
type Relay struct {
	dispatcher  Dispatcher
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// RelayOption 定义可选配置。
type RelayOption func(*Relay)

// WithRelayLogger 指定日志输出。
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) RelayOption {
	return func(r *Relay) {
		if workers > 0 {
			r.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) RelayOption {
	return func(r *Relay) {
		r.alerter = dispatcher
	}
}

// NewRelay 构造 Relay。
func NewRelay(dispatcher Dispatcher, consumer Consumer, producer Producer, opts ...RelayOption) *Relay {
	r := &Relay{
		dispatcher:  dispatcher,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.workerCount <= 0 {
		r.workerCount = 1
	}
	return r
}

// Start 启动事件处理循环。
func (r *Relay) Start(ctx context.Context) error {
	if r.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置事件消费者")
	}
	if r.dispatcher == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置编排器")
	}
	return r.consumer.Consume(ctx, r.workerCount, r.handle)
}

func (r *Relay) handle(ctx context.Context, payload string) error {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		logger.L().Error("丢弃无法解析的事件", slog.Any("error", err))
		return nil
	}

	outcome, handleErr := r.dispatcher.Handle(ctx, env.Event)
	if handleErr == nil {
		logger.Audit().Info("事件处理完成",
			slog.String("event_type", env.Event.Type),
			slog.String("project_id", outcome.ProjectID),
			slog.String("status", string(outcome.ProjectStatus)),
			slog.String("next_action", string(outcome.NextAction)),
			slog.String("code", string(outcome.Code)),
		)
		return nil
	}

	code := xerrors.CodeOf(handleErr)
	if code == xerrors.CodeProjectBusy && env.Attempts == 0 {
		env.Attempts++
		requeued, encodeErr := env.Encode()
		if encodeErr == nil {
			if pubErr := r.producer.Publish(ctx, requeued); pubErr == nil {
				r.logDebug("busy 事件已重投",
					slog.String("event_type", env.Event.Type),
					slog.String("project_id", env.Event.ProjectID),
				)
				return nil
			}
		}
	}

	logger.Audit().Warn("事件处理失败",
		slog.String("event_type", env.Event.Type),
		slog.String("project_id", env.Event.ProjectID),
		slog.String("error_code", string(code)),
		slog.String("error", handleErr.Error()),
		slog.Int("attempts", env.Attempts),
	)
	if xerrors.ShouldAlert(handleErr) || code == xerrors.CodeProjectBusy {
		r.emitAlert(ctx, env, code, handleErr)
	}
	return nil
}

func (r *Relay) logDebug(msg string, attrs ...slog.Attr) {
	if r.logger != nil {
		args := make([]any, len(attrs))
		for i, attr := range attrs {
			args[i] = attr
		}
		r.logger.Debug(msg, args...)
	}
}

func (r *Relay) emitAlert(ctx context.Context, env Envelope, code xerrors.Code, cause error) {
	if r == nil || r.alerter == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	if cause != nil {
		message = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		ProjectID:  env.Event.ProjectID,
		EventType:  env.Event.Type,
		Attempts:   env.Attempts,
		MaxRetries: 1,
		OccurredAt: time.Now(),
	}
	if err := r.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败",
			slog.Any("error", err),
			slog.String("project_id", env.Event.ProjectID),
		)
	}
}
