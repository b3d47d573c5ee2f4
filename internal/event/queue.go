package event

import (
	"context"
	"encoding/json"

	xerrors "TechHub-Embassy/internal/errors"
	"TechHub-Embassy/internal/orchestrator"
)

// Envelope 是队列中流转的事件信封。Attempts 记录该事件被投递的次数，
// 用于限制 busy 重投。
type Envelope struct {
	Event    orchestrator.Event `json:"event"`
	Attempts int                `json:"attempts"`
}

// Encode 将信封序列化为队列载荷。
func (e Envelope) Encode() (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeValidation, err, "编码事件信封失败")
	}
	return string(payload), nil
}

// DecodeEnvelope 解析队列载荷。
func DecodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, xerrors.Wrap(xerrors.CodeValidation, err, "解析事件信封失败")
	}
	return env, nil
}

// Handler 处理来自消息队列的事件载荷。
type Handler func(ctx context.Context, payload string) error

// Producer 负责向队列投递事件。
type Producer interface {
	Publish(ctx context.Context, payload string) error
	Close() error
}

// Consumer 负责从队列中消费事件。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
