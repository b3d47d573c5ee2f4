package session

import (
	"context"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
)

// Turn 记录一次会话往返：提交者的输入以及系统识别出的动作。
type Turn struct {
	Seq    int    `json:"seq"`
	Input  string `json:"input"`
	Action string `json:"action,omitempty"`
	At     int64  `json:"at"`
}

// Session 表示一次进行中的接待会话。
type Session struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	ProjectID    string `json:"project_id,omitempty"`
	Turns        []Turn `json:"turns,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	LastActiveAt int64  `json:"last_active_at"`
}

// ErrNotFound 表示会话不存在或已过期。
var ErrNotFound = xerrors.New(xerrors.CodeNotFound, "session not found")

// Store 抽象会话的存取。实现需要在每次写入后刷新过期时间。
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	AppendTurn(ctx context.Context, id string, turn Turn) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func cloneSession(s *Session) *Session {
	clone := *s
	if s.Turns != nil {
		clone.Turns = make([]Turn, len(s.Turns))
		copy(clone.Turns, s.Turns)
	}
	return &clone
}

func stamp(s *Session, now time.Time) {
	if s.CreatedAt == 0 {
		s.CreatedAt = now.Unix()
	}
	s.LastActiveAt = now.Unix()
}
