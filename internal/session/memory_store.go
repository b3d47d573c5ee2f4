package session

import (
	"context"
	"sync"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
)

// MemoryStore 以内存方式保存会话，超过 TTL 未活跃的会话在读取时惰性清理。
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore 创建 MemoryStore。ttl 为零时会话永不过期。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put 实现 Store 接口。
func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return xerrors.New(xerrors.CodeValidation, "会话 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp(s, m.now())
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

// Get 返回会话，过期的会话视为不存在。
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(id)
	if err != nil {
		return nil, err
	}
	return cloneSession(s), nil
}

// AppendTurn 追加一条会话记录并刷新活跃时间。
func (m *MemoryStore) AppendTurn(_ context.Context, id string, turn Turn) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(id)
	if err != nil {
		return nil, err
	}
	turn.Seq = len(s.Turns) + 1
	if turn.At == 0 {
		turn.At = m.now().Unix()
	}
	s.Turns = append(s.Turns, turn)
	s.LastActiveAt = m.now().Unix()
	return cloneSession(s), nil
}

// Delete 删除会话。
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

// locked 要求调用方已持有锁。
func (m *MemoryStore) locked(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && m.now().Sub(time.Unix(s.LastActiveAt, 0)) > m.ttl {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return s, nil
}

var _ Store = (*MemoryStore)(nil)
