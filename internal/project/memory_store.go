package project

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
)

// MemoryStore 以内存方式保存项目状态，主要用于测试与本地开发。
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*Project
	useCases map[string]*UseCase
	matches  map[string]*ResourceMatch
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*Project),
		useCases: make(map[string]*UseCase),
		matches:  make(map[string]*ResourceMatch),
	}
}

// CreateProject 实现 Store 接口。
func (m *MemoryStore) CreateProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		return xerrors.New(xerrors.CodeValidation, "project 不能为空")
	}
	if p.ID == "" {
		return xerrors.New(xerrors.CodeValidation, "项目 ID 不能为空")
	}
	if _, ok := m.projects[p.ID]; ok {
		return ErrConflict
	}
	now := time.Now().Unix()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Version == 0 {
		p.Version = 1
	}
	m.projects[p.ID] = cloneProject(p)
	return nil
}

// Load 返回项目。
func (m *MemoryStore) Load(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProject(p), nil
}

// Save 按乐观锁语义写入项目。版本不匹配时返回 ErrVersionConflict。
func (m *MemoryStore) Save(_ context.Context, p *Project, expectedVersion int64) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		return nil, xerrors.New(xerrors.CodeValidation, "project 不能为空")
	}
	stored, ok := m.projects[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := cloneProject(p)
	next.Version = expectedVersion + 1
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().Unix()
	m.projects[p.ID] = next
	return cloneProject(next), nil
}

// AppendMatch 原子地保存匹配记录并将其链接到项目。匹配记录不可变，
// 重复的匹配 id 视为冲突。
func (m *MemoryStore) AppendMatch(_ context.Context, projectID string, match *ResourceMatch, expectedVersion int64) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match == nil || match.ID == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "匹配记录不能为空")
	}
	stored, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	if _, ok := m.matches[match.ID]; ok {
		return nil, ErrConflict
	}
	record := cloneMatch(match)
	record.ProjectID = projectID
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	m.matches[match.ID] = record
	stored.MatchIDs = append(stored.MatchIDs, match.ID)
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now().Unix()
	return cloneProject(stored), nil
}

// PutUseCase 保存用例。已定稿的用例不允许覆盖。
func (m *MemoryStore) PutUseCase(_ context.Context, uc *UseCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uc == nil || uc.ID == "" {
		return xerrors.New(xerrors.CodeValidation, "用例 ID 不能为空")
	}
	if existing, ok := m.useCases[uc.ID]; ok && existing.Finalized {
		return xerrors.New(CodeUseCaseFinal, "")
	}
	if uc.CreatedAt == 0 {
		uc.CreatedAt = time.Now().Unix()
	}
	m.useCases[uc.ID] = cloneUseCase(uc)
	return nil
}

// GetUseCase 返回用例。
func (m *MemoryStore) GetUseCase(_ context.Context, id string) (*UseCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uc, ok := m.useCases[id]
	if !ok {
		return nil, ErrUseCaseNotFound
	}
	return cloneUseCase(uc), nil
}

// GetMatch 返回匹配记录。
func (m *MemoryStore) GetMatch(_ context.Context, id string) (*ResourceMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(match), nil
}

// ListMatches 按追加顺序返回项目的全部匹配记录。
func (m *MemoryStore) ListMatches(_ context.Context, projectID string) ([]*ResourceMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	results := make([]*ResourceMatch, 0, len(p.MatchIDs))
	for _, id := range p.MatchIDs {
		if match, ok := m.matches[id]; ok {
			results = append(results, cloneMatch(match))
		}
	}
	return results, nil
}

// List 返回符合过滤条件的项目。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		if !matchesListFilters(p, opts) {
			continue
		}
		results = append(results, cloneProject(p))
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.Order == SortByUpdatedAsc {
			if results[i].UpdatedAt == results[j].UpdatedAt {
				return results[i].ID < results[j].ID
			}
			return results[i].UpdatedAt < results[j].UpdatedAt
		}
		if results[i].UpdatedAt == results[j].UpdatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].UpdatedAt > results[j].UpdatedAt
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return nil, nil
		}
		results = results[opts.Offset:]
	}
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的项目数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := Stats{}
	for _, p := range m.projects {
		if !matchesListFilters(p, opts) {
			continue
		}
		stats.count(p.Status)
		if p.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = p.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (p.UpdatedAt != 0 && p.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = p.UpdatedAt
		}
	}
	if stats.Total == 0 {
		stats.OldestUpdatedAt = 0
		stats.NewestUpdatedAt = 0
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func cloneProject(p *Project) *Project {
	clone := *p
	clone.MatchIDs = cloneStrings(p.MatchIDs)
	if p.History != nil {
		clone.History = make([]Transition, len(p.History))
		copy(clone.History, p.History)
	}
	return &clone
}

func matchesListFilters(p *Project, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if p.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.Owner != "" && p.OwnerID != opts.Owner {
		return false
	}
	if opts.UpdatedGTE > 0 && p.UpdatedAt < opts.UpdatedGTE {
		return false
	}
	if opts.UpdatedLTE > 0 && p.UpdatedAt > opts.UpdatedLTE {
		return false
	}
	return true
}

// ensure interface compliance at compile time
var _ Store = (*MemoryStore)(nil)
