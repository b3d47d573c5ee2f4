package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
)

// Snapshot 是目录在某一时刻的不可变视图。匹配操作持有的快照
// 不会被后续刷新影响。
type Snapshot struct {
	byCategory map[Category][]Entry
	byID       map[string]Entry
	builtAt    int64
	total      int
}

// BuildSnapshot 从条目列表构建快照。各类别内部按更新时间倒序、
// 其次按 id 字典序排列，匹配阶段的平局裁决直接复用该顺序。
func BuildSnapshot(entries []Entry) *Snapshot {
	snap := &Snapshot{
		byCategory: make(map[Category][]Entry, len(Categories)),
		byID:       make(map[string]Entry, len(entries)),
		builtAt:    time.Now().Unix(),
		total:      len(entries),
	}
	for _, entry := range entries {
		snap.byCategory[entry.Category] = append(snap.byCategory[entry.Category], entry)
		snap.byID[entry.ID] = entry
	}
	for _, category := range Categories {
		bucket := snap.byCategory[category]
		sort.Slice(bucket, func(i, j int) bool {
			if bucket[i].UpdatedAt == bucket[j].UpdatedAt {
				return bucket[i].ID < bucket[j].ID
			}
			return bucket[i].UpdatedAt > bucket[j].UpdatedAt
		})
	}
	return snap
}

// Entries 返回指定类别的条目，调用方不得修改返回的切片。
func (s *Snapshot) Entries(category Category) []Entry {
	if s == nil {
		return nil
	}
	return s.byCategory[category]
}

// Lookup 按 id 检索条目。
func (s *Snapshot) Lookup(id string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	entry, ok := s.byID[id]
	return entry, ok
}

// All 返回按类别顺序展开的全部条目。
func (s *Snapshot) All() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, s.total)
	for _, category := range Categories {
		out = append(out, s.byCategory[category]...)
	}
	return out
}

// Len 返回快照内的条目总数。
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.total
}

// BuiltAt 返回快照构建时间（Unix 秒）。
func (s *Snapshot) BuiltAt() int64 {
	if s == nil {
		return 0
	}
	return s.builtAt
}

// Index 持有当前发布的目录快照。刷新是带外操作：构建新快照后
// 原子替换，进行中的请求继续使用旧快照。
type Index struct {
	source  Source
	current atomic.Pointer[Snapshot]
}

// NewIndex 构造目录索引并完成首次加载。
func NewIndex(ctx context.Context, source Source) (*Index, error) {
	if source == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置目录数据源")
	}
	idx := &Index{source: source}
	if err := idx.Refresh(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Refresh 从数据源重建快照并发布。
func (i *Index) Refresh(ctx context.Context) error {
	entries, err := i.source.ListEntries(ctx, "")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeCatalogFailure, err, "加载目录数据失败")
	}
	i.current.Store(BuildSnapshot(entries))
	return nil
}

// Snapshot 返回当前发布的快照。
func (i *Index) Snapshot() *Snapshot {
	if i == nil {
		return nil
	}
	return i.current.Load()
}
