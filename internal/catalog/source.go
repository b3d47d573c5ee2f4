package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "TechHub-Embassy/internal/errors"
)

// Source 定义目录数据的来源接口。具体实现（静态文件、外部目录 API）
// 可以互换，核心只依赖该契约。
type Source interface {
	ListEntries(ctx context.Context, category Category) ([]Entry, error)
}

// catalogFile 映射 catalog.yaml 的文件结构。
type catalogFile struct {
	Entries []Entry `yaml:"entries"`
}

// StaticSource 通过加载 YAML 文件提供静态目录数据。
type StaticSource struct {
	entries []Entry
}

// NewStaticSource 使用给定条目构造静态目录源。
func NewStaticSource(entries []Entry) *StaticSource {
	return &StaticSource{entries: entries}
}

// LoadStaticSource 从 YAML 文件加载目录条目。
func LoadStaticSource(path string) (*StaticSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "目录文件路径不能为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCatalogFailure, err, "读取目录文件失败")
	}

	var file catalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCatalogFailure, err, "解析目录文件失败")
	}

	entries := make([]Entry, 0, len(file.Entries))
	for i, entry := range file.Entries {
		if strings.TrimSpace(entry.ID) == "" {
			return nil, xerrors.New(xerrors.CodeValidation, fmt.Sprintf("目录第 %d 条缺少 id", i+1))
		}
		if !IsValidCategory(entry.Category) {
			parsed, ok := ParseCategory(string(entry.Category))
			if !ok {
				return nil, xerrors.New(xerrors.CodeValidation,
					fmt.Sprintf("目录条目 %s 的类别无效: %s", entry.ID, entry.Category))
			}
			entry.Category = parsed
		}
		entries = append(entries, entry)
	}
	return NewStaticSource(entries), nil
}

// ListEntries 实现 Source 接口。category 为空时返回全部条目。
func (s *StaticSource) ListEntries(_ context.Context, category Category) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if category == "" {
		out := make([]Entry, len(s.entries))
		copy(out, s.entries)
		return out, nil
	}
	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Category == category {
			out = append(out, entry)
		}
	}
	return out, nil
}

var _ Source = (*StaticSource)(nil)
