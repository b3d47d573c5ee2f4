package project

import "context"

// Store 抽象了项目状态的持久化接口。写操作必须携带最近一次读取的
// 版本号，版本不匹配时返回 ErrVersionConflict，由调用方重新加载后
// 重试，绝不允许静默覆盖。
type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	Load(ctx context.Context, id string) (*Project, error)
	Save(ctx context.Context, p *Project, expectedVersion int64) (*Project, error)
	AppendMatch(ctx context.Context, projectID string, match *ResourceMatch, expectedVersion int64) (*Project, error)
	PutUseCase(ctx context.Context, uc *UseCase) error
	GetUseCase(ctx context.Context, id string) (*UseCase, error)
	GetMatch(ctx context.Context, id string) (*ResourceMatch, error)
	ListMatches(ctx context.Context, projectID string) ([]*ResourceMatch, error)
	List(ctx context.Context, opts ListOptions) ([]*Project, error)
	Stats(ctx context.Context, opts ListOptions) (Stats, error)
	Close() error
}
