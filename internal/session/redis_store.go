package session

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"time"

	xerrors "TechHub-Embassy/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig 描述 Redis 会话存储的连接参数。
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore 将会话以 JSON 形式写入 Redis，并依赖键过期实现 TTL。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "embassy:session:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 Redis 失败")
	}
	return &RedisStore{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// Put 实现 Store 接口。
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return xerrors.New(xerrors.CodeValidation, "会话 ID 不能为空")
	}
	stamp(s, time.Now())
	return r.write(ctx, s)
}

// Get 返回会话。键过期后 Redis 会自动删除。
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := r.client.Get(ctx, r.prefix+id).Result()
	if err != nil {
		if stdErrors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取会话失败")
	}
	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话失败")
	}
	return &s, nil
}

// AppendTurn 追加一条会话记录并刷新键的过期时间。
func (r *RedisStore) AppendTurn(ctx context.Context, id string, turn Turn) (*Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	turn.Seq = len(s.Turns) + 1
	if turn.At == 0 {
		turn.At = time.Now().Unix()
	}
	s.Turns = append(s.Turns, turn)
	s.LastActiveAt = time.Now().Unix()
	if err := r.write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete 删除会话。
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "删除会话失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStore) write(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeValidation, err, "编码会话失败")
	}
	if err := r.client.Set(ctx, r.prefix+s.ID, payload, r.ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话失败")
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
