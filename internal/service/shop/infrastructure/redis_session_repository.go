package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/service/shop/domain"
)

// RedisSessionRepository 把会话（当前用户 + 购物车）以 JSON 存入 Redis，每次写入刷新 TTL。
type RedisSessionRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionRepository(client redis.UniversalClient, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, ttl: ttl}
}

// NewRedisClient 创建客户端并 Ping 一次确认可用
func NewRedisClient(ctx context.Context, cfg bootstrap.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	return client, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:{%s}", id)
}

func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get session %s", id)
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "decode session %s", id)
	}
	if s.Cart == nil {
		s.Cart = domain.NewCart()
	}
	return &s, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrapf(err, "encode session %s", session.ID)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set session %s", session.ID)
	}
	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	return errors.Wrapf(r.client.Del(ctx, sessionKey(id)).Err(), "redis del session %s", id)
}
