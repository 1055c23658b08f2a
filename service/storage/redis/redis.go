package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Manager 持有 Redis 连接。显式构造、显式注入，
// 生命周期归进程引导代码管，不做包级单例。
type Manager struct {
	client *redis.Client
}

func NewManager(c Config) (*Manager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Manager{client: rdb}, nil
}

func (m *Manager) Client() *redis.Client {
	return m.client
}

// Close 关闭连接
func (m *Manager) Close() error {
	if m != nil && m.client != nil {
		return m.client.Close()
	}
	return nil
}
