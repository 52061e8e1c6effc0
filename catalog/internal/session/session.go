// Package session tracks the per-session home page visit counter.
package session

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Host     string `yaml:"host" envconfig:"REDIS_HOST"`
	Port     string `yaml:"port" envconfig:"REDIS_PORT" default:"6379"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB" default:"0"`
}

type Store interface {
	// IncrVisits bumps the visit counter for the session and returns
	// the new value (1 on the first visit).
	IncrVisits(ctx context.Context, sessionID string) (int64, error)
}

type store struct {
	rdb *redis.Client
}

func NewStore(ctx context.Context, cfg Config) (*store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis.Ping")
	}
	return &store{rdb: rdb}, nil
}

func (s *store) IncrVisits(ctx context.Context, sessionID string) (int64, error) {
	return s.rdb.Incr(ctx, visitsKey(sessionID)).Result()
}

func (s *store) Close() error {
	return s.rdb.Close()
}

func visitsKey(sessionID string) string {
	return fmt.Sprintf("visits:%s", sessionID)
}
