// README: Redis client for the shared route cache.
package infra

import (
    "context"
    "fmt"

    "github.com/redis/go-redis/v9"
)

func NewRedis(ctx context.Context, addr string) (*redis.Client, error) {
    rdb := redis.NewClient(&redis.Options{Addr: addr})
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("ping redis %s: %w", addr, err)
    }
    return rdb, nil
}
