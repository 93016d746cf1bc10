package health

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/proerror77/Nova-sub006/pkg/kafka"
)

// PostgresChecker pings the connection pool.
func PostgresChecker(pool *pgxpool.Pool) Checker {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// RedisChecker pings the Redis server.
func RedisChecker(client *redis.Client) Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// KafkaChecker dials the brokers.
func KafkaChecker(brokers []string) Checker {
	return func(ctx context.Context) error {
		return kafka.PingBrokers(ctx, brokers)
	}
}
