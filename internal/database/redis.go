package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// ConnectRedis opens the redis client used for thread claims and realtime fan-out. name is
// reported to the server as the client name.
func ConnectRedis(url, name string) (*redis.Client, error) {
	options, err := redisOptions(url, name)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

func redisOptions(url, name string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if options.ClientName == "" {
		// redis rejects client names containing spaces
		options.ClientName = strings.Join(strings.Fields(strings.ToLower(name)), "-")
	}
	return options, nil
}
