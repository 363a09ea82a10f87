package auth

import (
	"context"
	"os"
	"time"

	"github.com/bytedance/sonic"
	goerrors "github.com/go-errors/errors"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session records in Redis so sessions survive restarts
// and are shared across instances. Records carry a TTL slightly past their
// expiry; the session manager still enforces the expiry itself.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "cs:session:"}
}

// NewRedisStoreFromEnv builds a store from the REDIS_HOST, REDIS_PORT and
// REDIS_PASSWORD environment variables.
func NewRedisStoreFromEnv() *RedisStore {
	return NewRedisStore(redis.NewClient(&redis.Options{
		Addr:     getRedisHost() + ":" + getRedisPort(),
		Password: getRedisPassword(),
		DB:       2, // Use database 2 for sessions
	}))
}

func (r *RedisStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	val, err := r.client.Get(ctx, r.prefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.New(err)
	}

	record := &SessionRecord{}
	if err := sonic.Unmarshal([]byte(val), record); err != nil {
		return nil, goerrors.New(err)
	}
	return record, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, record *SessionRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return goerrors.New(err)
	}

	// keep the record around a minute past its expiry so the manager can
	// observe it as expired instead of simply absent
	ttl := time.Until(time.Unix(record.Expiry, 0)) + time.Minute
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := r.client.Set(ctx, r.prefix+id, data, ttl).Err(); err != nil {
		return goerrors.New(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return goerrors.New(err)
	}
	return nil
}

func getRedisHost() string {
	host, ok := os.LookupEnv("REDIS_HOST")
	if !ok {
		log.Warn("REDIS_HOST environment variable not set, using default 'localhost'")
		return "localhost"
	}

	return host
}

func getRedisPort() string {
	port, ok := os.LookupEnv("REDIS_PORT")
	if !ok {
		log.Warn("REDIS_PORT environment variable not set, using default '6379'")
		return "6379"
	}

	return port
}

func getRedisPassword() string {
	password, ok := os.LookupEnv("REDIS_PASSWORD")
	if !ok {
		return ""
	}

	return password
}
