package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/automax/routing/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired means another process holds the group tree lock.
var ErrLockNotAcquired = errors.New("group tree lock is held by another process")

func ConnectRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func CloseRedis(client *redis.Client) error {
	return client.Close()
}

// Locker serializes structural changes of the group tree across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// TreeLock is a single key Redis lock with an expiry, so a crashed holder
// cannot block the tree forever.
type TreeLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewTreeLock(client *redis.Client, ttl time.Duration) *TreeLock {
	return &TreeLock{client: client, key: "routing:lock:group-tree", ttl: ttl}
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *TreeLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire group tree lock: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}, nil
}

// LocalLock is the in-process Locker used when Redis is not configured.
type LocalLock struct {
	ch chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{ch: make(chan struct{}, 1)}
}

func (l *LocalLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	select {
	case l.ch <- struct{}{}:
		return func(context.Context) error {
			<-l.ch
			return nil
		}, nil
	default:
		return nil, ErrLockNotAcquired
	}
}
