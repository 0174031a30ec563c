package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdmirek/askhub/internal/jobs"
)

const (
	pendingKey    = "askhub:jobs:pending"
	processingKey = "askhub:jobs:processing"
)

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// this ping function checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

// this closes the client

func (c *Client) Close() error {
	return c.redisdb.Close()
}

//  this exposes the redis client for direct commands

func (c *Client) Raw() *redis.Client {
	return c.redisdb
}

// Enqueue pushes a job envelope to the head of the pending list.
func (c *Client) Enqueue(ctx context.Context, j jobs.Job) error {
	b, err := json.Marshal(j)

	if err != nil {
		return err
	}

	return c.redisdb.LPush(ctx, pendingKey, string(b)).Err()
}

// Reserve moves one raw envelope atomically from pending -> processing
// with a visibility deadline score, so the job is not lost if a worker
// dies before ack. Returns redis.Nil when the queue is empty; callers
// keep the raw string around because Ack removes by value.
func (c *Client) Reserve(ctx context.Context, visibility time.Duration) (string, error) {
	script := redis.NewScript(`
local v = redis.call('RPOP', KEYS[1])
if v then
  redis.call('ZADD', KEYS[2], ARGV[1], v)
end
return v
`)
	expireScore := float64(time.Now().Add(visibility).UnixMilli())

	res, err := script.Run(ctx, c.redisdb, []string{pendingKey, processingKey}, expireScore).Result()

	if err != nil {
		return "", err
	}
	if res == nil {
		return "", redis.Nil
	}
	if s, ok := res.(string); ok {
		return s, nil
	}

	return "", errors.New("unexpected reserve response type")
}

// Ack removes a processing item after successful handling.
func (c *Client) Ack(ctx context.Context, raw string) error {
	return c.redisdb.ZRem(ctx, processingKey, raw).Err()
}

// RequeueExpired moves processing items whose visibility deadline has
// passed back to pending and returns the moved envelopes.
func (c *Client) RequeueExpired(ctx context.Context, now time.Time) ([]string, error) {
	script := redis.NewScript(`
local vals = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = table.getn(vals)
if count > 0 then
  redis.call('ZREM', KEYS[1], unpack(vals))
  redis.call('LPUSH', KEYS[2], unpack(vals))
end
return vals
`)
	score := float64(now.UnixMilli())

	res, err := script.Run(ctx, c.redisdb, []string{processingKey, pendingKey}, score).Result()

	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	rawVals, ok := res.([]interface{})

	if !ok {
		return nil, errors.New("unexpected requeue response type")
	}

	out := make([]string, 0, len(rawVals))
	for _, v := range rawVals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	return out, nil
}

// PendingDepth reports how many envelopes are waiting. Used by the
// worker health endpoint.
func (c *Client) PendingDepth(ctx context.Context) (int64, error) {
	return c.redisdb.LLen(ctx, pendingKey).Result()
}
