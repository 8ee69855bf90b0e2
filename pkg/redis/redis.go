package redis

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"Unwarp/pkg/log"
)

type IRedis interface {
	AcquireLock(ctx context.Context, key string, owner string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string, owner string) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	log.Info(log.Fields{"address": redisAddr}, "Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(log.Fields{"address": redisAddr, "error": err.Error()}, "Failed to connect to Redis")
	} else {
		log.Info(nil, "Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

// AcquireLock sets key to owner only if it is not held yet. The lock expires
// on its own so a crashed worker cannot block the key forever.
func (r *redisClient) AcquireLock(ctx context.Context, key string, owner string, expiration time.Duration) (bool, error) {
	log.Debug(log.Fields{"key": key, "owner": owner, "expiration": expiration.String()}, "Acquiring lock")
	ok, err := r.client.SetNX(ctx, key, owner, expiration).Result()
	if err != nil {
		log.Error(log.Fields{"key": key, "error": err.Error()}, "Error acquiring lock")
		return false, err
	}
	if !ok {
		log.Debug(log.Fields{"key": key}, "Lock is already held")
	}
	return ok, nil
}

// releaseScript deletes the key only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *redisClient) ReleaseLock(ctx context.Context, key string, owner string) error {
	log.Debug(log.Fields{"key": key, "owner": owner}, "Releasing lock")
	result, err := releaseScript.Run(ctx, r.client, []string{key}, owner).Int()
	if err != nil {
		log.Error(log.Fields{"key": key, "error": err.Error()}, "Error releasing lock")
		return err
	}

	if result == 0 {
		log.Debug(log.Fields{"key": key, "owner": owner}, "Lock was not held by owner")
		return nil
	}

	log.Debug(log.Fields{"key": key}, "Successfully released lock")
	return nil
}

func ProcessingLockKey(imageID string) string {
	return "processing:" + imageID
}
