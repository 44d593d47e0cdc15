package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/pkg/redistools"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/tokenrepo"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps the active bearer token of every user. Two keys
// per user make both directions cheap: token:<token> -> user id and
// user_token:<id> -> token. Both expire together, which is what
// bounds a token's lifetime; the signature expiry only has to outlive
// the binding.
type TokenStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, cfg config.RedisDB, ttl time.Duration) (TokenStore, error) {
	rdb := redis.NewClient(&redis.Options{ //nolint:exhaustruct
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := redistools.Connect(ctx, rdb); err != nil {
		return TokenStore{}, fmt.Errorf("connect error: %w", err)
	}

	return TokenStore{
		rdb: rdb,
		ttl: ttl,
	}, nil
}

// Save writes both bindings in one MULTI/EXEC so a token is never
// honored without its reverse key.
func (ts TokenStore) Save(ctx context.Context, token string, userID int64) error {
	userKey := "user_token:" + strconv.FormatInt(userID, 10)

	pipe := ts.rdb.TxPipeline()
	pipe.Set(ctx, "token:"+token, userID, ts.ttl)
	pipe.Set(ctx, userKey, token, ts.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pipeline exec error: %w", err)
	}

	return nil
}

func (ts TokenStore) UserID(ctx context.Context, token string) (int64, error) {
	val, err := ts.rdb.Get(ctx, "token:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, tokenrepo.ErrNotFound
	} else if err != nil {
		return 0, fmt.Errorf("get error: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse user id error: %w", err)
	}

	return userID, nil
}

func (ts TokenStore) TokenForUser(ctx context.Context, userID int64) (string, error) {
	token, err := ts.rdb.Get(ctx, "user_token:"+strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return "", tokenrepo.ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("get error: %w", err)
	}

	return token, nil
}
