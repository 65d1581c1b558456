package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrVersionChanged reports a SetProduct dropped because the product was invalidated
// after its version was read.
var ErrVersionChanged = errors.New("product cache version changed")

// CacheService is a read-through cache for active products. A miss returns (nil, nil).
//
// Every DeleteProduct bumps a per-product version. Readers take ProductVersion before
// loading from the store and pass it to SetProduct, which only writes while the version
// is unchanged.
type CacheService interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
	ProductVersion(ctx context.Context, productID int64) (int64, error)
	SetProduct(ctx context.Context, product *models.Product, version int64, ttl time.Duration) error
	DeleteProduct(ctx context.Context, productID int64) error
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient accepts both host:port and redis:// style addresses.
func NewRedisClient(addr, password string, db int, logger *zap.Logger) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(err))
	} else {
		logger.Info("redis connection established", zap.String("addr", parsedAddr))
	}
	return client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func productKey(productID int64) string {
	return fmt.Sprintf("marketplace:product:%d", productID)
}

func versionKey(productID int64) string {
	return fmt.Sprintf("marketplace:product:%d:v", productID)
}

func (r *redisCacheService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	data, err := r.client.Get(ctx, productKey(productID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *redisCacheService) ProductVersion(ctx context.Context, productID int64) (int64, error) {
	version, err := r.client.Get(ctx, versionKey(productID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return version, err
}

// SetProduct writes under WATCH on the version key, so an invalidation racing the
// write aborts it.
func (r *redisCacheService) SetProduct(ctx context.Context, product *models.Product, version int64, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	vKey := versionKey(product.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return ErrVersionChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(product.ID), data, ttl)
			return nil
		})
		return err
	}, vKey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionChanged
	}
	return err
}

// DeleteProduct bumps the version and drops the entry in one MULTI.
func (r *redisCacheService) DeleteProduct(ctx context.Context, productID int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(productID))
		pipe.Del(ctx, productKey(productID))
		return nil
	})
	return err
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type noopCacheService struct{}

// NewNoopCacheService returns a cache that always misses. Used when CACHE_ENABLED=false.
func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) GetProduct(context.Context, int64) (*models.Product, error) { return nil, nil }

func (noopCacheService) ProductVersion(context.Context, int64) (int64, error) { return 0, nil }

func (noopCacheService) SetProduct(context.Context, *models.Product, int64, time.Duration) error {
	return nil
}

func (noopCacheService) DeleteProduct(context.Context, int64) error { return nil }

func (noopCacheService) Ping(context.Context) error { return nil }
