package market

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"curator-signal-lab/internal/logger"
)

// DefaultPriceTTL bounds how stale a cached price may be.
const DefaultPriceTTL = 15 * time.Second

// PriceSource returns the current USD price of a token, nil when unavailable.
type PriceSource interface {
	CurrentPrice(ctx context.Context, token string) (*float64, error)
}

// CachedOracle caches prices from another source in Redis. Redis failures
// fall through to the source.
type CachedOracle struct {
	next   PriceSource
	client redis.Cmdable
	ttl    time.Duration
	log    *logger.Logger
}

// NewCachedOracle wraps next with a Redis cache.
func NewCachedOracle(next PriceSource, client redis.Cmdable, ttl time.Duration, log *logger.Logger) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedOracle{next: next, client: client, ttl: ttl, log: log.Named("price-cache")}
}

func priceKey(token string) string {
	return "price:" + token
}

// CurrentPrice implements PriceSource.
func (c *CachedOracle) CurrentPrice(ctx context.Context, token string) (*float64, error) {
	cached, err := c.client.Get(ctx, priceKey(token)).Result()
	switch {
	case err == nil:
		if v, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return &v, nil
		}
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", logger.String("token", token), logger.Err(err))
	}

	price, err := c.next.CurrentPrice(ctx, token)
	if err != nil || price == nil {
		return price, err
	}
	value := strconv.FormatFloat(*price, 'g', -1, 64)
	if err := c.client.Set(ctx, priceKey(token), value, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", logger.String("token", token), logger.Err(err))
	}
	return price, nil
}
