package redis

import (
	"context"
	"errors"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/pkg/circuitbreaker"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// CompanyCache is a read-through cache in front of a company.Repository.
// Cache failures fall through to the repository; they never fail a read.
// After repeated Redis failures the cache is bypassed until the breaker
// cools down.
type CompanyCache struct {
	next    company.Repository
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
	logger  *logger.Logger
}

// NewCompanyCache wraps next. A non-positive ttl uses TTLCompanyProfile.
func NewCompanyCache(next company.Repository, cache *Cache, ttl time.Duration, log *logger.Logger) *CompanyCache {
	if ttl <= 0 {
		ttl = TTLCompanyProfile
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("company_cache"))

	return &CompanyCache{
		next:  next,
		cache: cache,
		ttl:   ttl,
		breaker: circuitbreaker.New("redis-company-cache",
			circuitbreaker.WithFailureThreshold(3),
			circuitbreaker.WithCoolDown(30*time.Second),
			circuitbreaker.WithIsFailure(func(err error) bool { return !errors.Is(err, ErrCacheMiss) }),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("cache breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		),
		logger: log,
	}
}

// FindByName implements company.Repository. Misses are not cached.
func (c *CompanyCache) FindByName(ctx context.Context, name string) (*company.Profile, error) {
	var p company.Profile
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, CompanyKey(name), &p)
	})
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Warn("company cache read failed", logger.Company(name), logger.Err(err))
	}

	profile, err := c.next.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	err = c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, CompanyKey(name), profile, c.ttl)
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Warn("company cache write failed", logger.Company(name), logger.Err(err))
	}
	return profile, nil
}

// Upsert implements company.Repository and invalidates the cached entry.
// Invalidation bypasses the breaker so a recovered Redis never serves a
// profile older than the last write.
func (c *CompanyCache) Upsert(ctx context.Context, p *company.Profile) error {
	if err := c.next.Upsert(ctx, p); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, CompanyKey(p.Name)); err != nil {
		c.logger.Warn("company cache invalidation failed", logger.Company(p.Name), logger.Err(err))
	}
	return nil
}
