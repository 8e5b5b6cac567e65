package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/behzodk/shortlink/internal/model"
)

// LinkRepositoryInterface defines the slug-keyed store operations used
// by the service layer.
type LinkRepositoryInterface interface {
	Create(ctx context.Context, link *model.ShortLink) error
	GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error)
	List(ctx context.Context) ([]*model.ShortLink, error)
	Delete(ctx context.Context, slug string) error
}

// CachedLinkRepository wraps LinkRepository with a cache-aside Redis
// layer on slug lookups. Every cache failure degrades silently to the
// database; the cache never changes a lookup's outcome, only its cost.
type CachedLinkRepository struct {
	db    *LinkRepository
	cache *redis.Client
	ttl   time.Duration
}

// NewCachedLinkRepository creates the caching wrapper. A nil cache
// client disables caching entirely, which tests rely on.
func NewCachedLinkRepository(db *LinkRepository, cache *redis.Client, ttl time.Duration) *CachedLinkRepository {
	return &CachedLinkRepository{db: db, cache: cache, ttl: ttl}
}

func cacheKey(slug string) string {
	return fmt.Sprintf("link:%s", slug)
}

// GetBySlug tries the cache first and falls through to the database,
// populating the cache on a hit from the database.
func (r *CachedLinkRepository) GetBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	key := cacheKey(slug)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			var entry cachedLink
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				return entry.toModel(), nil
			}
			// Corrupt entry: drop it and fall through to the database.
			r.cache.Del(ctx, key)
		}
	}

	link, err := r.db.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(newCachedLink(link)); err == nil {
			r.cache.Set(ctx, key, data, r.ttl)
		}
	}

	return link, nil
}

// Create inserts the link and invalidates any stale cache entry for
// the slug (a previously cached negative or deleted record).
func (r *CachedLinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if err := r.db.Create(ctx, link); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Del(ctx, cacheKey(link.Slug))
	}
	return nil
}

// List always goes to the database; the listing is an owner-facing
// operation and not on the hot path.
func (r *CachedLinkRepository) List(ctx context.Context) ([]*model.ShortLink, error) {
	return r.db.List(ctx)
}

// Delete removes the row and the cache entry.
func (r *CachedLinkRepository) Delete(ctx context.Context, slug string) error {
	if err := r.db.Delete(ctx, slug); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Del(ctx, cacheKey(slug))
	}
	return nil
}

// cachedLink is the cache serialization form. The model keeps the
// passcode out of API JSON, but it must round-trip through the cache or
// private links would lose their gate on a cache hit.
type cachedLink struct {
	Link     model.ShortLink `json:"link"`
	Passcode *string         `json:"passcode,omitempty"`
}

func newCachedLink(link *model.ShortLink) cachedLink {
	return cachedLink{Link: *link, Passcode: link.Passcode}
}

func (c *cachedLink) toModel() *model.ShortLink {
	link := c.Link
	link.Passcode = c.Passcode
	return &link
}
