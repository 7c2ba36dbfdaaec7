package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/RedDead11/Todo-App/domain"
)

type backend interface {
	ListAll(ctx context.Context) ([]domain.Row, error)
	Insert(ctx context.Context, row domain.NewRow) (domain.Row, error)
	Update(ctx context.Context, id domain.ID, patch domain.RowPatch) error
	Delete(ctx context.Context, id domain.ID) error
}

// Cache wraps a remote store with a Redis-backed copy of the row listing.
// Writes always go to the backend; a successful write evicts the listing.
type Cache struct {
	base   backend
	redis  *redis.Client
	ttl    time.Duration
	key    string
	logger *log.Logger
}

// NewCache creates a caching wrapper for the rows of table.
func NewCache(base backend, client *redis.Client, table string, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{
		base:   base,
		redis:  client,
		ttl:    ttl,
		key:    rowsCacheKey(table),
		logger: logger,
	}
}

func (c *Cache) ListAll(ctx context.Context) ([]domain.Row, error) {
	if rows, ok := c.loadRows(ctx); ok {
		return rows, nil
	}

	rows, err := c.base.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	c.storeRows(ctx, rows)
	return rows, nil
}

func (c *Cache) Insert(ctx context.Context, row domain.NewRow) (domain.Row, error) {
	stored, err := c.base.Insert(ctx, row)
	if err != nil {
		return domain.Row{}, err
	}
	c.evict(ctx)
	return stored, nil
}

func (c *Cache) Update(ctx context.Context, id domain.ID, patch domain.RowPatch) error {
	if err := c.base.Update(ctx, id, patch); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) Delete(ctx context.Context, id domain.ID) error {
	if err := c.base.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) loadRows(ctx context.Context) ([]domain.Row, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			c.logger.WithError(err).Warn("row cache read failed")
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return nil, false
	}
	var rows []domain.Row
	if err := sonic.Unmarshal(data, &rows); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return nil, false
	}
	if rows == nil {
		rows = []domain.Row{}
	}
	return rows, true
}

func (c *Cache) storeRows(ctx context.Context, rows []domain.Row) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("row cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, c.key).Err(); err != nil {
		c.logger.WithError(err).Warn("row cache eviction failed")
	}
}

func rowsCacheKey(table string) string {
	return "todos:rows:" + table
}
