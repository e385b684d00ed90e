package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"crm-interactions/internal/calls"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCachePrefix = "directory:phone:"
	defaultCacheTTL    = 10 * time.Minute
)

// CachedDirectory fronts another directory with a Redis cache. Only non-empty
// results are cached so newly created customers are found on the next call.
// Redis failures fall back to the wrapped directory.
type CachedDirectory struct {
	next   calls.Directory
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedDirectory(next calls.Directory, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedDirectory{next: next, rdb: rdb, prefix: defaultCachePrefix, ttl: ttl, log: log}
}

func (d *CachedDirectory) LookupByPhone(ctx context.Context, phone string) ([]calls.Customer, error) {
	if d.rdb != nil {
		raw, err := d.rdb.Get(ctx, d.key(phone)).Bytes()
		switch {
		case err == nil:
			if out, ok := d.decode(phone, raw); ok {
				return out, nil
			}
		case !errors.Is(err, redis.Nil):
			d.log.Warn("directory cache read failed", "err", err)
		}
	}

	out, err := d.next.LookupByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if d.rdb != nil && len(out) > 0 {
		if b, err := json.Marshal(out); err == nil {
			if err := d.rdb.Set(ctx, d.key(phone), b, d.ttl).Err(); err != nil {
				d.log.Warn("directory cache write failed", "err", err)
			}
		}
	}
	return out, nil
}

// Invalidate drops the cached entry for phone, e.g. after a customer edit.
func (d *CachedDirectory) Invalidate(ctx context.Context, phone string) error {
	if d.rdb == nil {
		return nil
	}
	return d.rdb.Del(ctx, d.key(phone)).Err()
}

func (d *CachedDirectory) key(phone string) string { return d.prefix + phone }

// decode parses a cached entry; a corrupt entry is logged and treated as a miss.
func (d *CachedDirectory) decode(phone string, raw []byte) ([]calls.Customer, bool) {
	var out []calls.Customer
	if uerr := json.Unmarshal(raw, &out); uerr != nil {
		d.log.Warn("directory cache entry corrupt", "key", d.key(phone), "err", uerr)
		return nil, false
	}
	return out, true
}
