// Package routes memoizes zone to zone travel distances in durable storage.
package routes

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/structs"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

var (
	ErrInvalidDistance = errors.New("invalid distance")
	ErrUnknownZone     = errors.New("unknown zone")
	ErrNoPath          = errors.New("no path")
)

// Resolver computes the distance between two zones. It returns Unreachable,
// or an error wrapping ErrNoPath, when no path exists.
type Resolver func(from, to string) (structs.Distance, error)

// Store is the durable side of the cache. SetRoute must refuse to overwrite
// with os.ErrExist, and Route must report misses with os.ErrNotExist.
type Store interface {
	Route(ctx context.Context, from, to string) (structs.Distance, error)
	SetRoute(ctx context.Context, from, to string, d structs.Distance) error
}

type Options struct {
	// FrontSize bounds the in-memory front, 0 means unbounded.
	FrontSize int
	// FrontTTL is how long a pair stays in the in-memory front.
	FrontTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		FrontSize: 4096,
		FrontTTL:  10 * time.Minute,
	}
}

type Stats struct {
	FrontHits int64
	StoreHits int64
	Resolved  int64
}

// Cache is a write-once distance cache. Entries never expire from the store;
// the in-memory front only saves store reads within and across ticks.
type Cache struct {
	store Store
	front cache.Cache[string, structs.Distance]
	stats Stats
}

func New(store Store, opts Options) *Cache {
	if opts.FrontTTL <= 0 {
		opts.FrontTTL = DefaultOptions().FrontTTL
	}
	return &Cache{
		store: store,
		front: cache.NewCache[string, structs.Distance]().WithMaxKeys(opts.FrontSize).WithLRU().WithTTL(opts.FrontTTL),
	}
}

func frontKey(from, to string) string {
	return from + "\x00" + to
}

// Get returns the distance from one zone to another. A zone is always 0 from
// itself. Otherwise a stored distance is returned as is, and on a miss
// resolve is called once and its result, Unreachable included, is stored.
// Resolver errors and negative distances are returned and never stored.
func (c *Cache) Get(ctx context.Context, from, to string, resolve Resolver) (structs.Distance, error) {
	if from == to {
		return 0, nil
	}
	key := frontKey(from, to)
	if d, found := c.front.Get(key); found {
		c.stats.FrontHits++
		return d, nil
	}
	d, err := c.store.Route(ctx, from, to)
	if err == nil {
		c.stats.StoreHits++
		c.front.Set(key, d, 0)
		return d, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, ticktrace.WithStack(err)
	}
	if d, err = resolve(from, to); errors.Is(err, ErrNoPath) {
		d = structs.Unreachable
	} else if err != nil {
		return 0, errors.Wrapf(err, "resolving %q to %q", from, to)
	} else if d < 0 {
		return 0, errors.Wrapf(ErrInvalidDistance, "resolving %q to %q gave %d", from, to, d)
	}
	if err := c.store.SetRoute(ctx, from, to, d); errors.Is(err, os.ErrExist) {
		if d, err = c.store.Route(ctx, from, to); err != nil {
			return 0, ticktrace.WithStack(err)
		}
	} else if err != nil {
		return 0, ticktrace.WithStack(err)
	}
	c.stats.Resolved++
	c.front.Set(key, d, 0)
	return d, nil
}

func (c *Cache) Stats() Stats {
	return c.stats
}
