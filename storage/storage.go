package storage

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/storage/dbm"
	"github.com/zond/ticktrace/storage/queue"
	"github.com/zond/ticktrace/structs"

	goccy "github.com/goccy/go-json"
)

const (
	traceConfigKey = "debugTrace"
	routeSeparator = "\x00"
)

// Storage is the durable memory shared by the tracer, the route cache and
// the report queue. Callers are expected to use it from one logical thread
// at a time, but every individual call is safe for concurrent use.
type Storage struct {
	memory  *dbm.Hash
	routes  *dbm.TypeTree[structs.Distance, *structs.Distance]
	reports *dbm.TypeTree[structs.Report, *structs.Report]
	queue   *queue.Queue
}

func New(ctx context.Context, dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	o := &opener{Dir: dir}
	s := &Storage{
		memory:  o.OpenHash("memory"),
		routes:  openTypeTree[structs.Distance](o, "routeRange"),
		reports: openTypeTree[structs.Report](o, "reports"),
	}
	if o.Err != nil {
		s.Close()
		return nil, o.Err
	}
	s.queue = queue.New(s.reports)
	return s, nil
}

func (s *Storage) Close() error {
	var result error
	if s.queue != nil {
		s.queue.Close()
	}
	for _, h := range []*dbm.Hash{s.memory, treeHash(s.routes), treeHash(s.reports)} {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && result == nil {
			result = ticktrace.WithStack(err)
		}
	}
	return result
}

func treeHash[T any, S structs.Serializable[T]](t *dbm.TypeTree[T, S]) *dbm.Hash {
	if t == nil || t.TypeHash == nil {
		return nil
	}
	return t.Hash
}

// TraceConfig returns the stored trace configuration, or nil if there is
// none.
func (s *Storage) TraceConfig(_ context.Context) (*structs.TraceConfig, error) {
	b, err := s.memory.Get(traceConfigKey)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	result := &structs.TraceConfig{}
	if err := goccy.Unmarshal(b, result); err != nil {
		return nil, ticktrace.WithStack(err)
	}
	return result, nil
}

// SetTraceConfig replaces the stored trace configuration. A nil config
// removes it, which silences all tracing.
func (s *Storage) SetTraceConfig(_ context.Context, cfg *structs.TraceConfig) error {
	if cfg == nil {
		if err := s.memory.Del(traceConfigKey); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ticktrace.WithStack(err)
		}
		return nil
	}
	b, err := goccy.Marshal(cfg)
	if err != nil {
		return ticktrace.WithStack(err)
	}
	return ticktrace.WithStack(s.memory.Set(traceConfigKey, b, true))
}

func routeKey(from, to string) (string, error) {
	if strings.Contains(from, routeSeparator) || strings.Contains(to, routeSeparator) {
		return "", errors.Errorf("zone names may not contain NUL: %q, %q", from, to)
	}
	return from + routeSeparator + to, nil
}

// Route returns the stored distance from one zone to another, or
// os.ErrNotExist.
func (s *Storage) Route(_ context.Context, from, to string) (structs.Distance, error) {
	key, err := routeKey(from, to)
	if err != nil {
		return 0, err
	}
	d, err := s.routes.Get(key)
	if err != nil {
		return 0, err
	}
	return *d, nil
}

// SetRoute stores a distance unless one is already stored. Route entries
// are write once, so a second write for the same pair returns os.ErrExist.
func (s *Storage) SetRoute(_ context.Context, from, to string, d structs.Distance) error {
	key, err := routeKey(from, to)
	if err != nil {
		return err
	}
	return s.routes.Set(key, &d, false)
}

// ForgetRoute removes one stored distance. It is an administrative escape
// hatch and nothing in the tick path calls it.
func (s *Storage) ForgetRoute(_ context.Context, from, to string) error {
	key, err := routeKey(from, to)
	if err != nil {
		return err
	}
	return s.routes.Del(key)
}

// EachRoute calls f for every stored distance originating in from, or for
// every stored distance at all if from is empty.
func (s *Storage) EachRoute(_ context.Context, from string, f func(from, to string, d structs.Distance) (bool, error)) error {
	prefix := ""
	if from != "" {
		prefix = from + routeSeparator
	}
	return s.routes.Each(prefix, func(key string, d *structs.Distance) (bool, error) {
		origin, destination, found := strings.Cut(key, routeSeparator)
		if !found {
			return false, errors.Errorf("malformed route key %q", key)
		}
		return f(origin, destination, *d)
	})
}

func (s *Storage) RouteCount(_ context.Context) (int64, error) {
	return s.routes.Count()
}

func (s *Storage) Reports() *queue.Queue {
	return s.queue
}
