// Package server wires storage, tracing, route caching and report delivery
// into one process-wide instance driven by an external tick loop.
package server

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/config"
	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/routes"
	"github.com/zond/ticktrace/storage"
	"github.com/zond/ticktrace/storage/queue"
	"github.com/zond/ticktrace/structs"
	"github.com/zond/ticktrace/tracer"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Dir             string
	LogFile         string
	LogMaxSizeMB    int
	LogMaxBackups   int
	RouteFrontSize  int
	RouteFrontTTL   time.Duration
	ReportsPerTick  int
	TraceConfigPath string
	// Stdout receives a copy of every trace line when set.
	Stdout   io.Writer
	Renderer dye.Renderer
	// Palette replaces dye.Crayon when set.
	Palette *dye.Palette
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	opts := routes.DefaultOptions()
	return Config{
		Dir:            filepath.Join(home, ".ticktrace"),
		LogMaxSizeMB:   10,
		LogMaxBackups:  5,
		RouteFrontSize: opts.FrontSize,
		RouteFrontTTL:  opts.FrontTTL,
		ReportsPerTick: 20,
		Stdout:         os.Stdout,
	}
}

type Server struct {
	config  Config
	tick    uint64
	storage *storage.Storage
	sink    *lumberjack.Logger
	tracer  *tracer.Tracer
	routes  *routes.Cache
	watcher *config.Watcher
}

func New(ctx context.Context, c Config) (*Server, error) {
	store, err := storage.New(ctx, c.Dir)
	if err != nil {
		return nil, err
	}
	logFile := c.LogFile
	if logFile == "" {
		logFile = filepath.Join(c.Dir, "trace.log")
	}
	s := &Server{
		config:  c,
		storage: store,
		sink: &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    c.LogMaxSizeMB,
			MaxBackups: c.LogMaxBackups,
			Compress:   true,
		},
		routes: routes.New(store, routes.Options{
			FrontSize: c.RouteFrontSize,
			FrontTTL:  c.RouteFrontTTL,
		}),
	}
	var sink io.Writer = s.sink
	if c.Stdout != nil {
		sink = io.MultiWriter(s.sink, c.Stdout)
	}
	opts := []tracer.Option{}
	if c.Renderer != nil {
		opts = append(opts, tracer.WithRenderer(c.Renderer))
	}
	if c.Palette != nil {
		opts = append(opts, tracer.WithPalette(*c.Palette))
	}
	s.tracer = tracer.New(s.traceConfig, sink, s.Tick, opts...)
	if c.TraceConfigPath != "" {
		if s.watcher, err = config.NewWatcher(c.TraceConfigPath, config.DefaultDebounce, store.SetTraceConfig); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) traceConfig() *structs.TraceConfig {
	cfg, err := s.storage.TraceConfig(context.Background())
	if err != nil {
		log.Printf("reading trace config: %v", err)
		return nil
	}
	return cfg
}

// Start runs the trace config watcher, if one is configured, until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.watcher == nil {
		<-ctx.Done()
		return nil
	}
	return s.watcher.Start(ctx)
}

func (s *Server) Close() error {
	var result error
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			result = err
		}
	}
	if err := s.sink.Close(); err != nil && result == nil {
		result = ticktrace.WithStack(err)
	}
	if err := s.storage.Close(); err != nil && result == nil {
		result = err
	}
	return result
}

func (s *Server) Storage() *storage.Storage {
	return s.storage
}

func (s *Server) Tracer() *tracer.Tracer {
	return s.tracer
}

func (s *Server) Routes() *routes.Cache {
	return s.routes
}

// Tick returns the tick most recently passed to Advance.
func (s *Server) Tick() uint64 {
	return atomic.LoadUint64(&s.tick)
}

// Advance marks the start of tick n and hands at most ReportsPerTick queued
// reports to send. Reports that could not be sent stay queued for the next
// tick.
func (s *Server) Advance(ctx context.Context, n uint64, send queue.Sender) (int, error) {
	atomic.StoreUint64(&s.tick, n)
	if send == nil {
		return 0, nil
	}
	sent, err := s.storage.Reports().Drain(ctx, s.config.ReportsPerTick, send)
	if err != nil {
		s.tracer.LogError(err.Error(), nil)
	}
	return sent, err
}

// Report queues text for delivery on a later tick.
func (s *Server) Report(ctx context.Context, text string) (*structs.Report, error) {
	return s.storage.Reports().Push(ctx, s.Tick(), text)
}
