package server

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/routes"
	"github.com/zond/ticktrace/structs"
)

func withServer(t *testing.T, f func(*Server, *bytes.Buffer)) {
	t.Helper()
	buf := &bytes.Buffer{}
	c := DefaultConfig()
	c.Dir = t.TempDir()
	c.Stdout = buf
	c.ReportsPerTick = 3
	s, err := New(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	f(s, buf)
}

func TestTraceFollowsStoredConfig(t *testing.T) {
	withServer(t, func(s *Server, buf *bytes.Buffer) {
		ctx := context.Background()
		s.Advance(ctx, 17, nil)
		s.Tracer().Trace("build", structs.NewContext().Set("build", "extension"))
		if buf.Len() != 0 {
			t.Errorf("got %q without config, want nothing", buf.String())
		}
		if err := s.Storage().SetTraceConfig(ctx, (&structs.TraceConfig{}).Enable("build")); err != nil {
			t.Fatal(err)
		}
		s.Tracer().Trace("build", structs.NewContext().Set("build", "extension"))
		if got := buf.String(); !strings.HasPrefix(got, "17 ") || !strings.Contains(got, "extension") {
			t.Errorf("got %q, want a line at tick 17 mentioning extension", got)
		}
		logged, err := os.ReadFile(filepath.Join(s.config.Dir, "trace.log"))
		if err != nil {
			t.Fatal(err)
		}
		if string(logged) != buf.String() {
			t.Errorf("got %q in the log file, want %q", logged, buf.String())
		}
	})
}

func TestPalette(t *testing.T) {
	buf := &bytes.Buffer{}
	palette := dye.Crayon
	palette.Error = dye.Color("red")
	c := DefaultConfig()
	c.Dir = t.TempDir()
	c.Stdout = buf
	c.Renderer = dye.HTML{}
	c.Palette = &palette
	s, err := New(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Tracer().LogError("boom", nil)
	if got, want := buf.String(), `<span style="color: red">boom</span>`+"\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAdvanceDrainsReports(t *testing.T) {
	withServer(t, func(s *Server, _ *bytes.Buffer) {
		ctx := context.Background()
		for _, text := range []string{"a", "b", "c", "d", "e"} {
			if _, err := s.Report(ctx, text); err != nil {
				t.Fatal(err)
			}
		}
		got := []string{}
		send := func(_ context.Context, r *structs.Report) error {
			got = append(got, r.Text)
			return nil
		}
		if n, err := s.Advance(ctx, 1, send); err != nil || n != 3 {
			t.Errorf("got %v, %v, want 3, nil", n, err)
		}
		failing := errors.New("offline")
		if n, err := s.Advance(ctx, 2, func(context.Context, *structs.Report) error { return failing }); !errors.Is(err, failing) || n != 0 {
			t.Errorf("got %v, %v, want 0, offline", n, err)
		}
		if n, err := s.Advance(ctx, 3, send); err != nil || n != 2 {
			t.Errorf("got %v, %v, want 2, nil", n, err)
		}
		if strings.Join(got, "") != "abcde" {
			t.Errorf("got %v, want a through e in order", got)
		}
		if s.Tick() != 3 {
			t.Errorf("got tick %v, want 3", s.Tick())
		}
	})
}

func TestRoutesPersist(t *testing.T) {
	withServer(t, func(s *Server, _ *bytes.Buffer) {
		ctx := context.Background()
		d, err := s.Routes().Get(ctx, "W1N1", "W4N2", routes.GridDistance)
		if err != nil || d != 3 {
			t.Errorf("got %v, %v, want 3, nil", d, err)
		}
		stored, err := s.Storage().Route(ctx, "W1N1", "W4N2")
		if err != nil || stored != 3 {
			t.Errorf("got %v, %v, want 3, nil", stored, err)
		}
	})
}

func TestWatchedTraceConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	if err := os.WriteFile(path, []byte(`{"contextFilters":{"room":"W1N1"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	c.Dir = filepath.Join(dir, "data")
	c.Stdout = nil
	c.TraceConfigPath = path
	s, err := New(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Start(ctx)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for !s.Tracer().ShouldTrace("move", structs.NewContext().Set("room", "W1N1")) {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the watched config")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}
