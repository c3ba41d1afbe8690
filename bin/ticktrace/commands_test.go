package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/server"
)

type lines []string

func (l *lines) ReadLine() (string, error) {
	if len(*l) == 0 {
		return "", io.EOF
	}
	line := (*l)[0]
	*l = (*l)[1:]
	return line, nil
}

func withApp(t *testing.T, f func(*app, *bytes.Buffer)) {
	t.Helper()
	buf := &bytes.Buffer{}
	c := server.DefaultConfig()
	c.Dir = t.TempDir()
	c.Stdout = buf
	c.Renderer = dye.HTML{}
	s, err := server.New(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	f(&app{server: s, out: buf}, buf)
}

func runOK(t *testing.T, a *app, args ...string) {
	t.Helper()
	if err := a.run(context.Background(), args); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func TestConfigCommands(t *testing.T) {
	withApp(t, func(a *app, buf *bytes.Buffer) {
		path := filepath.Join(t.TempDir(), "trace.json")
		if err := os.WriteFile(path, []byte(`{"enabledCategories":{"spawn":true},"no":{"role":"harvester"}}`), 0600); err != nil {
			t.Fatal(err)
		}
		runOK(t, a, "config", "load", path)
		buf.Reset()
		runOK(t, a, "config", "show")
		if got := buf.String(); !strings.Contains(got, "always tracing spawn") || !strings.Contains(got, `"harvester"`) {
			t.Errorf("got %q, want the description and the JSON", got)
		}

		buf.Reset()
		runOK(t, a, "trace", "spawn", "spawn=Bob", "role=builder")
		if got := buf.String(); !strings.Contains(got, " Bob ") {
			t.Errorf("got %q, want a trace resolving to Bob", got)
		}
		buf.Reset()
		runOK(t, a, "trace", "spawn", "spawn=Bob", "role=harvester")
		if got := buf.String(); !strings.HasPrefix(got, "Not traced") {
			t.Errorf("got %q, want the excluded trace reported", got)
		}

		buf.Reset()
		runOK(t, a, "config", "clear")
		runOK(t, a, "config", "show")
		if got := buf.String(); got != "tracing disabled\ntracing disabled\n" {
			t.Errorf("got %q after clearing", got)
		}
	})
}

func TestRoutesCommands(t *testing.T) {
	withApp(t, func(a *app, buf *bytes.Buffer) {
		runOK(t, a, "routes", "get", "W1N1", "W3N1")
		if got := buf.String(); !strings.HasPrefix(got, "W1N1 to W3N1: 2\n") || !strings.Contains(got, "1 resolved") {
			t.Errorf("got %q", got)
		}
		runOK(t, a, "routes", "get", "W1N1", "E1N1")
		buf.Reset()
		runOK(t, a, "routes", "list", "W1N1")
		if got := buf.String(); !strings.Contains(got, "E1N1") || !strings.Contains(got, "Listed 2 routes of 2.") {
			t.Errorf("got %q", got)
		}
		runOK(t, a, "routes", "forget", "W1N1", "W3N1")
		buf.Reset()
		runOK(t, a, "routes", "list")
		if got := buf.String(); strings.Contains(got, "W3N1") || !strings.Contains(got, "Listed 1 route of 1.") {
			t.Errorf("got %q", got)
		}
		if err := a.run(context.Background(), []string{"routes", "get", "W1N1"}); err == nil {
			t.Errorf("wanted a usage error")
		}
	})
}

func TestRoutesGraph(t *testing.T) {
	withApp(t, func(a *app, buf *bytes.Buffer) {
		a.graph = filepath.Join(t.TempDir(), "graph.json")
		if err := os.WriteFile(a.graph, []byte(`{"W1N1":["W1N2"],"W1N2":["W1N3"]}`), 0600); err != nil {
			t.Fatal(err)
		}
		runOK(t, a, "routes", "get", "W1N3", "W1N1")
		if got := buf.String(); !strings.HasPrefix(got, "W1N3 to W1N1: Infinity\n") {
			t.Errorf("got %q", got)
		}
		buf.Reset()
		runOK(t, a, "routes", "get", "W1N1", "W9N9")
		if got := buf.String(); !strings.HasPrefix(got, "W1N1 to W9N9: 8\n") {
			t.Errorf("got %q, want the grid distance for an unobserved zone", got)
		}
	})
}

func TestRoutesBrokenGraphStaysBroken(t *testing.T) {
	withApp(t, func(a *app, _ *bytes.Buffer) {
		a.graph = filepath.Join(t.TempDir(), "missing.json")
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			if err := a.run(ctx, []string{"routes", "get", "W1N1", "W3N1"}); err == nil {
				t.Errorf("attempt %v: wanted an error for the unreadable graph", i)
			}
		}
		if _, err := a.server.Storage().Route(ctx, "W1N1", "W3N1"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want nothing stored", err)
		}
		if err := os.WriteFile(a.graph, []byte(`{`), 0600); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			if err := a.run(ctx, []string{"routes", "get", "W1N1", "W3N1"}); err == nil {
				t.Errorf("attempt %v: wanted an error for the malformed graph", i)
			}
		}
		if _, err := a.server.Storage().Route(ctx, "W1N1", "W3N1"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want nothing stored", err)
		}
	})
}

func TestReportsCommands(t *testing.T) {
	withApp(t, func(a *app, buf *bytes.Buffer) {
		runOK(t, a, "reports", "push", "first", "report")
		runOK(t, a, "reports", "push", "second")
		buf.Reset()
		runOK(t, a, "reports", "list")
		if got := buf.String(); !strings.Contains(got, "first report") || !strings.Contains(got, "Showing 2 reports pending.") {
			t.Errorf("got %q", got)
		}
		buf.Reset()
		runOK(t, a, "reports", "drain", "1")
		if got := buf.String(); got != "[0] first report\nDelivered 1 report.\n" {
			t.Errorf("got %q", got)
		}
		if err := a.run(context.Background(), []string{"reports", "drain", "none"}); err == nil {
			t.Errorf("wanted a usage error")
		}
	})
}

func TestConsole(t *testing.T) {
	withApp(t, func(a *app, buf *bytes.Buffer) {
		a.in = &lines{
			`reports push "quoted text"`,
			"",
			"bogus",
			"console",
			"exit",
			"reports push never",
		}
		runOK(t, a, "console")
		pending, err := a.server.Storage().Reports().Pending(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 || pending[0].Text != "quoted text" {
			t.Errorf("got %+v, want only the quoted report", pending)
		}
		if got := strings.Count(buf.String(), "Error:"); got != 1 {
			t.Errorf("got %v errors in %q, want 1", got, buf.String())
		}
	})
}
