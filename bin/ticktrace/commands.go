package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/config"
	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/lang"
	"github.com/zond/ticktrace/routes"
	"github.com/zond/ticktrace/server"
	"github.com/zond/ticktrace/structs"

	goccy "github.com/goccy/go-json"
)

var errUsage = errors.New("usage")

type lineReader interface {
	ReadLine() (string, error)
}

type scanner struct {
	*bufio.Scanner
}

func (s *scanner) ReadLine() (string, error) {
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", ticktrace.WithStack(err)
		}
		return "", io.EOF
	}
	return s.Text(), nil
}

type app struct {
	server   *server.Server
	out      io.Writer
	in       lineReader
	graph    string
	resolver routes.Resolver
}

type command struct {
	name  string
	usage string
	f     func(a *app, ctx context.Context, args []string) error
}

var (
	topCommands    []command
	configCommands []command
	routeCommands  []command
	reportCommands []command
)

func init() {
	configCommands = []command{
		{name: "show", usage: "config show", f: (*app).configShow},
		{name: "load", usage: "config load FILE", f: (*app).configLoad},
		{name: "clear", usage: "config clear", f: (*app).configClear},
		{name: "watch", usage: "config watch FILE", f: (*app).configWatch},
	}
	routeCommands = []command{
		{name: "get", usage: "routes get FROM TO", f: (*app).routesGet},
		{name: "list", usage: "routes list [FROM]", f: (*app).routesList},
		{name: "forget", usage: "routes forget FROM TO", f: (*app).routesForget},
	}
	reportCommands = []command{
		{name: "push", usage: "reports push TEXT...", f: (*app).reportsPush},
		{name: "list", usage: "reports list [N]", f: (*app).reportsList},
		{name: "drain", usage: "reports drain [N]", f: (*app).reportsDrain},
	}
	topCommands = []command{
		{name: "config", usage: "config show|load FILE|clear|watch FILE", f: sub(configCommands)},
		{name: "trace", usage: "trace CATEGORY [KEY=VALUE...]", f: (*app).trace},
		{name: "error", usage: "error MESSAGE [KEY=VALUE...]", f: (*app).logError},
		{name: "system", usage: "system ZONE MESSAGE...", f: (*app).logSystem},
		{name: "routes", usage: "routes get FROM TO|list [FROM]|forget FROM TO", f: sub(routeCommands)},
		{name: "reports", usage: "reports push TEXT...|list [N]|drain [N]", f: sub(reportCommands)},
		{name: "console", usage: "console", f: (*app).console},
		{name: "help", usage: "help", f: (*app).help},
	}
}

func find(cmds []command, name string) (command, bool) {
	for _, cmd := range cmds {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func usages(cmds []command) string {
	result := []string{}
	for _, cmd := range cmds {
		result = append(result, cmd.usage)
	}
	return lang.Enumerator{Operator: "or"}.Do(result...)
}

func sub(cmds []command) func(*app, context.Context, []string) error {
	return func(a *app, ctx context.Context, args []string) error {
		if len(args) < 2 {
			return errors.Wrap(errUsage, usages(cmds))
		}
		cmd, found := find(cmds, args[1])
		if !found {
			return errors.Wrapf(errUsage, "unknown command %q, try %s", args[1], usages(cmds))
		}
		return cmd.f(a, ctx, args[1:])
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(errUsage, usages(topCommands))
	}
	cmd, found := find(topCommands, args[0])
	if !found {
		return errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
	return cmd.f(a, ctx, args)
}

func (a *app) help(_ context.Context, _ []string) error {
	for _, cmd := range topCommands {
		fmt.Fprintln(a.out, cmd.usage)
	}
	return nil
}

func (a *app) console(ctx context.Context, _ []string) error {
	if a.in == nil {
		return errors.New("no input to read commands from")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := a.in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return ticktrace.WithStack(err)
		}
		parts, err := shellwords.SplitPosix(line)
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "exit", "quit":
			return nil
		case "console":
			fmt.Fprintln(a.out, "Already in the console.")
			continue
		}
		if err := a.run(ctx, parts); err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

func (a *app) printConfig(cfg *structs.TraceConfig) error {
	fmt.Fprintln(a.out, cfg.Describe())
	if cfg == nil {
		return nil
	}
	b, err := goccy.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return ticktrace.WithStack(err)
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *app) configShow(ctx context.Context, _ []string) error {
	cfg, err := a.server.Storage().TraceConfig(ctx)
	if err != nil {
		return err
	}
	return a.printConfig(cfg)
}

func (a *app) configLoad(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.Wrap(errUsage, "config load FILE")
	}
	cfg, err := config.Load(args[1])
	if err != nil {
		return err
	}
	if cfg == nil {
		return errors.Wrapf(os.ErrNotExist, "loading %q", args[1])
	}
	if err := a.server.Storage().SetTraceConfig(ctx, cfg); err != nil {
		return err
	}
	return a.printConfig(cfg)
}

func (a *app) configClear(ctx context.Context, _ []string) error {
	if err := a.server.Storage().SetTraceConfig(ctx, nil); err != nil {
		return err
	}
	fmt.Fprintln(a.out, (*structs.TraceConfig)(nil).Describe())
	return nil
}

func (a *app) configWatch(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.Wrap(errUsage, "config watch FILE")
	}
	w, err := config.NewWatcher(args[1], config.DefaultDebounce, a.server.Storage().SetTraceConfig)
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Fprintf(a.out, "Watching %q, interrupt to stop.\n", args[1])
	return w.Start(ctx)
}

func (a *app) trace(_ context.Context, args []string) error {
	if len(args) < 2 {
		return errors.Wrap(errUsage, "trace CATEGORY [KEY=VALUE...]")
	}
	traceCtx, err := structs.ParseAssignments(args[2:])
	if err != nil {
		return err
	}
	if !a.server.Tracer().ShouldTrace(args[1], traceCtx) {
		fmt.Fprintf(a.out, "Not traced, the config is: %s\n", a.describeConfig())
		return nil
	}
	a.server.Tracer().Trace(args[1], traceCtx)
	return nil
}

func (a *app) describeConfig() string {
	cfg, err := a.server.Storage().TraceConfig(context.Background())
	if err != nil {
		return err.Error()
	}
	return cfg.Describe()
}

func (a *app) logError(_ context.Context, args []string) error {
	if len(args) < 2 {
		return errors.Wrap(errUsage, "error MESSAGE [KEY=VALUE...]")
	}
	var errCtx *structs.Context
	if len(args) > 2 {
		var err error
		if errCtx, err = structs.ParseAssignments(args[2:]); err != nil {
			return err
		}
	}
	a.server.Tracer().LogError(args[1], errCtx)
	return nil
}

func (a *app) logSystem(_ context.Context, args []string) error {
	if len(args) < 3 {
		return errors.Wrap(errUsage, "system ZONE MESSAGE...")
	}
	a.server.Tracer().LogSystem(args[1], strings.Join(args[2:], " "))
	return nil
}

func (a *app) routeResolver() (routes.Resolver, error) {
	if a.resolver != nil {
		return a.resolver, nil
	}
	if a.graph == "" {
		a.resolver = routes.GridDistance
		return a.resolver, nil
	}
	f, err := os.Open(a.graph)
	if err != nil {
		return nil, ticktrace.WithStack(err)
	}
	defer f.Close()
	g, err := routes.LoadGraph(f)
	if err != nil {
		return nil, err
	}
	a.resolver = routes.Fallback(g.Resolve, routes.GridDistance)
	return a.resolver, nil
}

func (a *app) routesGet(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.Wrap(errUsage, "routes get FROM TO")
	}
	resolve, err := a.routeResolver()
	if err != nil {
		return err
	}
	d, err := a.server.Routes().Get(ctx, args[1], args[2], resolve)
	if err != nil {
		return err
	}
	stats := a.server.Routes().Stats()
	fmt.Fprintf(a.out, "%s to %s: %v\n", args[1], args[2], d)
	fmt.Fprintf(a.out, "%s front hits, %s store hits, %s resolved\n",
		dye.FormatNumber(stats.FrontHits),
		dye.FormatNumber(stats.StoreHits),
		dye.FormatNumber(stats.Resolved))
	return nil
}

func (a *app) routesList(ctx context.Context, args []string) error {
	from := ""
	if len(args) > 1 {
		from = args[1]
	}
	t := table.New("From", "To", "Distance").WithWriter(a.out)
	count := 0
	if err := a.server.Storage().EachRoute(ctx, from, func(from, to string, d structs.Distance) (bool, error) {
		t.AddRow(from, to, d)
		count++
		return true, nil
	}); err != nil {
		return err
	}
	if count > 0 {
		t.Print()
	}
	total, err := a.server.Storage().RouteCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Listed %s of %s.\n", lang.Card(count, "route"), dye.FormatNumber(total))
	return nil
}

func (a *app) routesForget(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.Wrap(errUsage, "routes forget FROM TO")
	}
	if err := a.server.Storage().ForgetRoute(ctx, args[1], args[2]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Forgot %s to %s.\n", args[1], args[2])
	return nil
}

func (a *app) reportsPush(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.Wrap(errUsage, "reports push TEXT...")
	}
	report, err := a.server.Report(ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued %x.\n", report.Key)
	return nil
}

func limitArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return server.DefaultConfig().ReportsPerTick, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, errors.Wrapf(errUsage, "%q is not a positive number", args[i])
	}
	return n, nil
}

func (a *app) reportsList(_ context.Context, args []string) error {
	limit, err := limitArg(args, 1)
	if err != nil {
		return err
	}
	pending, err := a.server.Storage().Reports().Pending(limit)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		t := table.New("Key", "Tick", "Created", "Text").WithWriter(a.out)
		for _, r := range pending {
			t.AddRow(fmt.Sprintf("%x", r.Key), r.Tick, time.Unix(0, r.Created).Format(time.RFC3339), r.Text)
		}
		t.Print()
	}
	fmt.Fprintf(a.out, "Showing %s pending.\n", lang.Card(len(pending), "report"))
	return nil
}

func (a *app) reportsDrain(ctx context.Context, args []string) error {
	limit, err := limitArg(args, 1)
	if err != nil {
		return err
	}
	sent, err := a.server.Storage().Reports().Drain(ctx, limit, func(_ context.Context, r *structs.Report) error {
		_, err := fmt.Fprintf(a.out, "[%d] %s\n", r.Tick, r.Text)
		return ticktrace.WithStack(err)
	})
	fmt.Fprintf(a.out, "Delivered %s.\n", lang.Card(sent, "report"))
	return err
}
