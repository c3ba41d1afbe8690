// Package tracer decides, per category and per context, whether a diagnostic
// line should be printed, and formats the lines that are.
package tracer

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zond/ticktrace/dye"
	"github.com/zond/ticktrace/structs"

	goccy "github.com/goccy/go-json"
)

const (
	ErrorCategory = "error"
)

// ConfigSource returns the current trace configuration. It is consulted on
// every call, so edits to the persisted config take effect immediately.
type ConfigSource func() *structs.TraceConfig

// StaticConfig returns a source that always yields cfg.
func StaticConfig(cfg *structs.TraceConfig) ConfigSource {
	return func() *structs.TraceConfig {
		return cfg
	}
}

// TickFunc returns the current simulation tick.
type TickFunc func() uint64

type Tracer struct {
	config  ConfigSource
	out     *log.Logger
	tick    TickFunc
	render  dye.Renderer
	palette dye.Palette
}

type Option func(*Tracer)

func WithRenderer(r dye.Renderer) Option {
	return func(t *Tracer) {
		t.render = r
	}
}

func WithPalette(p dye.Palette) Option {
	return func(t *Tracer) {
		t.palette = p
	}
}

func New(config ConfigSource, sink io.Writer, tick TickFunc, opts ...Option) *Tracer {
	if config == nil {
		config = StaticConfig(nil)
	}
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	t := &Tracer{
		config:  config,
		out:     log.New(sink, "", 0),
		tick:    tick,
		render:  dye.HTML{},
		palette: dye.Crayon,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracer) currentConfig() (cfg *structs.TraceConfig) {
	defer func() {
		if e := recover(); e != nil {
			log.Printf("reading trace config: %v", e)
			cfg = nil
		}
	}()
	return t.config()
}

// ShouldTrace reports whether a trace in category about ctx would print.
func (t *Tracer) ShouldTrace(category string, ctx *structs.Context) bool {
	return ShouldTrace(t.currentConfig(), category, ctx)
}

// ShouldTrace is the pure decision behind Tracer.ShouldTrace.
//
// A trace is included if its category is enabled, or if every configured
// context filter is present in ctx with a loosely equal value. Included
// traces are then vetoed if any attribute of ctx matches an exclusion.
func ShouldTrace(cfg *structs.TraceConfig, category string, ctx *structs.Context) bool {
	if cfg.IsEmpty() {
		return false
	}
	if !cfg.EnabledCategories[category] && !matchesFilters(cfg.ContextFilters, ctx) {
		return false
	}
	return !excluded(cfg.No, ctx)
}

func matchesFilters(filters map[string]structs.Value, ctx *structs.Context) bool {
	if filters == nil {
		return false
	}
	for key, want := range filters {
		got, found := ctx.Get(key)
		if !found || !LooseEqual(want, got) {
			return false
		}
	}
	return true
}

func excluded(no map[string]structs.Value, ctx *structs.Context) bool {
	if len(no) == 0 {
		return false
	}
	for key, value := range ctx.All() {
		setting, found := no[key]
		if !found {
			continue
		}
		if setting.IsTrue() || LooseEqual(setting, value) {
			return true
		}
	}
	return false
}

// LooseEqual compares a configured setting with a context attribute. They
// match if strictly equal, or if the attribute is falsy and the setting is
// the string form of it, so "undefined", "null", "0" and "false" select
// those falsy attributes.
func LooseEqual(setting, value structs.Value) bool {
	if setting.StrictEqual(value) {
		return true
	}
	return !value.Truthy() && setting.IsString() && setting.String() == value.String()
}

// Resolve finds the message for a trace without explicit message parts.
// Starting at ctx[category] it follows values that name other attributes of
// ctx. A string leaf becomes the message, any other leaf becomes
// "key = value". It returns nil when nothing resolves, when the walk returns
// to category, or when it runs into a cycle.
func Resolve(category string, ctx *structs.Context) []string {
	key := category
	leaf, _ := ctx.Get(category)
	visited := map[string]bool{category: true}
	for leaf.Truthy() && !(leaf.IsString() && leaf.String() == category) {
		name := leaf.String()
		next, found := ctx.Get(name)
		if !found || !next.Truthy() {
			break
		}
		if visited[name] {
			return nil
		}
		visited[name] = true
		key, leaf = name, next
	}
	if !leaf.Truthy() || (leaf.IsString() && leaf.String() == category) {
		return nil
	}
	if leaf.IsString() {
		return []string{leaf.String()}
	}
	return []string{key, "=", formatValue(leaf)}
}

func formatValue(v structs.Value) string {
	if v.Kind() == structs.ObjectKind {
		if b, err := v.MarshalJSON(); err == nil {
			return string(b)
		}
	}
	return v.String()
}

func serialize(ctx *structs.Context) string {
	if ctx == nil {
		return "undefined"
	}
	b, err := goccy.Marshal(ctx)
	if err != nil {
		return fmt.Sprintf("<unserializable context: %v>", err)
	}
	return string(b)
}

// Trace prints one line for category and ctx if the configuration selects
// it. Without message parts the message is resolved from ctx. The serialized
// ctx is always appended.
func (t *Tracer) Trace(category string, ctx *structs.Context, message ...any) {
	if !t.ShouldTrace(category, ctx) {
		return
	}
	parts := []string{fmt.Sprint(t.tick()), t.render.Render(t.palette.Error, category)}
	if len(message) == 0 && category != "" {
		parts = append(parts, Resolve(category, ctx)...)
	} else {
		for _, m := range message {
			parts = append(parts, fmt.Sprint(m))
		}
	}
	parts = append(parts, t.render.Render(t.palette.Birth, serialize(ctx)))
	t.out.Println(strings.Join(parts, " "))
}

// LogError prints message in the error style. With a ctx the line is a trace
// in the error category and obeys the trace configuration, without one it
// is printed unconditionally.
func (t *Tracer) LogError(message string, ctx *structs.Context) {
	msg := t.render.Render(t.palette.Error, message)
	if ctx != nil {
		t.Trace(ErrorCategory, ctx, msg)
		return
	}
	t.out.Println(msg)
}

// LogSystem prints message behind a system styled link to zone.
func (t *Tracer) LogSystem(zone, message string) {
	label := t.render.Render(t.palette.System, zone)
	link := t.render.Render(t.palette.System, fmt.Sprintf(`<a href="/a/#!/room/%s">%s</a> &gt; `, zone, label))
	t.out.Println(link + message)
}
