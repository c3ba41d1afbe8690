package structs

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	goccy "github.com/goccy/go-json"
)

func TestTruthy(t *testing.T) {
	for _, tc := range []struct {
		v    Value
		want bool
	}{
		{Undefined, false},
		{Null(), false},
		{Bool(false), false},
		{Bool(true), true},
		{Number(0), false},
		{Number(math.NaN()), false},
		{Number(-1), true},
		{String(""), false},
		{String("0"), true},
		{ValueOf(map[string]int{}), true},
	} {
		if got := tc.v.Truthy(); got != tc.want {
			t.Errorf("%v.Truthy() = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestValueString(t *testing.T) {
	for _, tc := range []struct {
		v    Value
		want string
	}{
		{Undefined, "undefined"},
		{Null(), "null"},
		{Bool(false), "false"},
		{Number(5), "5"},
		{Number(1.5), "1.5"},
		{Number(math.Inf(1)), "Infinity"},
		{String("W1N1"), "W1N1"},
		{ValueOf(struct{ X int }{1}), "[object Object]"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func TestStrictEqual(t *testing.T) {
	if !String("a").StrictEqual(String("a")) {
		t.Errorf("equal strings not strictly equal")
	}
	if String("5").StrictEqual(Number(5)) {
		t.Errorf("string and number strictly equal")
	}
	obj := ValueOf([]int{1})
	if obj.StrictEqual(obj) {
		t.Errorf("objects must never be strictly equal")
	}
	if !Undefined.StrictEqual(Undefined) {
		t.Errorf("undefined not strictly equal to itself")
	}
}

func TestParseValue(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Value
	}{
		{"W1N1", String("W1N1")},
		{"12", Number(12)},
		{"-3.5", Number(-3.5)},
		{"true", Bool(true)},
		{"trueish", String("trueish")},
		{"nobody", String("nobody")},
		{"[1,", String("[1,")},
		{"null", Null()},
		{"undefined", Undefined},
		{`"12"`, String("12")},
		{"", String("")},
	} {
		got := ParseValue(tc.in)
		if got.Kind() != tc.want.Kind() || got.String() != tc.want.String() {
			t.Errorf("ParseValue(%q) = %v (%v), want %v (%v)", tc.in, got, got.Kind(), tc.want, tc.want.Kind())
		}
	}
}

func TestContextJSONKeepsOrder(t *testing.T) {
	ctx := NewContext().Set("room", "W1N1").Set("x", 5).Set("gone", Undefined).Set("pos", map[string]int{"y": 2})
	b, err := goccy.Marshal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"room":"W1N1","x":5,"pos":{"y":2}}`; string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
	got := NewContext()
	if err := goccy.Unmarshal([]byte(`{"z":1,"a":"b","m":null}`), got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got.Keys(), []string{"z", "a", "m"}); diff != "" {
		t.Errorf("key order differs: %v", diff)
	}
	if v, found := got.Get("m"); !found || v.Kind() != NullKind {
		t.Errorf("got %v, %v, want null, true", v, found)
	}
}

func TestContextSetKeepsPosition(t *testing.T) {
	ctx := NewContext().Set("a", 1).Set("b", 2).Set("a", 3)
	if diff := cmp.Diff(ctx.Keys(), []string{"a", "b"}); diff != "" {
		t.Error(diff)
	}
	if v, _ := ctx.Get("a"); v.String() != "3" {
		t.Errorf("got %v, want 3", v)
	}
}

func TestNilContext(t *testing.T) {
	var ctx *Context
	if ctx.Has("a") || ctx.Len() != 0 {
		t.Errorf("nil context should be empty")
	}
	for range ctx.All() {
		t.Errorf("nil context should not yield")
	}
}

func TestParseAssignments(t *testing.T) {
	ctx, err := ParseAssignments([]string{"room=W1N1", "x=5", "flag=undefined"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := ctx.Get("x"); v.Kind() != NumberKind {
		t.Errorf("got %v, want a number", v.Kind())
	}
	if v, found := ctx.Get("flag"); !found || !v.IsUndefined() {
		t.Errorf("got %v, %v, want undefined, true", v, found)
	}
	if _, err := ParseAssignments([]string{"nope"}); err == nil {
		t.Errorf("wanted an error for a missing =")
	}
}

func TestTraceConfigContextFiltersPresence(t *testing.T) {
	absent := &TraceConfig{}
	if err := goccy.Unmarshal([]byte(`{"enabledCategories":{"build":true}}`), absent); err != nil {
		t.Fatal(err)
	}
	if absent.ContextFilters != nil {
		t.Errorf("got %v, want nil filters", absent.ContextFilters)
	}
	present := &TraceConfig{}
	if err := goccy.Unmarshal([]byte(`{"contextFilters":{}}`), present); err != nil {
		t.Fatal(err)
	}
	if present.ContextFilters == nil || len(present.ContextFilters) != 0 {
		t.Errorf("got %v, want empty non-nil filters", present.ContextFilters)
	}
	b, err := goccy.Marshal(present)
	if err != nil {
		t.Fatal(err)
	}
	again := &TraceConfig{}
	if err := goccy.Unmarshal(b, again); err != nil {
		t.Fatal(err)
	}
	if again.ContextFilters == nil {
		t.Errorf("empty filters did not survive a round trip: %s", b)
	}
}

func TestTraceConfigMalformedSection(t *testing.T) {
	cfg := &TraceConfig{}
	if err := goccy.Unmarshal([]byte(`{"contextFilters":"room","no":{"room":true,"role":"upgrader"}}`), cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.ContextFilters != nil {
		t.Errorf("got %v, want malformed filters dropped", cfg.ContextFilters)
	}
	if !cfg.No["room"].IsTrue() || cfg.No["role"].String() != "upgrader" {
		t.Errorf("got %+v, want exclusions kept", cfg.No)
	}
	if err := goccy.Unmarshal([]byte(`[]`), cfg); err == nil {
		t.Errorf("wanted an error for a non-object config")
	}
}

func TestTraceConfigDescribe(t *testing.T) {
	if got := (*TraceConfig)(nil).Describe(); got != "tracing disabled" {
		t.Errorf("got %q", got)
	}
	cfg := (&TraceConfig{}).Enable("build").Enable("spawn").Filter("room", "W1N1").Exclude("role", true)
	want := "always tracing build and spawn; tracing contexts with room=W1N1; excluding role"
	if got := cfg.Describe(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReportSerialization(t *testing.T) {
	want := &Report{Tick: 44, Created: 1234, Text: "room W1N1 under attack"}
	want.CreateKey()
	b := make([]byte, want.Size())
	want.Marshal(b)
	got := &Report{}
	if err := got.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Error(diff)
	}
}

func TestReportKeysAscend(t *testing.T) {
	prev := ""
	for range 100 {
		r := &Report{}
		r.CreateKey()
		if r.Key <= prev {
			t.Fatalf("key %x not after %x", r.Key, prev)
		}
		prev = r.Key
	}
}

func TestDistanceString(t *testing.T) {
	if got := Unreachable.String(); got != "Infinity" {
		t.Errorf("got %q, want Infinity", got)
	}
	if got := Distance(3).String(); got != "3" {
		t.Errorf("got %q, want 3", got)
	}
	d := Unreachable
	b := make([]byte, d.Size())
	d.Marshal(b)
	var got Distance
	if err := got.Unmarshal(b); err != nil {
		t.Fatal(err)
	}
	if got != Unreachable {
		t.Errorf("got %v, want Unreachable", got)
	}
}

func TestTraceConfigPersistsSettingForms(t *testing.T) {
	cfg := &TraceConfig{
		ContextFilters: map[string]Value{"target": Undefined},
		No:             map[string]Value{"energy": Number(math.Inf(-1))},
	}
	b, err := goccy.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"contextFilters":{"target":"undefined"},"no":{"energy":"-Infinity"}}`; string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
	if v := (&TraceConfig{}).Filter("energy", math.NaN()).ContextFilters["energy"]; !v.StrictEqual(String("NaN")) {
		t.Errorf("got %v (%v), want the string NaN", v, v.Kind())
	}
	b, err = goccy.Marshal(&TraceConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"contextFilters":null}`; string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
