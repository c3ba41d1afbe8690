package structs

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/zond/ticktrace"

	goccy "github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	UndefinedKind Kind = iota
	NullKind
	BoolKind
	NumberKind
	StringKind
	ObjectKind
)

// Value is a loosely typed attribute value as found in trace contexts and
// trace configuration. Nested objects and arrays are kept as raw JSON and are
// opaque: they are never equal to anything, not even themselves.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	raw  []byte
}

var Undefined = Value{}

func Null() Value {
	return Value{kind: NullKind}
}

func Bool(b bool) Value {
	return Value{kind: BoolKind, b: b}
}

func Number(n float64) Value {
	return Value{kind: NumberKind, n: n}
}

func String(s string) Value {
	return Value{kind: StringKind, s: s}
}

// ValueOf converts common Go values into a Value. Anything not scalar is
// serialized and kept as an opaque object.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case fmt.Stringer:
		return String(t.String())
	}
	raw, err := goccy.Marshal(v)
	if err != nil {
		return String(fmt.Sprint(v))
	}
	return Value{kind: ObjectKind, raw: raw}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsUndefined() bool {
	return v.kind == UndefinedKind
}

func (v Value) IsString() bool {
	return v.kind == StringKind
}

func (v Value) IsTrue() bool {
	return v.kind == BoolKind && v.b
}

// Truthy reports whether the value would pass a boolean test in the host
// scripting environment: undefined, null, false, 0, NaN and "" are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case BoolKind:
		return v.b
	case NumberKind:
		return v.n != 0 && !math.IsNaN(v.n)
	case StringKind:
		return v.s != ""
	case ObjectKind:
		return true
	}
	return false
}

// String renders the value the way string interpolation in the host
// scripting environment would.
func (v Value) String() string {
	switch v.kind {
	case UndefinedKind:
		return "undefined"
	case NullKind:
		return "null"
	case BoolKind:
		return strconv.FormatBool(v.b)
	case NumberKind:
		return formatNumber(v.n)
	case StringKind:
		return v.s
	}
	if len(v.raw) > 0 && v.raw[0] == '[' {
		return string(v.raw)
	}
	return "[object Object]"
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// StrictEqual compares kind and payload. Objects are never strictly equal.
func (v Value) StrictEqual(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case UndefinedKind, NullKind:
		return true
	case BoolKind:
		return v.b == o.b
	case NumberKind:
		return v.n == o.n
	case StringKind:
		return v.s == o.s
	}
	return false
}

// settingForm returns the form a configured setting is persisted in. JSON
// has no undefined, NaN or infinities, so those are written as their string
// form, which LooseEqual still matches against undefined and NaN attributes.
func (v Value) settingForm() Value {
	switch {
	case v.kind == UndefinedKind:
		return String(v.String())
	case v.kind == NumberKind && (math.IsNaN(v.n) || math.IsInf(v.n, 0)):
		return String(v.String())
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case UndefinedKind, NullKind:
		return []byte("null"), nil
	case BoolKind:
		return goccy.Marshal(v.b)
	case NumberKind:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return []byte("null"), nil
		}
		return goccy.Marshal(v.n)
	case StringKind:
		return goccy.Marshal(v.s)
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return ticktrace.WithStack(fmt.Errorf("empty JSON value"))
	}
	switch trimmed[0] {
	case 'n':
		if string(trimmed) != "null" {
			return ticktrace.WithStack(fmt.Errorf("invalid JSON value %q", trimmed))
		}
		*v = Null()
	case 't', 'f':
		var bl bool
		if err := goccy.Unmarshal(trimmed, &bl); err != nil {
			return ticktrace.WithStack(err)
		}
		*v = Bool(bl)
	case '"':
		var s string
		if err := goccy.Unmarshal(trimmed, &s); err != nil {
			return ticktrace.WithStack(err)
		}
		*v = String(s)
	case '{', '[':
		if !goccy.Valid(trimmed) {
			return ticktrace.WithStack(fmt.Errorf("invalid JSON value %q", trimmed))
		}
		*v = Value{kind: ObjectKind, raw: append([]byte(nil), trimmed...)}
	default:
		var n float64
		if err := goccy.Unmarshal(trimmed, &n); err != nil {
			return ticktrace.WithStack(err)
		}
		*v = Number(n)
	}
	return nil
}

// ParseValue interprets s as a JSON scalar if it is one, and as a plain
// string otherwise. The literal undefined yields Undefined.
func ParseValue(s string) Value {
	if s == "undefined" {
		return Undefined
	}
	v := Value{}
	if err := v.UnmarshalJSON([]byte(s)); err != nil {
		return String(s)
	}
	return v
}
