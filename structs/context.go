package structs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/zond/ticktrace"

	goccy "github.com/goccy/go-json"
)

// Context is the entity a trace refers to: an ordered set of named
// attributes. Attribute order is insertion order and is kept through JSON
// round trips, since both exclusion checks and the serialized trace line
// depend on it.
type Context struct {
	keys   []string
	values map[string]Value
}

func NewContext() *Context {
	return &Context{
		values: map[string]Value{},
	}
}

// Set assigns key, converting value with ValueOf. Existing keys keep their
// position.
func (c *Context) Set(key string, value any) *Context {
	if c.values == nil {
		c.values = map[string]Value{}
	}
	if _, found := c.values[key]; !found {
		c.keys = append(c.keys, key)
	}
	c.values[key] = ValueOf(value)
	return c
}

// Get returns the attribute and whether the context has it at all. A key
// set to Undefined is still present.
func (c *Context) Get(key string) (Value, bool) {
	if c == nil {
		return Undefined, false
	}
	v, found := c.values[key]
	return v, found
}

func (c *Context) Has(key string) bool {
	_, found := c.Get(key)
	return found
}

func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

func (c *Context) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

func (c *Context) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if c == nil {
			return
		}
		for _, k := range c.keys {
			if !yield(k, c.values[k]) {
				return
			}
		}
	}
}

// MarshalJSON skips undefined attributes, like JSON.stringify in the host.
func (c *Context) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	first := true
	for k, v := range c.All() {
		if v.IsUndefined() {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := goccy.Marshal(k)
		if err != nil {
			return nil, ticktrace.WithStack(err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := v.MarshalJSON()
		if err != nil {
			return nil, ticktrace.WithStack(err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Context) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return ticktrace.WithStack(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ticktrace.WithStack(fmt.Errorf("context must be a JSON object, got %v", tok))
	}
	result := NewContext()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ticktrace.WithStack(err)
		}
		key, ok := tok.(string)
		if !ok {
			return ticktrace.WithStack(fmt.Errorf("unexpected context key %v", tok))
		}
		raw := json.RawMessage{}
		if err := dec.Decode(&raw); err != nil {
			return ticktrace.WithStack(err)
		}
		v := Value{}
		if err := v.UnmarshalJSON(raw); err != nil {
			return ticktrace.WithStack(err)
		}
		result.Set(key, v)
	}
	*c = *result
	return nil
}

// ParseAssignments builds a context from key=value arguments, interpreting
// each value with ParseValue.
func ParseAssignments(assignments []string) (*Context, error) {
	result := NewContext()
	for _, assignment := range assignments {
		key, value, found := strings.Cut(assignment, "=")
		if !found || key == "" {
			return nil, ticktrace.WithStack(fmt.Errorf("%q is not a key=value assignment", assignment))
		}
		result.Set(key, ParseValue(value))
	}
	return result, nil
}
