package structs

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"

	"github.com/zond/ticktrace"
	"github.com/zond/ticktrace/lang"

	goccy "github.com/goccy/go-json"
)

// TraceConfig selects which traces are printed. It is edited by an operator
// and only ever read by the tracer.
//
// ContextFilters distinguishes absent (nil) from present but empty: only an
// explicit empty object lets every context through.
type TraceConfig struct {
	EnabledCategories map[string]bool  `json:"enabledCategories,omitempty"`
	ContextFilters    map[string]Value `json:"contextFilters"`
	No                map[string]Value `json:"no,omitempty"`
}

// IsEmpty reports whether the config would silence all tracing.
func (c *TraceConfig) IsEmpty() bool {
	return c == nil || (len(c.EnabledCategories) == 0 && c.ContextFilters == nil && len(c.No) == 0)
}

// Clone returns a copy that shares no maps with c.
func (c *TraceConfig) Clone() *TraceConfig {
	if c == nil {
		return nil
	}
	return &TraceConfig{
		EnabledCategories: maps.Clone(c.EnabledCategories),
		ContextFilters:    maps.Clone(c.ContextFilters),
		No:                maps.Clone(c.No),
	}
}

func (c *TraceConfig) Enable(category string) *TraceConfig {
	if c.EnabledCategories == nil {
		c.EnabledCategories = map[string]bool{}
	}
	c.EnabledCategories[category] = true
	return c
}

// Filter includes contexts whose key loosely equals value.
func (c *TraceConfig) Filter(key string, value any) *TraceConfig {
	if c.ContextFilters == nil {
		c.ContextFilters = map[string]Value{}
	}
	c.ContextFilters[key] = ValueOf(value).settingForm()
	return c
}

// Exclude vetoes traces whose context has key. Passing true excludes any
// value, anything else excludes only that value. Like Filter, it stores
// undefined, NaN and infinite values in their persisted string form.
func (c *TraceConfig) Exclude(key string, value any) *TraceConfig {
	if c.No == nil {
		c.No = map[string]Value{}
	}
	c.No[key] = ValueOf(value).settingForm()
	return c
}

func describePairs(m map[string]Value) []string {
	result := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		result = append(result, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return result
}

// Describe renders a one line, human readable summary.
func (c *TraceConfig) Describe() string {
	if c.IsEmpty() {
		return "tracing disabled"
	}
	enum := lang.Enumerator{}
	parts := []string{}
	if len(c.EnabledCategories) > 0 {
		enabled := []string{}
		for _, k := range slices.Sorted(maps.Keys(c.EnabledCategories)) {
			if c.EnabledCategories[k] {
				enabled = append(enabled, k)
			}
		}
		if len(enabled) > 0 {
			parts = append(parts, fmt.Sprintf("always tracing %s", enum.Do(enabled...)))
		}
	}
	if c.ContextFilters != nil {
		if len(c.ContextFilters) == 0 {
			parts = append(parts, "tracing every context")
		} else {
			parts = append(parts, fmt.Sprintf("tracing contexts with %s", enum.Do(describePairs(c.ContextFilters)...)))
		}
	}
	if len(c.No) > 0 {
		excluded := []string{}
		for _, k := range slices.Sorted(maps.Keys(c.No)) {
			if c.No[k].IsTrue() {
				excluded = append(excluded, k)
			} else {
				excluded = append(excluded, fmt.Sprintf("%s=%v", k, c.No[k]))
			}
		}
		parts = append(parts, fmt.Sprintf("excluding %s", lang.Enumerator{Operator: "or"}.Do(excluded...)))
	}
	return strings.Join(parts, "; ")
}

func settingForms(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	result := make(map[string]Value, len(m))
	for k, v := range m {
		result[k] = v.settingForm()
	}
	return result
}

func (c TraceConfig) MarshalJSON() ([]byte, error) {
	type plain TraceConfig
	b, err := goccy.Marshal(plain{
		EnabledCategories: c.EnabledCategories,
		ContextFilters:    settingForms(c.ContextFilters),
		No:                settingForms(c.No),
	})
	return b, ticktrace.WithStack(err)
}

// UnmarshalJSON decodes each section separately. A malformed section is
// logged and dropped, the remaining sections still apply.
func (c *TraceConfig) UnmarshalJSON(data []byte) error {
	sections := map[string]goccy.RawMessage{}
	if err := goccy.Unmarshal(data, &sections); err != nil {
		return ticktrace.WithStack(err)
	}
	result := TraceConfig{}
	if raw, found := sections["enabledCategories"]; found {
		if err := goccy.Unmarshal(raw, &result.EnabledCategories); err != nil {
			log.Printf("ignoring malformed enabledCategories: %v", err)
			result.EnabledCategories = nil
		}
	}
	if raw, found := sections["contextFilters"]; found {
		if err := goccy.Unmarshal(raw, &result.ContextFilters); err != nil {
			log.Printf("ignoring malformed contextFilters: %v", err)
			result.ContextFilters = nil
		}
	}
	if raw, found := sections["no"]; found {
		if err := goccy.Unmarshal(raw, &result.No); err != nil {
			log.Printf("ignoring malformed no: %v", err)
			result.No = nil
		}
	}
	*c = result
	return nil
}
