package config

import (
	"sort"
	"time"
)

// Config is a decoded settings file: a generic map with typed accessors.
// Accessors return the given default when a key is missing or holds a
// value of another type.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// get converts the value at key with conv, falling back to def.
func get[T any](c Config, key string, def T, conv func(any) (T, bool)) T {
	v, ok := c.data[key]
	if !ok {
		return def
	}
	if out, ok := conv(v); ok {
		return out
	}
	return def
}

// String returns the string at key, or defaultVal.
func (c Config) String(key, defaultVal string) string {
	return get(c, key, defaultVal, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// Bool returns the boolean at key, or defaultVal.
func (c Config) Bool(key string, defaultVal bool) bool {
	return get(c, key, defaultVal, func(v any) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	})
}

// Duration returns the duration at key, or defaultVal. Strings use
// time.ParseDuration ("30s"); numbers are seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	return get(c, key, defaultVal, toDuration)
}

// Int returns the integer at key, or defaultVal. JSON numbers are accepted
// when they have no fractional part; TOML integers arrive as int64.
func (c Config) Int(key string, defaultVal int) int {
	return get(c, key, defaultVal, toInt)
}

// StringSlice returns the list of strings at key, or defaultVal if any
// element is not a string.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	return get(c, key, defaultVal, toStrings)
}

func toDuration(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return val, true
	case string:
		d, err := time.ParseDuration(val)
		return d, err == nil
	case int:
		return time.Duration(val) * time.Second, true
	case int64:
		return time.Duration(val) * time.Second, true
	case float64:
		return time.Duration(val * float64(time.Second)), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		n := int(val)
		return n, float64(n) == val
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return val, true
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Sub returns the nested table at key, or an empty Config.
func (c Config) Sub(key string) Config {
	if m, ok := asMap(c.data[key]); ok {
		return New(m)
	}
	return New(nil)
}

// List returns the tables in the array at key. Elements that are not
// tables are skipped.
func (c Config) List(key string) []Config {
	var items []any
	switch val := c.data[key].(type) {
	case []any:
		items = val
	case []map[string]any:
		for _, m := range val {
			items = append(items, m)
		}
	}
	out := make([]Config, 0, len(items))
	for _, item := range items {
		if m, ok := asMap(item); ok {
			out = append(out, New(m))
		}
	}
	return out
}

// Keys returns the keys of the config, sorted.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has returns true if the key exists in the config.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}

// asMap accepts the table shapes produced by the supported decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = val
		}
		return out, true
	}
	return nil, false
}
