// Package params carries the extra keyword parameters a device index entry or
// the command line forwards to a backend constructor. Every lookup marks the
// key as consumed so the caller can reject parameters nobody understood.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Set is an ordered string map with consumption tracking. Keys are
// case-insensitive and stored lower case.
type Set struct {
	values map[string]string
	used   map[string]bool
}

// New builds a Set from a plain map. A nil map yields an empty Set.
func New(m map[string]string) *Set {
	s := &Set{
		values: make(map[string]string, len(m)),
		used:   make(map[string]bool),
	}
	for k, v := range m {
		s.values[strings.ToLower(k)] = v
	}
	return s
}

// Keys returns every key, sorted.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present without consuming it.
func (s *Set) Has(key string) bool {
	_, ok := s.values[strings.ToLower(key)]
	return ok
}

// Lookup returns the raw value and consumes the key.
func (s *Set) Lookup(key string) (string, bool) {
	key = strings.ToLower(key)
	v, ok := s.values[key]
	if ok {
		s.used[key] = true
	}
	return v, ok
}

// String returns the value for key or def.
func (s *Set) String(key, def string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as an integer (decimal, 0x, 0o, 0b).
func (s *Set) Int(key string, def int) (int, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 0)
	if err != nil {
		return 0, fmt.Errorf("params: %s=%q is not an integer", key, v)
	}
	return int(n), nil
}

// Bool returns the value for key parsed with strconv.ParseBool.
func (s *Set) Bool(key string, def bool) (bool, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("params: %s=%q is not a boolean", key, v)
	}
	return b, nil
}

// Duration returns the value for key. Bare numbers are seconds, anything else
// goes through time.ParseDuration.
func (s *Set) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return def, nil
	}
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("params: %s=%q is not a duration", key, v)
	}
	return d, nil
}

// SetDefault stores value under key unless the key is already present.
func (s *Set) SetDefault(key, value string) {
	key = strings.ToLower(key)
	if _, ok := s.values[key]; !ok {
		s.values[key] = value
	}
}

// Unused returns the keys nobody looked up, sorted.
func (s *Set) Unused() []string {
	var out []string
	for k := range s.values {
		if !s.used[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
