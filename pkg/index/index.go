// Package index reads the device index: an INI file that gives instruments
// short names. Each section is one nickname:
//
//	[psu]
//	driver = Keithley2400
//	connection = GPIB
//	address = 24
//	board_index = 0
//
// Keys other than driver, connection (or link) and address are passed to the
// backend as parameters.
package index

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// Entry is one named instrument.
type Entry struct {
	Name       string            `json:"name" yaml:"name"`
	Driver     string            `json:"driver" yaml:"driver"`
	Connection string            `json:"connection" yaml:"connection"`
	Address    string            `json:"address" yaml:"address"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Index maps nicknames to entries. It is read-only once loaded.
type Index struct {
	Path    string
	entries map[string]Entry
	order   []string
}

// DuplicateIndexEntryError is returned when a nickname appears twice.
type DuplicateIndexEntryError struct {
	Name string
	Path string
}

func (e *DuplicateIndexEntryError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("device index: duplicate entry [%s]", e.Name)
	}
	return fmt.Sprintf("device index %s: duplicate entry [%s]", e.Path, e.Name)
}

var loadOptions = ini.LoadOptions{
	AllowNonUniqueSections:   true,
	InsensitiveKeys:          true,
	KeyValueDelimiters:       "=",
	SpaceBeforeInlineComment: true,
}

// Load reads the index at path.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("device index: %w", err)
	}
	idx, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Parse reads an index from r.
func Parse(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("device index: %w", err)
	}
	return parse(data, "")
}

func parse(data []byte, path string) (*Index, error) {
	where := "device index"
	if path != "" {
		where += " " + path
	}
	f, err := ini.LoadSources(loadOptions, bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}

	idx := &Index{Path: path, entries: make(map[string]Entry)}
	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			if len(sec.Keys()) > 0 {
				return nil, fmt.Errorf("%s: keys outside any section: %s", where, strings.Join(sec.KeyStrings(), ", "))
			}
			continue
		}
		if _, dup := idx.entries[name]; dup {
			return nil, &DuplicateIndexEntryError{Name: name, Path: path}
		}
		e, err := entryFrom(sec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		idx.entries[name] = e
		idx.order = append(idx.order, name)
	}
	return idx, nil
}

func entryFrom(sec *ini.Section) (Entry, error) {
	e := Entry{Name: sec.Name(), Params: map[string]string{}}
	for _, k := range sec.Keys() {
		v := strings.TrimSpace(k.Value())
		switch k.Name() {
		case "driver":
			e.Driver = v
		case "connection", "link":
			if e.Connection != "" && !strings.EqualFold(e.Connection, v) {
				return Entry{}, fmt.Errorf("[%s]: connection and link disagree (%s, %s)", e.Name, e.Connection, v)
			}
			e.Connection = v
		case "address":
			e.Address = v
		default:
			e.Params[k.Name()] = v
		}
	}
	if e.Driver == "" {
		return Entry{}, fmt.Errorf("[%s]: missing driver", e.Name)
	}
	return e, nil
}

// Resolve returns the entry called name.
func (idx *Index) Resolve(name string) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	e, ok := idx.entries[name]
	if !ok {
		return Entry{}, false
	}
	e.Params = copyParams(e.Params)
	return e, true
}

// Names returns the nicknames in file order.
func (idx *Index) Names() []string {
	if idx == nil {
		return nil
	}
	return append([]string(nil), idx.order...)
}

// Entries returns every entry in file order.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	out := make([]Entry, 0, len(idx.order))
	for _, name := range idx.order {
		e, _ := idx.Resolve(name)
		out = append(out, e)
	}
	return out
}

// Len is the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

// ParamKeys returns the parameter keys of e, sorted.
func (e Entry) ParamKeys() []string {
	keys := make([]string, 0, len(e.Params))
	for k := range e.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
