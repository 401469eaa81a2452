// Package catalog lists the methods a live driver instance can be asked to
// run. Paths are I.<method> for the instance itself and I.<sub>.<method> for
// its submodules (channels, slots, traces). Nesting stops at two levels.
package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Root is the symbol that names the driver instance in every path.
const Root = "I"

// MaxDepth is the deepest path the catalog produces.
const MaxDepth = 2

// Submoduler lets a driver expose submodules that are not struct fields,
// such as the slots of a mainframe populated at open time.
type Submoduler interface {
	Submodules() map[string]any
}

// ArgNamer names the parameters of a type's methods so commands can pass
// them as key=value. Keys are Go method names.
type ArgNamer interface {
	ArgNames() map[string][]string
}

// hooks are methods used by the engine itself and never listed.
var hooks = map[string]bool{
	"Submodules":  true,
	"ArgNames":    true,
	"DriverModel": true,
}

// Method is one invocable catalog entry.
type Method struct {
	Path   string
	Sub    string // submodule name, empty at depth 1
	Name   string // snake_case method name
	GoName string
	Func   reflect.Value // bound method value
	Params []string      // parameter names, nil when the receiver has no ArgNames
}

// Depth reports 1 for root methods and 2 for submodule methods.
func (m *Method) Depth() int {
	if m.Sub == "" {
		return 1
	}
	return 2
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Signature renders the method as its path followed by the parameter list,
// e.g. I.channel1.frequency(freq float64). A leading context.Context is left
// out and unnamed parameters show only their type.
func (m *Method) Signature() string {
	ft := m.Func.Type()
	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		first = 1
	}
	parts := make([]string, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		typ := ft.In(i).String()
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			typ = "..." + ft.In(i).Elem().String()
		}
		if j := i - first; j < len(m.Params) {
			typ = m.Params[j] + " " + typ
		}
		parts = append(parts, typ)
	}
	return m.Path + "(" + strings.Join(parts, ", ") + ")"
}

// Catalog is the method set of one instance. It is built fresh for every
// instance and never mutated afterwards.
type Catalog struct {
	methods map[string]*Method
	paths   []string
	subs    []string
}

// Build introspects instance and returns its catalog.
func Build(instance any) (*Catalog, error) {
	if instance == nil {
		return nil, fmt.Errorf("catalog: nil instance")
	}
	c := &Catalog{methods: make(map[string]*Method)}
	root := reflect.ValueOf(instance)

	if err := c.addMethods(root, ""); err != nil {
		return nil, err
	}

	subs, err := submodules(root)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := c.addMethods(s.value, s.name); err != nil {
			return nil, err
		}
		c.subs = append(c.subs, s.name)
	}

	sort.Strings(c.paths)
	sort.Strings(c.subs)
	return c, nil
}

func (c *Catalog) addMethods(v reflect.Value, sub string) error {
	names := argNames(v)
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() || hooks[m.Name] {
			continue
		}
		entry := &Method{
			Sub:    sub,
			Name:   Snake(m.Name),
			GoName: m.Name,
			Func:   v.Method(i),
			Params: names[m.Name],
		}
		entry.Path = join(sub, entry.Name)
		if _, dup := c.methods[entry.Path]; dup {
			return fmt.Errorf("catalog: duplicate path %s", entry.Path)
		}
		c.methods[entry.Path] = entry
		c.paths = append(c.paths, entry.Path)
	}
	return nil
}

func join(sub, name string) string {
	if sub == "" {
		return Root + "." + name
	}
	return Root + "." + sub + "." + name
}

func argNames(v reflect.Value) map[string][]string {
	if !v.CanInterface() {
		return nil
	}
	if n, ok := v.Interface().(ArgNamer); ok {
		return n.ArgNames()
	}
	return nil
}

type submodule struct {
	name  string
	value reflect.Value
}

// submodules collects the depth-2 objects of root: exported struct fields
// holding method-bearing struct pointers, plus the Submodules hook.
func submodules(root reflect.Value) ([]submodule, error) {
	var out []submodule
	seen := map[string]bool{}
	add := func(name string, v reflect.Value) error {
		if strings.ContainsAny(name, ". ") || name == "" {
			return fmt.Errorf("catalog: invalid submodule name %q", name)
		}
		if seen[name] {
			return fmt.Errorf("catalog: duplicate submodule %s", name)
		}
		seen[name] = true
		out = append(out, submodule{name: name, value: v})
		return nil
	}

	sv := root
	for sv.Kind() == reflect.Pointer && !sv.IsNil() {
		sv = sv.Elem()
	}
	if sv.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(sv.Type()) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name := Snake(f.Name)
			if tag, ok := f.Tag.Lookup("cmd"); ok {
				if tag == "-" {
					continue
				}
				if tag != "" {
					name = tag
				}
			}
			fv, err := sv.FieldByIndexErr(f.Index)
			if err != nil {
				// Field sits behind a nil embedded pointer.
				continue
			}
			obj, ok := methodBearer(fv)
			if !ok {
				continue
			}
			if err := add(name, obj); err != nil {
				return nil, err
			}
		}
	}

	if root.CanInterface() {
		if s, ok := root.Interface().(Submoduler); ok {
			dyn := s.Submodules()
			names := make([]string, 0, len(dyn))
			for name := range dyn {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if dyn[name] == nil {
					continue
				}
				obj, ok := methodBearer(reflect.ValueOf(dyn[name]))
				if !ok {
					continue
				}
				if err := add(name, obj); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// methodBearer reports whether v is an object worth listing: a struct (or
// pointer or interface holding one) with at least one exported non-hook
// method. Values read through unexported fields are rejected since their
// methods cannot be called.
func methodBearer(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
	case reflect.Struct:
		if v.CanAddr() {
			v = v.Addr()
		}
	default:
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if !hooks[t.Method(i).Name] {
			return v, true
		}
	}
	return reflect.Value{}, false
}

// Lookup returns the method at path.
func (c *Catalog) Lookup(path string) (*Method, bool) {
	m, ok := c.methods[path]
	return m, ok
}

// Has reports whether path is in the catalog.
func (c *Catalog) Has(path string) bool {
	_, ok := c.methods[path]
	return ok
}

// Paths returns every path, sorted.
func (c *Catalog) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Submodules returns the names of depth-2 objects, sorted.
func (c *Catalog) Submodules() []string {
	return append([]string(nil), c.subs...)
}

// Len is the number of methods.
func (c *Catalog) Len() int { return len(c.paths) }
