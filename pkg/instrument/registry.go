package instrument

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OpenTraceLab/labctl/pkg/params"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

// Registry holds driver modules grouped by root.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module // by ID
	roots   []string           // search path; nil searches every root
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Default is the registry driver packages register into.
var Default = NewRegistry()

// Register adds m to the Default registry.
func Register(m Module) { Default.Register(m) }

// Register adds m. Link keys are upper-cased. It panics if m has no name, no
// backends and no parts, or if root/name is already taken.
func (r *Registry) Register(m Module) {
	if m.Root == "" || m.Name == "" {
		panic("instrument: module needs a root and a name")
	}
	if len(m.Backends) == 0 && len(m.Parts) == 0 {
		panic(fmt.Sprintf("instrument: module %s declares no backends or parts", m.ID()))
	}
	backends := make(map[string]Factory, len(m.Backends))
	for link, f := range m.Backends {
		backends[strings.ToUpper(link)] = f
	}
	m.Backends = backends

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.modules {
		if existing.Root == m.Root && strings.EqualFold(existing.Name, m.Name) {
			panic(fmt.Sprintf("instrument: module %s already registered", m.ID()))
		}
	}
	r.modules[m.ID()] = &m
}

// SetRoots restricts the search path. An empty list searches every root.
func (r *Registry) SetRoots(roots []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append([]string(nil), roots...)
}

// Roots returns the search path.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.searchPath()
}

func (r *Registry) searchPath() []string {
	if len(r.roots) > 0 {
		return append([]string(nil), r.roots...)
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range r.modules {
		if !seen[m.Root] {
			seen[m.Root] = true
			out = append(out, m.Root)
		}
	}
	sort.Strings(out)
	return out
}

// Modules returns every module on the search path, sorted by ID.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible()
}

func (r *Registry) visible() []*Module {
	roots := map[string]bool{}
	for _, root := range r.searchPath() {
		roots[root] = true
	}
	var out []*Module
	for _, m := range r.modules {
		if roots[m.Root] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Locate finds the module called name on the search path. Names compare
// case-insensitively; "root/name" limits the search to one root. No match,
// or more than one, is a *DriverNotFoundError.
func (r *Registry) Locate(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root, base, qualified := strings.Cut(name, "/")
	if !qualified {
		base = name
	}

	var (
		matches []*Module
		known   []string
	)
	for _, m := range r.visible() {
		known = append(known, m.ID())
		if qualified && m.Root != root {
			continue
		}
		if strings.EqualFold(m.Name, base) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	err := &DriverNotFoundError{Name: name, Roots: r.searchPath(), Known: known}
	for _, m := range matches {
		err.Matches = append(err.Matches, m.ID())
	}
	return nil, err
}

// Part returns the named part factory of a module.
func (r *Registry) Part(module, part string) (PartFactory, error) {
	m, err := r.Locate(module)
	if err != nil {
		return nil, err
	}
	for name, f := range m.Parts {
		if strings.EqualFold(name, part) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("instrument: %s has no part %q (parts: %s)",
		m.ID(), part, strings.Join(m.PartNames(), ", "))
}

// OpenRequest names a driver, a link, an address and extra parameters.
type OpenRequest struct {
	Driver  string
	Link    string
	Address string
	Params  map[string]string

	// Wrap is passed on to the backend in Conn.
	Wrap func(transport.Transport) transport.Transport
}

// Open locates the driver, selects its Driver_<LINK> backend and builds an
// instance. Opening is the only step that touches hardware. Parameters that
// nobody consumed close the instance again and fail the open.
func (r *Registry) Open(ctx context.Context, req OpenRequest) (Instance, error) {
	m, err := r.Locate(req.Driver)
	if err != nil {
		return nil, err
	}
	link := strings.ToUpper(req.Link)
	factory, ok := m.Backends[link]
	if !ok {
		return nil, &UnknownConnectionError{Driver: m.Name, Link: link, Available: m.BackendNames()}
	}

	p := params.New(req.Params)
	inst, err := factory(ctx, Conn{Address: req.Address, Params: p, Registry: r, Wrap: req.Wrap})
	if err != nil {
		return nil, err
	}
	if unused := p.Unused(); len(unused) > 0 {
		inst.Close()
		return nil, &UnexpectedParamError{Driver: m.Name, Params: unused}
	}
	return inst, nil
}
