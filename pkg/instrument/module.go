// Package instrument locates driver modules and opens them on a chosen link.
//
// A driver module registers itself once, usually from its package init,
// with one backend per connection medium it supports. Backends are shown to
// users as Driver_<LINK>.
package instrument

import (
	"context"
	"sort"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/params"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

// Instance is a live driver. Closing it releases the transport.
type Instance interface {
	Close() error
}

// Conn is what a backend factory receives from Open.
type Conn struct {
	Address string
	Params  *params.Set

	// Registry resolves parts for drivers that mount other modules.
	Registry *Registry

	// Wrap, when set, is applied to the transport before the driver sees it.
	Wrap func(transport.Transport) transport.Transport
}

// Factory builds an instance for one link.
type Factory func(ctx context.Context, c Conn) (Instance, error)

// PartFactory builds a submodule that shares a parent's transport. Slot
// mainframes use it to populate their slots.
type PartFactory func(t transport.Transport, slot int) (any, error)

// Module is one driver: a base type plus the backends it can run over.
type Module struct {
	Root        string
	Name        string
	Description string

	Backends map[string]Factory
	Parts    map[string]PartFactory
}

// ID is root/name.
func (m *Module) ID() string { return m.Root + "/" + m.Name }

// Links returns the links with a backend, sorted.
func (m *Module) Links() []string {
	out := make([]string, 0, len(m.Backends))
	for link := range m.Backends {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

// BackendNames lists the backends as Driver_<LINK>, sorted.
func (m *Module) BackendNames() []string {
	links := m.Links()
	for i, l := range links {
		links[i] = BackendName(l)
	}
	return links
}

// PartNames returns the part names, sorted.
func (m *Module) PartNames() []string {
	out := make([]string, 0, len(m.Parts))
	for name := range m.Parts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BackendName renders the display name of the backend for link.
func BackendName(link string) string {
	return "Driver_" + strings.ToUpper(link)
}
