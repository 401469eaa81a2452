// Package keysight8163b drives the Keysight 8163B lightwave multimeter
// mainframe. Its slots are populated at open time from slotN parameters,
// each naming a module and one of its parts:
//
//	slot1 = Keysight81635A,PowerSensor
//	slot2 = Keysight81960A,Laser
package keysight8163b

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

// MaxSlot is the highest slot number; slot 0 is the front head connector.
const MaxSlot = 4

func init() {
	instrument.Register(instrument.Module{
		Root:        "mainframes",
		Name:        "Keysight8163B",
		Description: "Keysight 8163B lightwave multimeter mainframe",
		Backends: instrument.Over(build,
			transport.LinkGPIB, transport.LinkVISA, transport.LinkSocket, transport.LinkSim),
	})
}

func build(t transport.Transport, c instrument.Conn) (instrument.Instance, error) {
	reg := c.Registry
	if reg == nil {
		reg = instrument.Default
	}
	m := New(t)
	for _, key := range c.Params.Keys() {
		if !strings.HasPrefix(key, "slot") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, "slot"))
		if err != nil || n < 0 || n > MaxSlot {
			return nil, fmt.Errorf("8163B: bad slot parameter %q (slot0..slot%d)", key, MaxSlot)
		}
		what, _ := c.Params.Lookup(key)
		if err := m.mount(reg, n, what); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Mainframe is an 8163B with the parts mounted in its slots.
type Mainframe struct {
	transport.Transport

	slots     map[string]any
	installed map[string]string
}

// New wraps an open transport. Slots start empty.
func New(t transport.Transport) *Mainframe {
	return &Mainframe{Transport: t, slots: map[string]any{}, installed: map[string]string{}}
}

func (m *Mainframe) mount(reg *instrument.Registry, slot int, what string) error {
	module, part, ok := strings.Cut(what, ",")
	module, part = strings.TrimSpace(module), strings.TrimSpace(part)
	if !ok || module == "" || part == "" {
		return fmt.Errorf("8163B: slot%d = %q: want <module>,<part>", slot, what)
	}
	factory, err := reg.Part(module, part)
	if err != nil {
		return fmt.Errorf("8163B: slot%d: %w", slot, err)
	}
	obj, err := factory(m.Transport, slot)
	if err != nil {
		return fmt.Errorf("8163B: slot%d: %w", slot, err)
	}
	name := fmt.Sprintf("slot%d", slot)
	m.slots[name] = obj
	m.installed[name] = module + "," + part
	return nil
}

// Submodules exposes the mounted slots to the catalog.
func (m *Mainframe) Submodules() map[string]any { return m.slots }

func (m *Mainframe) Identify() (string, error) { return m.Query("*IDN?") }

func (m *Mainframe) Reset() error { return m.Write("*RST") }

// Options lists the modules the mainframe itself reports.
func (m *Mainframe) Options() (string, error) { return m.Query("*OPT?") }

// Slots lists what each slot was populated with.
func (m *Mainframe) Slots() []string {
	names := make([]string, 0, len(m.installed))
	for name := range m.installed {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name + "=" + m.installed[name]
	}
	return out
}

func (m *Mainframe) DriverModel() []instrument.ModelElement {
	model := []instrument.ModelElement{
		{Kind: instrument.Variable, Name: "Identity", Read: "I.identify"},
		{Kind: instrument.Action, Name: "Reset", Write: "I.reset"},
	}
	for _, s := range m.Slots() {
		name, what, _ := strings.Cut(s, "=")
		model = append(model, instrument.ModelElement{Kind: instrument.Submodule, Name: name, Help: what})
	}
	return model
}
