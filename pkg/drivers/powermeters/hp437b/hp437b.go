// Package hp437b drives the HP 437B RF power meter over HP-IB.
package hp437b

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func init() {
	instrument.Register(instrument.Module{
		Root:        "powermeters",
		Name:        "HP437B",
		Description: "HP 437B power meter",
		Backends:    instrument.Over(build, transport.LinkGPIB, transport.LinkVISA, transport.LinkSim),
	})
}

func build(t transport.Transport, _ instrument.Conn) (instrument.Instance, error) {
	return New(t), nil
}

// Units are the reading scales of the meter.
type Units string

var (
	// Watts reads power linearly.
	Watts Units = "LN"

	// DBM reads power in dBm.
	DBM Units = "LG"
)

func (u Units) String() string {
	switch u {
	case DBM:
		return "dBm"
	case Watts:
		return "W"
	default:
		return string(u)
	}
}

// Meter is an HP 437B.
type Meter struct {
	transport.Transport
}

// New wraps an open transport.
func New(t transport.Transport) *Meter { return &Meter{Transport: t} }

// Reset will do a soft-reset of the power meter.
func (m *Meter) Reset() error { return m.Write("*RST") }

// Zero will zero out the sensor against the reference power.
func (m *Meter) Zero() error { return m.Write("ZE") }

// Calibrate runs the reference calibration with the given sensor
// calibration factor in percent.
func (m *Meter) Calibrate(factor float64) error {
	return m.Write(fmt.Sprintf("CL%sEN", strconv.FormatFloat(factor, 'f', 1, 64)))
}

// DisplayUser shows a short message on the front panel.
func (m *Meter) DisplayUser(text string) error {
	if len(text) > 12 {
		text = text[:12]
	}
	return m.Write("DU" + text)
}

// Offset compensates for losses in couplers or attenuators, in dB.
func (m *Meter) Offset(db float64) error {
	return m.Write(fmt.Sprintf("OS%sEN", strconv.FormatFloat(db, 'f', 2, 64)))
}

// Unit selects "dBm" or "W".
func (m *Meter) Unit(name string) error {
	switch strings.ToLower(name) {
	case "dbm":
		return m.Write(string(DBM))
	case "w", "watt", "watts":
		return m.Write(string(Watts))
	}
	return fmt.Errorf("unit %q: want dBm or W", name)
}

// Power triggers a settled reading and returns it in the configured unit.
func (m *Meter) Power() (float64, error) {
	if err := m.Write("TR2"); err != nil {
		return 0, err
	}
	resp, err := m.Read()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

func (m *Meter) ArgNames() map[string][]string {
	return map[string][]string{
		"Calibrate":   {"factor"},
		"DisplayUser": {"text"},
		"Offset":      {"db"},
		"Unit":        {"name"},
	}
}
