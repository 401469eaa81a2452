// Package keithley2400 drives the Keithley 2400 source-measure unit.
package keithley2400

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func init() {
	instrument.Register(instrument.Module{
		Root:        "sourcemeters",
		Name:        "Keithley2400",
		Description: "Keithley 2400 SourceMeter",
		Backends: instrument.Over(build,
			transport.LinkGPIB, transport.LinkSerial, transport.LinkVISA, transport.LinkSim),
	})
}

func build(t transport.Transport, _ instrument.Conn) (instrument.Instance, error) {
	return New(t), nil
}

var (
	voltageRanges = []float64{0.2, 2, 20, 200}
	currentRanges = []float64{1e-6, 10e-6, 100e-6, 1e-3, 10e-3, 100e-3, 1}
)

// SMU is a Keithley 2400.
type SMU struct {
	transport.Transport
}

// New wraps an open transport.
func New(t transport.Transport) *SMU { return &SMU{Transport: t} }

func (s *SMU) Identify() (string, error) { return s.Query("*IDN?") }

func (s *SMU) Reset() error { return s.Write("*RST") }

// SourceVoltage configures a fixed range voltage source with a current
// compliance limit.
func (s *SMU) SourceVoltage(volts, compliance float64) error {
	rng, err := suitableRange(voltageRanges, volts)
	if err != nil {
		return errors.Wrap(err, "voltage source")
	}
	return s.sequence("voltage source",
		"SOUR:FUNC VOLT",
		"SOUR:VOLT:MODE FIX",
		"SOUR:VOLT:RANG "+num(rng),
		"SOUR:VOLT:LEV "+num(volts),
		`SENS:FUNC "CURR"`,
		"SENS:CURR:PROT "+num(compliance),
	)
}

// SourceCurrent configures a fixed range current source with a voltage
// compliance limit.
func (s *SMU) SourceCurrent(amps, compliance float64) error {
	rng, err := suitableRange(currentRanges, amps)
	if err != nil {
		return errors.Wrap(err, "current source")
	}
	return s.sequence("current source",
		"SOUR:FUNC CURR",
		"SOUR:CURR:MODE FIX",
		"SOUR:CURR:RANG "+num(rng),
		"SOUR:CURR:LEV "+num(amps),
		`SENS:FUNC "VOLT"`,
		"SENS:VOLT:PROT "+num(compliance),
	)
}

// Nplc sets the integration time in power line cycles.
func (s *SMU) Nplc(cycles float64) error {
	if cycles < 0.01 || cycles > 10 {
		return errors.Errorf("nplc %g out of range 0.01..10", cycles)
	}
	return errors.Wrap(s.Write("SENS:CURR:NPLC "+num(cycles)), "nplc")
}

// RemoteSense selects four wire sensing.
func (s *SMU) RemoteSense(on bool) error {
	v := "OFF"
	if on {
		v = "ON"
	}
	return errors.Wrap(s.Write("SYST:RSEN "+v), "remote sense")
}

func (s *SMU) Output(on bool) error {
	v := "OFF"
	if on {
		v = "ON"
	}
	return errors.Wrap(s.Write("OUTP "+v), "output")
}

// Measure triggers a reading and returns voltage and current.
func (s *SMU) Measure() (volts, amps float64, err error) {
	resp, err := s.Query(":READ?")
	if err != nil {
		return 0, 0, errors.Wrap(err, "data read fail")
	}
	fields := strings.Split(strings.TrimSpace(resp), ",")
	if len(fields) < 2 {
		return 0, 0, errors.Errorf("short reading %q", resp)
	}
	volts, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "conversion for voltage value failed")
	}
	amps, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "conversion for current value failed")
	}
	return volts, amps, nil
}

func (s *SMU) ArgNames() map[string][]string {
	return map[string][]string{
		"SourceVoltage": {"volts", "compliance"},
		"SourceCurrent": {"amps", "compliance"},
		"Nplc":          {"cycles"},
		"RemoteSense":   {"on"},
		"Output":        {"on"},
	}
}

func (s *SMU) DriverModel() []instrument.ModelElement {
	return []instrument.ModelElement{
		{Kind: instrument.Action, Name: "Reset", Write: "I.reset"},
		{Kind: instrument.Action, Name: "Source voltage", Write: "I.source_voltage", Unit: "V"},
		{Kind: instrument.Action, Name: "Source current", Write: "I.source_current", Unit: "A"},
		{Kind: instrument.Variable, Name: "Output", Write: "I.output"},
		{Kind: instrument.Variable, Name: "Reading", Read: "I.measure", Help: "voltage, current"},
	}
}

func (s *SMU) sequence(ctx string, cmds ...string) error {
	for _, cmd := range cmds {
		if err := s.Write(cmd); err != nil {
			return errors.Wrap(err, ctx)
		}
	}
	return nil
}

// suitableRange returns the smallest range that holds v.
func suitableRange(ranges []float64, v float64) (float64, error) {
	if v < 0 {
		v = -v
	}
	for _, r := range ranges {
		if v <= r*1.05 {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%g exceeds the largest range %g", v, ranges[len(ranges)-1])
}

func num(v float64) string { return strconv.FormatFloat(v, 'G', -1, 64) }
