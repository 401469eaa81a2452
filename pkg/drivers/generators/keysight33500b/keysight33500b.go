// Package keysight33500b drives the Keysight 33500B series of two channel
// waveform generators.
package keysight33500b

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func init() {
	instrument.Register(instrument.Module{
		Root:        "generators",
		Name:        "Keysight33500B",
		Description: "Keysight 33500B series waveform generator",
		Backends: instrument.Over(build,
			transport.LinkVISA, transport.LinkSocket, transport.LinkUSB,
			transport.LinkVXI11, transport.LinkGPIB, transport.LinkSim),
	})
}

func build(t transport.Transport, _ instrument.Conn) (instrument.Instance, error) {
	return New(t), nil
}

// Shapes accepted by Channel.Shape.
var Shapes = []string{"SIN", "SQU", "TRI", "RAMP", "PULS", "PRBS", "NOIS", "ARB", "DC"}

// Generator is a 33500B. Root level setters act on channel 1.
type Generator struct {
	transport.Transport

	Channel1 *Channel
	Channel2 *Channel
}

// New wraps an open transport.
func New(t transport.Transport) *Generator {
	return &Generator{
		Transport: t,
		Channel1:  &Channel{t: t, n: 1},
		Channel2:  &Channel{t: t, n: 2},
	}
}

func (g *Generator) Identify() (string, error) { return g.Query("*IDN?") }

func (g *Generator) Reset() error { return g.Write("*RST") }

// Amplitude sets the channel 1 amplitude in volts peak to peak.
func (g *Generator) Amplitude(volts float64) error { return g.Channel1.Amplitude(volts) }

// Frequency sets the channel 1 frequency in hertz.
func (g *Generator) Frequency(freq float64) error { return g.Channel1.Frequency(freq) }

// Output switches channel 1.
func (g *Generator) Output(on bool) error { return g.Channel1.Output(on) }

// Couple ties channel 2 frequency and amplitude to channel 1.
func (g *Generator) Couple(on bool) error {
	return g.Write("FREQ:COUP " + onOff(on) + ";VOLT:COUP " + onOff(on))
}

// SystemError pops the oldest entry of the error queue.
func (g *Generator) SystemError() (string, error) { return g.Query("SYST:ERR?") }

func (g *Generator) ArgNames() map[string][]string {
	return map[string][]string{
		"Amplitude": {"volts"},
		"Frequency": {"freq"},
		"Output":    {"on"},
		"Couple":    {"on"},
	}
}

func (g *Generator) DriverModel() []instrument.ModelElement {
	return []instrument.ModelElement{
		{Kind: instrument.Action, Name: "Reset", Write: "I.reset"},
		{Kind: instrument.Variable, Name: "Identity", Read: "I.identify"},
		{Kind: instrument.Submodule, Name: "channel1", Help: "output 1"},
		{Kind: instrument.Submodule, Name: "channel2", Help: "output 2"},
		{Kind: instrument.Variable, Name: "Frequency", Read: "I.channel1.get_frequency", Write: "I.channel1.frequency", Unit: "Hz"},
		{Kind: instrument.Variable, Name: "Amplitude", Read: "I.channel1.get_amplitude", Write: "I.channel1.amplitude", Unit: "Vpp"},
		{Kind: instrument.Variable, Name: "Offset", Read: "I.channel1.get_offset", Write: "I.channel1.offset", Unit: "V"},
		{Kind: instrument.Variable, Name: "Shape", Read: "I.channel1.get_shape", Write: "I.channel1.shape"},
	}
}

// Channel is one output of the generator.
type Channel struct {
	t transport.Transport
	n int
}

func (c *Channel) source(cmd string) string { return fmt.Sprintf("SOUR%d:%s", c.n, cmd) }

func (c *Channel) Frequency(freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("frequency %g Hz out of range", freq)
	}
	return c.t.Write(c.source("FREQ " + num(freq)))
}

func (c *Channel) GetFrequency() (float64, error) { return c.queryFloat("FREQ?") }

func (c *Channel) Amplitude(volts float64) error {
	return c.t.Write(c.source("VOLT " + num(volts)))
}

func (c *Channel) GetAmplitude() (float64, error) { return c.queryFloat("VOLT?") }

func (c *Channel) Offset(volts float64) error {
	return c.t.Write(c.source("VOLT:OFFS " + num(volts)))
}

func (c *Channel) GetOffset() (float64, error) { return c.queryFloat("VOLT:OFFS?") }

// Shape selects the waveform. Names are matched on their SCPI short form,
// so "sine" and "SIN" are the same.
func (c *Channel) Shape(name string) error {
	up := strings.ToUpper(name)
	for _, s := range Shapes {
		if strings.HasPrefix(up, s) {
			return c.t.Write(c.source("FUNC " + s))
		}
	}
	return fmt.Errorf("unknown shape %q (shapes: %s)", name, strings.Join(Shapes, ", "))
}

func (c *Channel) GetShape() (string, error) {
	return c.t.Query(c.source("FUNC?"))
}

// DutyCycle sets the square wave duty cycle in percent.
func (c *Channel) DutyCycle(percent float64) error {
	if percent <= 0 || percent >= 100 {
		return fmt.Errorf("duty cycle %g%% out of range", percent)
	}
	return c.t.Write(c.source("FUNC:SQU:DCYC " + num(percent)))
}

func (c *Channel) Output(on bool) error {
	return c.t.Write(fmt.Sprintf("OUTP%d %s", c.n, onOff(on)))
}

// Load sets the expected load in ohms; 0 means high impedance.
func (c *Channel) Load(ohms float64) error {
	v := "INF"
	if ohms > 0 {
		v = num(ohms)
	}
	return c.t.Write(fmt.Sprintf("OUTP%d:LOAD %s", c.n, v))
}

func (c *Channel) ArgNames() map[string][]string {
	return map[string][]string{
		"Frequency": {"freq"},
		"Amplitude": {"volts"},
		"Offset":    {"volts"},
		"Shape":     {"name"},
		"DutyCycle": {"percent"},
		"Output":    {"on"},
		"Load":      {"ohms"},
	}
}

func (c *Channel) queryFloat(cmd string) (float64, error) {
	resp, err := c.t.Query(c.source(cmd))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("channel %d %s: bad reply %q", c.n, cmd, resp)
	}
	return v, nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'G', -1, 64) }

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
