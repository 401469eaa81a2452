// Package rigolds1000z drives the Rigol DS1000Z/MSO1000Z oscilloscopes.
package rigolds1000z

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
		Root:        "oscilloscopes",
		Name:        "RigolDS1000Z",
		Description: "Rigol DS1000Z series four channel oscilloscope",
		Backends: instrument.Over(build,
			transport.LinkVISA, transport.LinkUSB, transport.LinkSocket,
			transport.LinkVXI11, transport.LinkSim),
	})
}

func build(t transport.Transport, _ instrument.Conn) (instrument.Instance, error) {
	return New(t), nil
}

// Measurement items accepted by Channel.Measure.
var items = []string{
	"VMAX", "VMIN", "VPP", "VTOP", "VBASE", "VAMP", "VAVG", "VRMS",
	"OVERSHOOT", "PRESHOOT", "PERIOD", "FREQUENCY", "RTIME", "FTIME",
	"PWIDTH", "NWIDTH", "PDUTY", "NDUTY",
}

// Scope is a DS1000Z with four analog channels and an edge trigger.
type Scope struct {
	transport.Transport

	Channel1 *Channel
	Channel2 *Channel
	Channel3 *Channel
	Channel4 *Channel
	Trigger  *Trigger
}

// New wraps an open transport.
func New(t transport.Transport) *Scope {
	return &Scope{
		Transport: t,
		Channel1:  &Channel{t: t, n: 1},
		Channel2:  &Channel{t: t, n: 2},
		Channel3:  &Channel{t: t, n: 3},
		Channel4:  &Channel{t: t, n: 4},
		Trigger:   &Trigger{t: t},
	}
}

func (s *Scope) Identify() (string, error) { return s.Query("*IDN?") }

func (s *Scope) Run() error       { return s.Write(":RUN") }
func (s *Scope) Stop() error      { return s.Write(":STOP") }
func (s *Scope) Single() error    { return s.Write(":SING") }
func (s *Scope) Autoscale() error { return s.Write(":AUT") }
func (s *Scope) Clear() error     { return s.Write(":CLE") }

// Timebase sets the horizontal scale in seconds per division.
func (s *Scope) Timebase(seconds float64) error {
	return s.Write(":TIM:MAIN:SCAL " + num(seconds))
}

func (s *Scope) GetTimebase() (float64, error) { return queryFloat(s, ":TIM:MAIN:SCAL?") }

// SampleRate returns the current sample rate in samples per second.
func (s *Scope) SampleRate() (float64, error) { return queryFloat(s, ":ACQ:SRAT?") }

func (s *Scope) ArgNames() map[string][]string {
	return map[string][]string{"Timebase": {"seconds"}}
}

func (s *Scope) DriverModel() []instrument.ModelElement {
	model := []instrument.ModelElement{
		{Kind: instrument.Action, Name: "Run", Write: "I.run"},
		{Kind: instrument.Action, Name: "Stop", Write: "I.stop"},
		{Kind: instrument.Action, Name: "Single", Write: "I.single"},
		{Kind: instrument.Action, Name: "Autoscale", Write: "I.autoscale"},
		{Kind: instrument.Variable, Name: "Timebase", Read: "I.get_timebase", Write: "I.timebase", Unit: "s/div"},
		{Kind: instrument.Submodule, Name: "trigger"},
	}
	for n := 1; n <= 4; n++ {
		model = append(model, instrument.ModelElement{
			Kind: instrument.Submodule,
			Name: fmt.Sprintf("channel%d", n),
			Help: fmt.Sprintf("analog input %d", n),
		})
	}
	return model
}

// Channel is one analog input.
type Channel struct {
	t transport.Transport
	n int
}

func (c *Channel) cmd(s string) string { return fmt.Sprintf(":CHAN%d:%s", c.n, s) }

func (c *Channel) Display(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return c.t.Write(c.cmd("DISP " + v))
}

// Scale sets the vertical scale in volts per division.
func (c *Channel) Scale(volts float64) error { return c.t.Write(c.cmd("SCAL " + num(volts))) }

func (c *Channel) GetScale() (float64, error) { return queryFloat(c.t, c.cmd("SCAL?")) }

func (c *Channel) Offset(volts float64) error { return c.t.Write(c.cmd("OFFS " + num(volts))) }

// Coupling selects AC, DC or GND.
func (c *Channel) Coupling(mode string) error {
	mode = strings.ToUpper(mode)
	switch mode {
	case "AC", "DC", "GND":
		return c.t.Write(c.cmd("COUP " + mode))
	}
	return fmt.Errorf("coupling %q: want AC, DC or GND", mode)
}

// Probe sets the probe attenuation ratio.
func (c *Channel) Probe(ratio float64) error { return c.t.Write(c.cmd("PROB " + num(ratio))) }

// Measure returns one automatic measurement of this channel.
func (c *Channel) Measure(item string) (float64, error) {
	item = strings.ToUpper(item)
	for _, it := range items {
		if it == item {
			return queryFloat(c.t, fmt.Sprintf(":MEAS:ITEM? %s,CHAN%d", item, c.n))
		}
	}
	return 0, fmt.Errorf("unknown measurement %q (items: %s)", item, strings.Join(items, ", "))
}

func (c *Channel) ArgNames() map[string][]string {
	return map[string][]string{
		"Display":  {"on"},
		"Scale":    {"volts"},
		"Offset":   {"volts"},
		"Coupling": {"mode"},
		"Probe":    {"ratio"},
		"Measure":  {"item"},
	}
}

// Trigger is the edge trigger.
type Trigger struct {
	t transport.Transport
}

// Source selects CHAN1..CHAN4 or AC as trigger source.
func (tr *Trigger) Source(src string) error {
	return tr.t.Write(":TRIG:EDG:SOUR " + strings.ToUpper(src))
}

func (tr *Trigger) Level(volts float64) error { return tr.t.Write(":TRIG:EDG:LEV " + num(volts)) }

// Slope selects POS, NEG or RFAL.
func (tr *Trigger) Slope(slope string) error {
	return tr.t.Write(":TRIG:EDG:SLOP " + strings.ToUpper(slope))
}

// Sweep selects AUTO, NORM or SING.
func (tr *Trigger) Sweep(mode string) error {
	return tr.t.Write(":TRIG:SWE " + strings.ToUpper(mode))
}

func (tr *Trigger) Status() (string, error) { return tr.t.Query(":TRIG:STAT?") }

func (tr *Trigger) ArgNames() map[string][]string {
	return map[string][]string{
		"Source": {"src"},
		"Level":  {"volts"},
		"Slope":  {"slope"},
		"Sweep":  {"mode"},
	}
}

func queryFloat(t transport.Transport, cmd string) (float64, error) {
	resp, err := t.Query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", cmd)
	}
	return v, nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'E', -1, 64) }
