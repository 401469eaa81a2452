// Package keysight81960a provides the 81960A tunable laser as a part for
// lightwave mainframes.
package keysight81960a

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func init() {
	instrument.Register(instrument.Module{
		Root:        "mainframes",
		Name:        "Keysight81960A",
		Description: "Keysight 81960A compact tunable laser",
		Parts: map[string]instrument.PartFactory{
			"Laser": func(t transport.Transport, slot int) (any, error) {
				return NewLaser(t, slot), nil
			},
		},
	})
}

// Tuning range of the 81960A in nanometres.
const (
	MinWavelength = 1505.0
	MaxWavelength = 1630.0
)

// Laser is an 81960A in a mainframe slot.
type Laser struct {
	t    transport.Transport
	slot int
}

// NewLaser addresses the laser in slot.
func NewLaser(t transport.Transport, slot int) *Laser {
	return &Laser{t: t, slot: slot}
}

func (l *Laser) sour(cmd string) string { return fmt.Sprintf("SOUR%d:%s", l.slot, cmd) }

func (l *Laser) Wavelength(nm float64) error {
	if nm < MinWavelength || nm > MaxWavelength {
		return fmt.Errorf("wavelength %g nm outside %g..%g", nm, MinWavelength, MaxWavelength)
	}
	return l.t.Write(l.sour("WAV " + nmArg(nm)))
}

// Power sets the output power in dBm.
func (l *Laser) Power(dbm float64) error {
	return l.t.Write(l.sour("POW " + strconv.FormatFloat(dbm, 'f', -1, 64) + "DBM"))
}

func (l *Laser) Output(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return l.t.Write(l.sour("POW:STAT " + v))
}

// Sweep configures and starts a continuous sweep between start and stop at
// speed nm/s.
func (l *Laser) Sweep(start, stop, speed float64) error {
	if start >= stop {
		return fmt.Errorf("sweep start %g must be below stop %g", start, stop)
	}
	for _, cmd := range []string{
		"WAV:SWE:MODE CONT",
		"WAV:SWE:STAR " + nmArg(start),
		"WAV:SWE:STOP " + nmArg(stop),
		"WAV:SWE:SPE " + strconv.FormatFloat(speed, 'f', -1, 64) + "NM/S",
		"WAV:SWE STAR",
	} {
		if err := l.t.Write(l.sour(cmd)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Laser) ArgNames() map[string][]string {
	return map[string][]string{
		"Wavelength": {"nm"},
		"Power":      {"dbm"},
		"Output":     {"on"},
		"Sweep":      {"start", "stop", "speed"},
	}
}

func nmArg(nm float64) string { return strconv.FormatFloat(nm, 'f', -1, 64) + "NM" }
