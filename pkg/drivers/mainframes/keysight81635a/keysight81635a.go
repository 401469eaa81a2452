// Package keysight81635a provides the 81635A dual optical power sensor as a
// part for lightwave mainframes.
package keysight81635a

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func init() {
	instrument.Register(instrument.Module{
		Root:        "mainframes",
		Name:        "Keysight81635A",
		Description: "Keysight 81635A dual power sensor module",
		Parts: map[string]instrument.PartFactory{
			"PowerSensor": func(t transport.Transport, slot int) (any, error) {
				return NewSensor(t, slot, 1), nil
			},
			"PowerSensor2": func(t transport.Transport, slot int) (any, error) {
				return NewSensor(t, slot, 2), nil
			},
		},
	})
}

// Sensor is one head of an 81635A sitting in a mainframe slot.
type Sensor struct {
	t       transport.Transport
	slot    int
	channel int
}

// NewSensor addresses channel of the module in slot.
func NewSensor(t transport.Transport, slot, channel int) *Sensor {
	return &Sensor{t: t, slot: slot, channel: channel}
}

func (s *Sensor) prefix(sub string) string {
	return fmt.Sprintf("%s%d:CHAN%d:", sub, s.slot, s.channel)
}

// Wavelength sets the calibration wavelength in nanometres.
func (s *Sensor) Wavelength(nm float64) error {
	return s.t.Write(s.prefix("SENS") + "POW:WAV " + strconv.FormatFloat(nm, 'f', -1, 64) + "NM")
}

// Unit selects "dBm" or "W".
func (s *Sensor) Unit(name string) error {
	switch strings.ToLower(name) {
	case "dbm":
		return s.t.Write(s.prefix("SENS") + "POW:UNIT 0")
	case "w":
		return s.t.Write(s.prefix("SENS") + "POW:UNIT 1")
	}
	return fmt.Errorf("unit %q: want dBm or W", name)
}

// AveragingTime sets the integration time in seconds.
func (s *Sensor) AveragingTime(seconds float64) error {
	return s.t.Write(s.prefix("SENS") + "POW:ATIM " + strconv.FormatFloat(seconds, 'G', -1, 64) + "S")
}

// Power fetches the last reading.
func (s *Sensor) Power() (float64, error) {
	resp, err := s.t.Query(s.prefix("FETC") + "POW?")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("slot %d: bad power reading %q", s.slot, resp)
	}
	return v, nil
}

func (s *Sensor) ArgNames() map[string][]string {
	return map[string][]string{
		"Wavelength":    {"nm"},
		"Unit":          {"name"},
		"AveragingTime": {"seconds"},
	}
}
