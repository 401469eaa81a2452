package hp437b

import (
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func TestPower(t *testing.T) {
	sim := transport.NewSim("13")
	sim.OnQuery = func(cmd string) (string, bool, error) {
		if cmd == "TR2" {
			return "-12.34E+00", true, nil
		}
		return "", false, nil
	}
	m := New(sim)

	if err := m.Unit("dBm"); err != nil {
		t.Fatalf("Unit: %v", err)
	}
	p, err := m.Power()
	if err != nil {
		t.Fatalf("Power: %v", err)
	}
	if p != -12.34 {
		t.Fatalf("Power = %v, want -12.34", p)
	}
	if got := sim.LastWrite(); got != "TR2" {
		t.Fatalf("last write = %q", got)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Meter) error
		want string
	}{
		{"zero", (*Meter).Zero, "ZE"},
		{"offset", func(m *Meter) error { return m.Offset(-3.5) }, "OS-3.50EN"},
		{"calibrate", func(m *Meter) error { return m.Calibrate(98) }, "CL98.0EN"},
		{"display", func(m *Meter) error { return m.DisplayUser("hello from the lab") }, "DUhello from t"},
		{"watts", func(m *Meter) error { return m.Unit("W") }, "LN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := transport.NewSim("13")
			if err := tt.run(New(sim)); err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := sim.LastWrite(); got != tt.want {
				t.Fatalf("wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnitRejectsUnknown(t *testing.T) {
	if err := New(transport.NewSim("13")).Unit("furlongs"); err == nil {
		t.Fatal("expected error")
	}
}

func TestUnitsString(t *testing.T) {
	if DBM.String() != "dBm" || Watts.String() != "W" {
		t.Fatalf("unexpected names %s %s", DBM, Watts)
	}
}
