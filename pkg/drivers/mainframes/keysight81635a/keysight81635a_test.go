package keysight81635a

import (
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func TestSensor(t *testing.T) {
	sim := transport.NewSim("20")
	sim.OnQuery = func(cmd string) (string, bool, error) {
		if cmd == "FETC3:CHAN2:POW?" {
			return "-2.345E+01", true, nil
		}
		return "", false, nil
	}
	s := NewSensor(sim, 3, 2)

	if err := s.Unit("dBm"); err != nil {
		t.Fatalf("Unit: %v", err)
	}
	if err := s.AveragingTime(0.1); err != nil {
		t.Fatalf("AveragingTime: %v", err)
	}
	if got := sim.LastWrite(); got != "SENS3:CHAN2:POW:ATIM 0.1S" {
		t.Fatalf("last write = %q", got)
	}
	p, err := s.Power()
	if err != nil {
		t.Fatalf("Power: %v", err)
	}
	if p != -23.45 {
		t.Fatalf("Power = %v", p)
	}
	if err := s.Unit("lumen"); err == nil {
		t.Fatal("expected unit error")
	}
}
