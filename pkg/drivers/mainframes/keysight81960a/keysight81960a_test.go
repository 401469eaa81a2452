package keysight81960a

import (
	"reflect"
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func TestSweep(t *testing.T) {
	sim := transport.NewSim("20")
	l := NewLaser(sim, 2)

	if err := l.Sweep(1520, 1570, 40); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	want := []string{
		"SOUR2:WAV:SWE:MODE CONT",
		"SOUR2:WAV:SWE:STAR 1520NM",
		"SOUR2:WAV:SWE:STOP 1570NM",
		"SOUR2:WAV:SWE:SPE 40NM/S",
		"SOUR2:WAV:SWE STAR",
	}
	if got := sim.Writes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("writes = %q, want %q", got, want)
	}
}

func TestLimits(t *testing.T) {
	l := NewLaser(transport.NewSim("20"), 1)
	if err := l.Wavelength(1310); err == nil {
		t.Fatal("expected out of range error")
	}
	if err := l.Sweep(1570, 1520, 10); err == nil {
		t.Fatal("expected sweep order error")
	}
	if err := l.Power(-3); err != nil {
		t.Fatalf("Power: %v", err)
	}
}
