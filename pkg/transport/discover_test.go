package transport

import (
	"context"
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
)

func TestDiscoverAlwaysOffersSimulator(t *testing.T) {
	found, err := Discover(context.Background(), DiscoverOptions{})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(found) != 1 || found[0].Link != LinkSim {
		t.Fatalf("found = %+v, want the simulator only", found)
	}
	if found[0].Label() != "Simulator (no hardware)" {
		t.Fatalf("label = %q", found[0].Label())
	}
}

func TestEntryToCandidate(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "dmm-01.local.",
		Port:     5025,
		AddrIPv4: []net.IP{net.IPv4(192, 168, 1, 40)},
	}
	entry.Instance = "Keysight 34465A"

	c, ok := entryToCandidate(entry, LinkSocket)
	if !ok {
		t.Fatalf("entry rejected")
	}
	if c.Address != "192.168.1.40:5025" || c.Description != "Keysight 34465A" {
		t.Fatalf("candidate = %+v", c)
	}

	entry.AddrIPv4 = nil
	c, _ = entryToCandidate(entry, LinkVXI11)
	if c.Address != "dmm-01.local" {
		t.Fatalf("vxi11 address = %q, want host name", c.Address)
	}

	if _, ok := entryToCandidate(&zeroconf.ServiceEntry{}, LinkVXI11); ok {
		t.Fatalf("entry without host should be rejected")
	}
}

func TestCandidateLabelFallback(t *testing.T) {
	c := Candidate{Link: LinkUSB, Address: "0957:0407"}
	if c.Label() != "USB 0957:0407" {
		t.Fatalf("label = %q", c.Label())
	}
}
