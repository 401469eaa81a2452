package transport

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/google/gousb"
	"go.bug.st/serial"
)

// Source names where a candidate instrument was found.
type Source string

const (
	SourceUSB    Source = "usb"
	SourceMDNS   Source = "mdns"
	SourceSerial Source = "serial"
	SourceSim    Source = "simulator"
)

// Candidate is an instrument connection found on this host or its network.
// Link and Address can be passed straight to Open.
type Candidate struct {
	Source      Source
	Link        string
	Address     string
	Description string
}

// Label returns a user-friendly description for the candidate.
func (c Candidate) Label() string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("%s %s", c.Link, c.Address)
}

// DiscoverOptions selects which sources Discover scans.
type DiscoverOptions struct {
	USB    bool
	MDNS   bool
	Serial bool

	// MDNSWindow bounds how long the network is browsed.
	MDNSWindow time.Duration
}

// DefaultDiscoverOptions scans every source with a two second mDNS window.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{USB: true, MDNS: true, Serial: true, MDNSWindow: 2 * time.Second}
}

// mdnsServices maps advertised service types to the link that serves them.
var mdnsServices = map[string]string{
	"_lxi._tcp":         LinkVXI11,
	"_vxi-11._tcp":      LinkVXI11,
	"_scpi-raw._tcp":    LinkSocket,
	"_scpi-telnet._tcp": LinkTelnet,
}

// Discover enumerates candidate instruments. It always returns at least the
// simulator entry so commands can be exercised without hardware. Errors from
// individual sources are collected and returned alongside what was found.
func Discover(ctx context.Context, opts DiscoverOptions) ([]Candidate, error) {
	var (
		results []Candidate
		errs    []string
	)
	if opts.USB {
		found, err := discoverUSB(ctx)
		results = append(results, found...)
		if err != nil {
			errs = append(errs, "usb: "+err.Error())
		}
	}
	if opts.Serial {
		ports, err := serial.GetPortsList()
		if err != nil {
			errs = append(errs, "serial: "+err.Error())
		}
		for _, p := range ports {
			results = append(results, Candidate{Source: SourceSerial, Link: LinkSerial, Address: p})
		}
	}
	if opts.MDNS {
		results = append(results, discoverMDNS(ctx, opts.MDNSWindow)...)
	}

	results = append(results, Candidate{
		Source:      SourceSim,
		Link:        LinkSim,
		Address:     "0",
		Description: "Simulator (no hardware)",
	})

	if len(errs) > 0 {
		return results, fmt.Errorf("discover: %s", strings.Join(errs, "; "))
	}
	return results, nil
}

// discoverUSB lists devices exposing a USBTMC interface.
func discoverUSB(ctx context.Context) ([]Candidate, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return isUSBTMC(desc)
	})

	var results []Candidate
	for _, dev := range devs {
		serialNo, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		addr := fmt.Sprintf("%04X:%04X", uint16(dev.Desc.Vendor), uint16(dev.Desc.Product))
		if serialNo != "" {
			addr += ":" + serialNo
		}
		results = append(results, Candidate{
			Source:      SourceUSB,
			Link:        LinkUSB,
			Address:     addr,
			Description: strings.TrimSpace(fmt.Sprintf("%s %s", manufacturer, product)),
		})
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	return results, nil
}

func isUSBTMC(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.Class(USBTMCClass) && alt.SubClass == gousb.Class(USBTMCSubClass) {
					return true
				}
			}
		}
	}
	return false
}

// discoverMDNS browses every instrument service type for window and merges
// entries by link and address.
func discoverMDNS(ctx context.Context, window time.Duration) []Candidate {
	if window <= 0 {
		window = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[string]Candidate{}
		wg   sync.WaitGroup
	)
	for service, link := range mdnsServices {
		entries := make(chan *zeroconf.ServiceEntry)
		removed := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return
					}
					if c, ok := entryToCandidate(entry, link); ok {
						mu.Lock()
						seen[c.Link+" "+c.Address] = c
						mu.Unlock()
					}
				case <-removed:
				case <-ctx.Done():
					return
				}
			}
		}(link)

		go func(service string) {
			_ = zeroconf.Browse(ctx, service, "local", entries, removed)
		}(service)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	out := make([]Candidate, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Link != out[j].Link {
			return out[i].Link < out[j].Link
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func entryToCandidate(entry *zeroconf.ServiceEntry, link string) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}
	host := strings.TrimSuffix(entry.HostName, ".")
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	}
	if host == "" {
		return Candidate{}, false
	}

	addr := host
	if link == LinkSocket || link == LinkTelnet {
		addr = net.JoinHostPort(host, strconv.Itoa(entry.Port))
	}
	return Candidate{
		Source:      SourceMDNS,
		Link:        link,
		Address:     addr,
		Description: entry.Instance,
	}, true
}
