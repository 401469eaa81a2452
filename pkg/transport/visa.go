package transport

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

func init() {
	Register(LinkVISA, OpenVISA)
}

// Resource is a VISA resource string resolved to a native backend.
type Resource struct {
	Link    string
	Address string
	Params  map[string]string
}

var (
	reTCPIPInstr  = regexp.MustCompile(`(?i)^TCPIP\d*::([^:]+)(?:::([^:]+))?::INSTR$`)
	reTCPIPSocket = regexp.MustCompile(`(?i)^TCPIP\d*::([^:]+)::(\d+)::SOCKET$`)
	reUSBInstr    = regexp.MustCompile(`(?i)^USB\d*::(0x[0-9a-f]+|\d+)::(0x[0-9a-f]+|\d+)(?:::([^:]+))?(?:::\d+)?::INSTR$`)
	reGPIBInstr   = regexp.MustCompile(`(?i)^GPIB(\d*)::(\d+)(?:::\d+)?::INSTR$`)
	reASRLInstr   = regexp.MustCompile(`(?i)^ASRL([^:]+)::INSTR$`)
)

// ParseResource maps a VISA resource string to the backend that serves it.
func ParseResource(resource string) (Resource, error) {
	s := strings.TrimSpace(resource)
	if m := reTCPIPSocket.FindStringSubmatch(s); m != nil {
		return Resource{Link: LinkSocket, Address: m[1], Params: map[string]string{"port": m[2]}}, nil
	}
	if m := reTCPIPInstr.FindStringSubmatch(s); m != nil {
		addr := m[1]
		if m[2] != "" {
			addr += "::" + m[2]
		}
		return Resource{Link: LinkVXI11, Address: addr}, nil
	}
	if m := reUSBInstr.FindStringSubmatch(s); m != nil {
		vid, err := strconv.ParseUint(m[1], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("visa: bad vendor id in %q", resource)
		}
		pid, err := strconv.ParseUint(m[2], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("visa: bad product id in %q", resource)
		}
		addr := fmt.Sprintf("%04X:%04X", vid, pid)
		if m[3] != "" {
			addr += ":" + m[3]
		}
		return Resource{Link: LinkUSB, Address: addr}, nil
	}
	if m := reGPIBInstr.FindStringSubmatch(s); m != nil {
		board := m[1]
		if board == "" {
			board = "0"
		}
		return Resource{Link: LinkGPIB, Address: m[2], Params: map[string]string{"board_index": board}}, nil
	}
	if m := reASRLInstr.FindStringSubmatch(s); m != nil {
		port := m[1]
		if _, err := strconv.Atoi(port); err == nil {
			port = "COM" + port
		}
		return Resource{Link: LinkSerial, Address: port}, nil
	}
	return Resource{}, fmt.Errorf("visa: unsupported resource %q", resource)
}

// OpenVISA resolves a VISA resource string and opens the matching backend.
// Parameters implied by the resource string act as defaults.
func OpenVISA(ctx context.Context, address string, p *params.Set) (Transport, error) {
	res, err := ParseResource(address)
	if err != nil {
		return nil, &Error{Link: LinkVISA, Op: "open", Addr: address, Err: err}
	}
	for k, v := range res.Params {
		p.SetDefault(k, v)
	}
	o, ok := Lookup(res.Link)
	if !ok {
		return nil, &Error{Link: LinkVISA, Op: "open", Addr: address, Err: fmt.Errorf("no backend for %s", res.Link)}
	}
	return o(ctx, res.Address, p)
}
