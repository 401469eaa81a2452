package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// DefaultUSBReadSize bounds a single REQUEST_DEV_DEP_MSG_IN.
const DefaultUSBReadSize = 1 << 16

func init() {
	Register(LinkUSB, OpenUSB)
}

// USBTransport talks USBTMC to a test and measurement class device over its
// bulk endpoints.
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	proto USBTMCProtocol
	f     framing
	addr  string
}

// parseUSBAddress splits "VID:PID[:SERIAL]" with hexadecimal ids.
func parseUSBAddress(address string) (vid, pid uint16, serial string, err error) {
	parts := strings.SplitN(address, ":", 3)
	if len(parts) < 2 {
		return 0, 0, "", fmt.Errorf("usb address %q: want VID:PID[:SERIAL]", address)
	}
	ids := make([]uint16, 2)
	for i, s := range parts[:2] {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		n, perr := strconv.ParseUint(s, 16, 16)
		if perr != nil {
			return 0, 0, "", fmt.Errorf("usb address %q: bad id %q", address, parts[i])
		}
		ids[i] = uint16(n)
	}
	if len(parts) == 3 {
		serial = parts[2]
	}
	return ids[0], ids[1], serial, nil
}

// OpenUSB opens the USBTMC device at address "VID:PID[:SERIAL]".
func OpenUSB(ctx context.Context, address string, p *params.Set) (Transport, error) {
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	vid, pid, serial, err := parseUSBAddress(address)
	if err != nil {
		return nil, &Error{Link: LinkUSB, Op: "open", Addr: address, Err: err}
	}

	uctx := gousb.NewContext()
	dev, err := openUSBDevice(uctx, vid, pid, serial)
	if err != nil {
		uctx.Close()
		return nil, &Error{Link: LinkUSB, Op: "open", Addr: address, Err: err}
	}

	// Not fatal on all platforms.
	_ = dev.SetAutoDetach(true)

	t := &USBTransport{ctx: uctx, dev: dev, f: f, addr: address}
	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, &Error{Link: LinkUSB, Op: "open", Addr: address, Err: err}
	}
	return t, nil
}

func openUSBDevice(uctx *gousb.Context, vid, pid uint16, serial string) (*gousb.Device, error) {
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	var found *gousb.Device
	for _, d := range devs {
		if found == nil {
			if serial == "" {
				found = d
				continue
			}
			if sn, _ := d.SerialNumber(); sn == serial {
				found = d
				continue
			}
		}
		d.Close()
	}
	if found == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}
	return found, nil
}

// claimInterface finds and claims the USBTMC interface.
func (t *USBTransport) claimInterface() error {
	num, err := t.dev.ActiveConfigNum()
	if err != nil {
		num = 1
	}
	cfg, err := t.dev.Config(num)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	t.cfg = cfg

	intfNum := -1
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) == 0 {
			continue
		}
		alt := intf.AltSettings[0]
		if alt.Class == gousb.Class(USBTMCClass) && alt.SubClass == gousb.Class(USBTMCSubClass) {
			intfNum = intf.Number
			break
		}
	}
	if intfNum == -1 {
		return fmt.Errorf("no USBTMC interface")
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}
	t.intf = intf
	return t.findEndpoints()
}

// findEndpoints opens the bulk IN and OUT endpoints.
func (t *USBTransport) findEndpoints() error {
	var outAddr, inAddr int
	for _, ep := range t.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outAddr == 0 {
				outAddr = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inAddr == 0 {
				inAddr = ep.Number
			}
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}
	if inAddr == 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	epOut, err := t.intf.OutEndpoint(outAddr)
	if err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	t.epOut = epOut

	epIn, err := t.intf.InEndpoint(inAddr)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	t.epIn = epIn
	return nil
}

func (t *USBTransport) fail(op string, err error) error {
	return &Error{Link: LinkUSB, Op: op, Addr: t.addr, Err: err}
}

func (t *USBTransport) opContext() (context.Context, context.CancelFunc) {
	if t.f.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), t.f.timeout)
}

func (t *USBTransport) Write(cmd string) error {
	if t.epOut == nil {
		return t.fail("write", ErrClosed)
	}
	ctx, cancel := t.opContext()
	defer cancel()

	msg := t.proto.EncodeDevDepMsgOut(t.proto.NextTag(), []byte(cmd+t.f.writeTerm), true)
	if _, err := t.epOut.WriteContext(ctx, msg); err != nil {
		return t.fail("write", err)
	}
	return nil
}

func (t *USBTransport) Read() (string, error) {
	if t.epIn == nil {
		return "", t.fail("read", ErrClosed)
	}
	ctx, cancel := t.opContext()
	defer cancel()

	var out []byte
	deadline := time.Now().Add(t.f.timeout)
	for {
		tag := t.proto.NextTag()
		req := t.proto.EncodeRequestDevDepMsgIn(tag, DefaultUSBReadSize, t.f.readTerm, true)
		if _, err := t.epOut.WriteContext(ctx, req); err != nil {
			return "", t.fail("read", err)
		}
		buf := make([]byte, usbtmcHeaderSize+DefaultUSBReadSize+3)
		n, err := t.epIn.ReadContext(ctx, buf)
		if err != nil {
			return "", t.fail("read", err)
		}
		data, eom, err := t.proto.DecodeDevDepMsgIn(tag, buf[:n])
		if err != nil {
			return "", t.fail("read", err)
		}
		out = append(out, data...)
		if eom {
			break
		}
		if t.f.timeout > 0 && time.Now().After(deadline) {
			return "", t.fail("read", ErrTimeout)
		}
	}
	return strings.TrimRight(string(out), string(t.f.readTerm)+"\r\n"), nil
}

func (t *USBTransport) Query(cmd string) (string, error) {
	if err := t.Write(cmd); err != nil {
		return "", err
	}
	return t.Read()
}

// Close releases USB resources. It is idempotent.
func (t *USBTransport) Close() error {
	t.epIn, t.epOut = nil, nil
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	var err error
	if t.cfg != nil {
		err = t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		if cerr := t.dev.Close(); err == nil {
			err = cerr
		}
		t.dev = nil
	}
	if t.ctx != nil {
		if cerr := t.ctx.Close(); err == nil {
			err = cerr
		}
		t.ctx = nil
	}
	if err != nil {
		return t.fail("close", err)
	}
	return nil
}
