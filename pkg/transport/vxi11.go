package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// VXI-11 core channel.
const (
	vxi11Prog = 0x0607AF
	vxi11Vers = 1

	procCreateLink  = 10
	procDeviceWrite = 11
	procDeviceRead  = 12
	procDestroyLink = 23

	flagTermChrSet = 0x80
	flagEnd        = 0x08

	defaultVXI11Device = "inst0"
	defaultMaxRecvSize = 1024
)

// portmapperPort is the well-known rpcbind port.
var portmapperPort = 111

func init() {
	Register(LinkVXI11, OpenVXI11)
}

type vxi11Conn struct {
	rpc     *rpcClient
	addr    string
	f       framing
	lid     int32
	maxRecv uint32
	closed  bool
}

// splitVXI11Address parses "host[::device]".
func splitVXI11Address(address string) (host, device string) {
	host, device, ok := strings.Cut(address, "::")
	if !ok || device == "" {
		device = defaultVXI11Device
	}
	return host, device
}

// OpenVXI11 opens a core channel link to a LAN instrument. The core port is
// resolved through the portmapper unless the port parameter is given.
func OpenVXI11(ctx context.Context, address string, p *params.Set) (Transport, error) {
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	port, err := p.Int("port", 0)
	if err != nil {
		return nil, err
	}
	host, device := splitVXI11Address(address)
	d := net.Dialer{Timeout: f.timeout}

	fail := func(op string, err error) error {
		return &Error{Link: LinkVXI11, Op: op, Addr: address, Err: err}
	}

	if port == 0 {
		pm, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(portmapperPort)))
		if err != nil {
			return nil, fail("portmap", err)
		}
		armConn(pm, f.timeout)
		port, err = getPort(pm, vxi11Prog, vxi11Vers)
		pm.Close()
		if err != nil {
			return nil, fail("portmap", err)
		}
	}

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fail("dial", err)
	}
	c := &vxi11Conn{
		rpc:  &rpcClient{conn: conn, prog: vxi11Prog, vers: vxi11Vers},
		addr: address,
		f:    f,
	}

	var w xdrWriter
	w.int32(int32(rpcXID.Load() & 0x7fffffff)) // client id
	w.bool(false)                               // lockDevice
	w.uint32(c.timeoutMillis())
	w.string(device)
	armConn(conn, f.timeout)
	r, err := c.rpc.call(procCreateLink, w.buf)
	if err != nil {
		conn.Close()
		return nil, fail("create_link", err)
	}
	code := r.int32()
	c.lid = r.int32()
	r.uint32() // abort port
	c.maxRecv = r.uint32()
	if r.err != nil {
		conn.Close()
		return nil, fail("create_link", r.err)
	}
	if code != 0 {
		conn.Close()
		return nil, fail("create_link", deviceError(code))
	}
	if c.maxRecv == 0 {
		c.maxRecv = defaultMaxRecvSize
	}
	return c, nil
}

func armConn(conn net.Conn, timeout time.Duration) {
	if timeout > 0 {
		conn.SetDeadline(time.Now().Add(timeout))
	}
}

func deviceError(code int32) error {
	return fmt.Errorf("device error %d", code)
}

func (c *vxi11Conn) fail(op string, err error) error {
	return &Error{Link: LinkVXI11, Op: op, Addr: c.addr, Err: err}
}

func (c *vxi11Conn) timeoutMillis() uint32 {
	return uint32(c.f.timeout / time.Millisecond)
}

func (c *vxi11Conn) Write(cmd string) error {
	if c.closed {
		return c.fail("write", ErrClosed)
	}
	data := []byte(cmd + c.f.writeTerm)
	for {
		chunk := data
		var flags uint32
		if uint32(len(chunk)) > c.maxRecv {
			chunk = chunk[:c.maxRecv]
		} else {
			flags = flagEnd
		}

		var w xdrWriter
		w.int32(c.lid)
		w.uint32(c.timeoutMillis())
		w.uint32(c.timeoutMillis())
		w.uint32(flags)
		w.opaque(chunk)
		armConn(c.rpc.conn, c.f.timeout)
		r, err := c.rpc.call(procDeviceWrite, w.buf)
		if err != nil {
			return c.fail("write", err)
		}
		code := r.int32()
		size := r.uint32()
		if r.err != nil {
			return c.fail("write", r.err)
		}
		if code != 0 {
			return c.fail("write", deviceError(code))
		}
		if size == 0 || int(size) > len(data) {
			return c.fail("write", fmt.Errorf("device accepted %d of %d bytes", size, len(data)))
		}
		data = data[size:]
		if len(data) == 0 {
			return nil
		}
	}
}

func (c *vxi11Conn) Read() (string, error) {
	if c.closed {
		return "", c.fail("read", ErrClosed)
	}
	var out []byte
	for {
		var w xdrWriter
		w.int32(c.lid)
		w.uint32(DefaultUSBReadSize)
		w.uint32(c.timeoutMillis())
		w.uint32(c.timeoutMillis())
		w.uint32(flagTermChrSet)
		w.int32(int32(c.f.readTerm))
		armConn(c.rpc.conn, c.f.timeout)
		r, err := c.rpc.call(procDeviceRead, w.buf)
		if err != nil {
			return "", c.fail("read", err)
		}
		code := r.int32()
		reason := r.uint32()
		data := r.opaque()
		if r.err != nil {
			return "", c.fail("read", r.err)
		}
		if code != 0 {
			return "", c.fail("read", deviceError(code))
		}
		out = append(out, data...)
		// Any of REQCNT, CHR or END terminates the read.
		if reason != 0 {
			break
		}
	}
	return strings.TrimRight(string(out), string(c.f.readTerm)+"\r\n"), nil
}

func (c *vxi11Conn) Query(cmd string) (string, error) {
	if err := c.Write(cmd); err != nil {
		return "", err
	}
	return c.Read()
}

// Close destroys the link. It is idempotent.
func (c *vxi11Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var w xdrWriter
	w.int32(c.lid)
	armConn(c.rpc.conn, c.f.timeout)
	_, callErr := c.rpc.call(procDestroyLink, w.buf)
	if err := c.rpc.conn.Close(); err != nil && callErr == nil {
		callErr = err
	}
	if callErr != nil {
		return c.fail("close", callErr)
	}
	return nil
}
