package transport

import (
	"context"
	"strings"
	"time"

	"github.com/ziutek/telnet"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// DefaultTelnetPort is the standard telnet port.
const DefaultTelnetPort = 23

func init() {
	Register(LinkTelnet, OpenTelnet)
}

type telnetConn struct {
	conn   *telnet.Conn
	addr   string
	f      framing
	prompt string
	closed bool
}

// OpenTelnet connects to a telnet console. When the prompt parameter is set
// the prompt is skipped after connecting and after every reply.
func OpenTelnet(ctx context.Context, address string, p *params.Set) (Transport, error) {
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	port, err := p.Int("port", DefaultTelnetPort)
	if err != nil {
		return nil, err
	}
	prompt := unescape(p.String("prompt", ""))
	addr := hostPort(address, port)

	timeout := f.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout || timeout <= 0 {
			timeout = left
		}
	}
	conn, err := telnet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &Error{Link: LinkTelnet, Op: "dial", Addr: addr, Err: err}
	}
	conn.SetUnixWriteMode(true)

	t := &telnetConn{conn: conn, addr: addr, f: f, prompt: prompt}
	if prompt != "" {
		t.arm()
		if err := conn.SkipUntil(prompt); err != nil {
			conn.Close()
			return nil, t.fail("login", err)
		}
	}
	return t, nil
}

func (t *telnetConn) fail(op string, err error) error {
	return &Error{Link: LinkTelnet, Op: op, Addr: t.addr, Err: err}
}

func (t *telnetConn) arm() {
	if t.f.timeout > 0 {
		t.conn.SetDeadline(time.Now().Add(t.f.timeout))
	}
}

func (t *telnetConn) Write(cmd string) error {
	if t.closed {
		return t.fail("write", ErrClosed)
	}
	t.arm()
	if _, err := t.conn.Write([]byte(cmd + t.f.writeTerm)); err != nil {
		return t.fail("write", err)
	}
	return nil
}

func (t *telnetConn) Read() (string, error) {
	if t.closed {
		return "", t.fail("read", ErrClosed)
	}
	t.arm()
	data, err := t.conn.ReadUntil(string(t.f.readTerm))
	if err != nil {
		return "", t.fail("read", err)
	}
	if t.prompt != "" {
		if err := t.conn.SkipUntil(t.prompt); err != nil {
			return "", t.fail("read", err)
		}
	}
	return strings.TrimRight(string(data), string(t.f.readTerm)+"\r\n"), nil
}

func (t *telnetConn) Query(cmd string) (string, error) {
	if err := t.Write(cmd); err != nil {
		return "", err
	}
	return t.Read()
}

func (t *telnetConn) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.conn.Close(); err != nil {
		return t.fail("close", err)
	}
	return nil
}
