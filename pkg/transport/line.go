package transport

import (
	"bufio"
	"io"
	"strings"
	"time"
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// lineConn frames SCPI messages over any byte stream: each write is the
// command plus the write termination, each read returns one line.
type lineConn struct {
	link   string
	addr   string
	rw     io.ReadWriteCloser
	r      *bufio.Reader
	f      framing
	closed bool
}

func newLineConn(link, addr string, rw io.ReadWriteCloser, f framing) *lineConn {
	return &lineConn{
		link: link,
		addr: addr,
		rw:   rw,
		r:    bufio.NewReader(rw),
		f:    f,
	}
}

func (c *lineConn) fail(op string, err error) error {
	return &Error{Link: c.link, Op: op, Addr: c.addr, Err: err}
}

// arm refreshes the I/O deadline when the medium supports one.
func (c *lineConn) arm() error {
	if c.f.timeout <= 0 {
		return nil
	}
	if d, ok := c.rw.(deadliner); ok {
		return d.SetDeadline(time.Now().Add(c.f.timeout))
	}
	return nil
}

func (c *lineConn) Write(cmd string) error {
	if c.closed {
		return c.fail("write", ErrClosed)
	}
	if err := c.arm(); err != nil {
		return c.fail("write", err)
	}
	if _, err := io.WriteString(c.rw, cmd+c.f.writeTerm); err != nil {
		return c.fail("write", err)
	}
	return nil
}

func (c *lineConn) Read() (string, error) {
	if c.closed {
		return "", c.fail("read", ErrClosed)
	}
	if err := c.arm(); err != nil {
		return "", c.fail("read", err)
	}
	line, err := c.r.ReadString(c.f.readTerm)
	if err != nil {
		return "", c.fail("read", err)
	}
	return strings.TrimRight(line, string(c.f.readTerm)+"\r\n"), nil
}

func (c *lineConn) Query(cmd string) (string, error) {
	if err := c.Write(cmd); err != nil {
		return "", err
	}
	return c.Read()
}

// Close is idempotent.
func (c *lineConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rw.Close(); err != nil {
		return c.fail("close", err)
	}
	return nil
}
