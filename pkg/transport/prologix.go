package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

func init() {
	Register(LinkGPIB, OpenGPIB)
}

// prologixConn drives one GPIB instrument through a Prologix GPIB-USB
// controller. Controller commands start with "++"; instrument data is
// escaped so the controller passes it through verbatim.
type prologixConn struct {
	line      *lineConn
	writeTerm string
}

// OpenGPIB opens the controller named by the port parameter, or
// /dev/ttyUSB<board_index> when only the board index is given, and addresses
// the instrument at the given primary address.
func OpenGPIB(ctx context.Context, address string, p *params.Set) (Transport, error) {
	pad, err := strconv.Atoi(strings.TrimSpace(address))
	if err != nil || pad < 0 || pad > 30 {
		return nil, &Error{Link: LinkGPIB, Op: "open", Addr: address, Err: fmt.Errorf("primary address must be 0..30")}
	}
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	board, err := p.Int("board_index", 0)
	if err != nil {
		return nil, err
	}
	name := p.String("port", fmt.Sprintf("/dev/ttyUSB%d", board))

	p.SetDefault("baud", "115200")
	port, err := openPort(name, p, f)
	if err != nil {
		return nil, err
	}

	ctl := framing{timeout: f.timeout, writeTerm: "\n", readTerm: f.readTerm}
	c := &prologixConn{
		line:      newLineConn(LinkGPIB, fmt.Sprintf("%s#%d", name, pad), serialStream{port}, ctl),
		writeTerm: f.writeTerm,
	}
	for _, cmd := range []string{"++mode 1", "++auto 0", "++eos 3", "++eoi 1", fmt.Sprintf("++addr %d", pad)} {
		if err := c.line.Write(cmd); err != nil {
			c.line.Close()
			return nil, err
		}
	}
	return c, nil
}

// prologixEscape prefixes CR, LF, ESC and '+' with ESC.
func prologixEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r', '\n', 0x1b, '+':
			b.WriteByte(0x1b)
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (c *prologixConn) Write(cmd string) error {
	return c.line.Write(prologixEscape(cmd + c.writeTerm))
}

func (c *prologixConn) Read() (string, error) {
	if err := c.line.Write("++read eoi"); err != nil {
		return "", err
	}
	return c.line.Read()
}

func (c *prologixConn) Query(cmd string) (string, error) {
	if err := c.Write(cmd); err != nil {
		return "", err
	}
	return c.Read()
}

func (c *prologixConn) Close() error {
	if !c.line.closed {
		// Hand the instrument back to front-panel control.
		c.line.Write("++loc")
	}
	return c.line.Close()
}
