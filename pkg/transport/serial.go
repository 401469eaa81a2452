package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// DefaultBaudRate is used when the baud parameter is absent.
const DefaultBaudRate = 9600

// ErrTimeout is reported when a serial read expires without data.
var ErrTimeout = errors.New("timeout")

func init() {
	Register(LinkSerial, OpenSerial)
}

// serialStream adapts a serial.Port to io.ReadWriteCloser. The port signals a
// read timeout with (0, nil), which is turned into ErrTimeout.
type serialStream struct {
	port serial.Port
}

func (s serialStream) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

func (s serialStream) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s serialStream) Close() error                { return s.port.Close() }

// OpenSerial opens a serial port by device name (/dev/ttyUSB0, COM3).
func OpenSerial(ctx context.Context, address string, p *params.Set) (Transport, error) {
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	port, err := openPort(address, p, f)
	if err != nil {
		return nil, err
	}
	return newLineConn(LinkSerial, address, serialStream{port}, f), nil
}

func openPort(name string, p *params.Set, f framing) (serial.Port, error) {
	mode, err := serialMode(p)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, &Error{Link: LinkSerial, Op: "open", Addr: name, Err: err}
	}
	if f.timeout > 0 {
		if err := port.SetReadTimeout(f.timeout); err != nil {
			port.Close()
			return nil, &Error{Link: LinkSerial, Op: "open", Addr: name, Err: err}
		}
	}
	return port, nil
}

func serialMode(p *params.Set) (*serial.Mode, error) {
	baud, err := p.Int("baud", DefaultBaudRate)
	if err != nil {
		return nil, err
	}
	bits, err := p.Int("data_bits", 8)
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{BaudRate: baud, DataBits: bits}

	parity := p.String("parity", "N")
	switch strings.ToUpper(parity) {
	case "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	case "M", "MARK":
		mode.Parity = serial.MarkParity
	case "S", "SPACE":
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("transport: unknown parity %q", parity)
	}

	stop := p.String("stop_bits", "1")
	switch stop {
	case "1":
		mode.StopBits = serial.OneStopBit
	case "1.5":
		mode.StopBits = serial.OnePointFiveStopBits
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("transport: unsupported stop_bits %q", stop)
	}
	return mode, nil
}
