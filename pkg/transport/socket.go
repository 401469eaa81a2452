package transport

import (
	"context"
	"net"
	"strconv"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// DefaultSocketPort is the raw SCPI port used by LXI instruments.
const DefaultSocketPort = 5025

func init() {
	Register(LinkSocket, OpenSocket)
}

// OpenSocket connects to a raw SCPI socket. The address is "host:port" or a
// bare host combined with the port parameter.
func OpenSocket(ctx context.Context, address string, p *params.Set) (Transport, error) {
	f, err := framingFrom(p)
	if err != nil {
		return nil, err
	}
	port, err := p.Int("port", DefaultSocketPort)
	if err != nil {
		return nil, err
	}
	addr := hostPort(address, port)

	d := net.Dialer{Timeout: f.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Link: LinkSocket, Op: "dial", Addr: addr, Err: err}
	}
	return newLineConn(LinkSocket, addr, conn, f), nil
}

func hostPort(address string, port int) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}
