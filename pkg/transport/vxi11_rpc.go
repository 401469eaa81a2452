package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
)

// ONC RPC constants (RFC 5531) used by the VXI-11 client.
const (
	rpcVersion   = 2
	rpcCall      = 0
	rpcReply     = 1
	rpcAccepted  = 0
	rpcSuccess   = 0
	lastFragment = 0x80000000

	pmapProg     = 100000
	pmapVers     = 2
	pmapGetPort  = 3
	ipProtoTCP   = 6
	maxRPCRecord = 1 << 24
)

var rpcXID atomic.Uint32

// xdrWriter appends XDR encoded values.
type xdrWriter struct {
	buf []byte
}

func (w *xdrWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *xdrWriter) int32(v int32) { w.uint32(uint32(v)) }

func (w *xdrWriter) bool(v bool) {
	if v {
		w.uint32(1)
		return
	}
	w.uint32(0)
}

func (w *xdrWriter) opaque(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	if pad := len(b) % 4; pad != 0 {
		w.buf = append(w.buf, make([]byte, 4-pad)...)
	}
}

func (w *xdrWriter) string(s string) { w.opaque([]byte(s)) }

// xdrReader consumes XDR encoded values. The first error sticks.
type xdrReader struct {
	buf []byte
	err error
}

var errShortXDR = errors.New("xdr: short buffer")

func (r *xdrReader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 4 {
		r.err = errShortXDR
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *xdrReader) int32() int32 { return int32(r.uint32()) }

func (r *xdrReader) opaque() []byte {
	n := int(r.uint32())
	if r.err != nil {
		return nil
	}
	padded := n
	if pad := n % 4; pad != 0 {
		padded += 4 - pad
	}
	if len(r.buf) < padded {
		r.err = errShortXDR
		return nil
	}
	out := r.buf[:n]
	r.buf = r.buf[padded:]
	return out
}

// rpcClient issues ONC RPC calls over one TCP stream using record marking.
type rpcClient struct {
	conn net.Conn
	prog uint32
	vers uint32
}

func writeRecord(w io.Writer, msg []byte) error {
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, lastFragment|uint32(len(msg)))
	_, err := w.Write(append(hdr, msg...))
	return err
}

func readRecord(r io.Reader) ([]byte, error) {
	var out []byte
	hdr := make([]byte, 4)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, err
		}
		mark := binary.BigEndian.Uint32(hdr)
		size := int(mark &^ lastFragment)
		if len(out)+size > maxRPCRecord {
			return nil, fmt.Errorf("rpc: record exceeds %d bytes", maxRPCRecord)
		}
		frag := make([]byte, size)
		if _, err := io.ReadFull(r, frag); err != nil {
			return nil, err
		}
		out = append(out, frag...)
		if mark&lastFragment != 0 {
			return out, nil
		}
	}
}

// call sends one procedure call with AUTH_NULL credentials and returns the
// result body.
func (c *rpcClient) call(proc uint32, args []byte) (*xdrReader, error) {
	xid := rpcXID.Add(1)

	var w xdrWriter
	w.uint32(xid)
	w.uint32(rpcCall)
	w.uint32(rpcVersion)
	w.uint32(c.prog)
	w.uint32(c.vers)
	w.uint32(proc)
	w.uint32(0) // cred AUTH_NULL
	w.uint32(0)
	w.uint32(0) // verf AUTH_NULL
	w.uint32(0)
	w.buf = append(w.buf, args...)

	if err := writeRecord(c.conn, w.buf); err != nil {
		return nil, err
	}
	for {
		rec, err := readRecord(c.conn)
		if err != nil {
			return nil, err
		}
		r := &xdrReader{buf: rec}
		if r.uint32() != xid {
			// Stale reply from an earlier timed-out call.
			continue
		}
		if mt := r.uint32(); mt != rpcReply {
			return nil, fmt.Errorf("rpc: unexpected message type %d", mt)
		}
		if st := r.uint32(); st != rpcAccepted {
			return nil, fmt.Errorf("rpc: call denied (%d)", st)
		}
		r.uint32() // verf flavor
		r.opaque()
		if st := r.uint32(); st != rpcSuccess {
			return nil, fmt.Errorf("rpc: accept status %d", st)
		}
		if r.err != nil {
			return nil, r.err
		}
		return r, nil
	}
}

// getPort asks the portmapper on conn for the TCP port of prog/vers.
func getPort(conn net.Conn, prog, vers uint32) (int, error) {
	pm := &rpcClient{conn: conn, prog: pmapProg, vers: pmapVers}
	var w xdrWriter
	w.uint32(prog)
	w.uint32(vers)
	w.uint32(ipProtoTCP)
	w.uint32(0)
	r, err := pm.call(pmapGetPort, w.buf)
	if err != nil {
		return 0, err
	}
	port := r.uint32()
	if r.err != nil {
		return 0, r.err
	}
	if port == 0 {
		return 0, fmt.Errorf("rpc: program 0x%X not registered", prog)
	}
	return int(port), nil
}
