package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// fakeRPCServer serves ONC RPC calls on a loopback listener. handle returns
// the encoded results for one call.
type fakeRPCServer struct {
	ln     net.Listener
	handle func(prog, proc uint32, args *xdrReader) []byte
}

func startFakeRPC(t *testing.T, handle func(prog, proc uint32, args *xdrReader) []byte) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	s := &fakeRPCServer{ln: ln, handle: handle}
	go s.serve()
	return ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeRPCServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			for {
				rec, err := readRecord(c)
				if err != nil {
					return
				}
				r := &xdrReader{buf: rec}
				xid := r.uint32()
				r.uint32() // call
				r.uint32() // rpc version
				prog := r.uint32()
				r.uint32() // program version
				proc := r.uint32()
				r.uint32()
				r.opaque()
				r.uint32()
				r.opaque()

				var w xdrWriter
				w.uint32(xid)
				w.uint32(rpcReply)
				w.uint32(rpcAccepted)
				w.uint32(0)
				w.uint32(0)
				w.uint32(rpcSuccess)
				w.buf = append(w.buf, s.handle(prog, proc, r)...)
				if err := writeRecord(c, w.buf); err != nil {
					return
				}
			}
		}(conn)
	}
}

// fakeInstrument is a VXI-11 core channel that echoes queries.
type fakeInstrument struct {
	mu      sync.Mutex
	device  string
	partial []byte
	writes  []string
	reply   string
	links   int
}

func (f *fakeInstrument) handle(_, proc uint32, args *xdrReader) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var w xdrWriter
	switch proc {
	case procCreateLink:
		args.int32()
		args.uint32()
		args.uint32()
		f.device = string(args.opaque())
		f.links++
		w.int32(0)
		w.int32(42)
		w.uint32(0)
		w.uint32(8) // small max receive size to force chunking
	case procDeviceWrite:
		args.int32()
		args.uint32()
		args.uint32()
		flags := args.uint32()
		data := args.opaque()
		f.partial = append(f.partial, data...)
		if flags&flagEnd != 0 {
			msg := strings.TrimRight(string(f.partial), "\n")
			f.writes = append(f.writes, msg)
			if strings.HasSuffix(msg, "?") {
				f.reply = "echo:" + msg + "\n"
			}
			f.partial = nil
		}
		w.int32(0)
		w.uint32(uint32(len(data)))
	case procDeviceRead:
		w.int32(0)
		w.uint32(0x04)
		w.opaque([]byte(f.reply))
		f.reply = ""
	case procDestroyLink:
		f.links--
		w.int32(0)
	}
	return w.buf
}

func TestVXI11ThroughPortmapper(t *testing.T) {
	inst := &fakeInstrument{}
	corePort := startFakeRPC(t, inst.handle)

	pmPort := startFakeRPC(t, func(prog, proc uint32, args *xdrReader) []byte {
		var w xdrWriter
		if prog != pmapProg || proc != pmapGetPort {
			w.uint32(0)
			return w.buf
		}
		if args.uint32() == vxi11Prog {
			w.uint32(uint32(corePort))
		} else {
			w.uint32(0)
		}
		return w.buf
	})
	saved := portmapperPort
	portmapperPort = pmPort
	t.Cleanup(func() { portmapperPort = saved })

	tr, err := Open(context.Background(), LinkVXI11, "127.0.0.1", params.New(map[string]string{"timeout": "2"}))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	got, err := tr.Query("MEASURE:VOLTAGE:DC?")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if got != "echo:MEASURE:VOLTAGE:DC?" {
		t.Fatalf("reply = %q", got)
	}
	inst.mu.Lock()
	device := inst.device
	inst.mu.Unlock()
	if device != "inst0" {
		t.Fatalf("device = %q, want inst0", device)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.links != 0 {
		t.Fatalf("links still open: %d", inst.links)
	}
}

func TestVXI11ExplicitPortAndDevice(t *testing.T) {
	inst := &fakeInstrument{}
	corePort := startFakeRPC(t, inst.handle)

	p := params.New(map[string]string{"port": strconv.Itoa(corePort), "timeout": "2"})
	tr, err := OpenVXI11(context.Background(), "127.0.0.1::gpib0,5", p)
	if err != nil {
		t.Fatalf("OpenVXI11 returned error: %v", err)
	}
	defer tr.Close()

	if err := tr.Write("OUTP ON"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.device != "gpib0,5" {
		t.Fatalf("device = %q", inst.device)
	}
	if len(inst.writes) != 1 || inst.writes[0] != "OUTP ON" {
		t.Fatalf("writes = %q", inst.writes)
	}
}

func TestXDROpaquePadding(t *testing.T) {
	var w xdrWriter
	w.opaque([]byte("abcde"))
	if len(w.buf) != 4+8 {
		t.Fatalf("encoded length = %d, want 12", len(w.buf))
	}
	r := &xdrReader{buf: w.buf}
	if got := string(r.opaque()); got != "abcde" || r.err != nil {
		t.Fatalf("opaque = %q err=%v", got, r.err)
	}
	r.uint32()
	if r.err == nil {
		t.Fatalf("expected short buffer error")
	}
}
