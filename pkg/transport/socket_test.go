package transport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// echoServer answers every line with "echo:<line>" until the client hangs up.
func echoServer(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimRight(line, "\r\n")
					if strings.HasSuffix(line, "?") {
						c.Write([]byte("echo:" + line + "\r\n"))
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestSocketQuery(t *testing.T) {
	host, port := echoServer(t)

	p := params.New(map[string]string{"port": strconv.Itoa(port), "timeout": "2"})
	tr, err := Open(context.Background(), LinkSocket, host, p)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer tr.Close()

	if unused := p.Unused(); len(unused) != 0 {
		t.Fatalf("unused params: %v", unused)
	}
	if err := tr.Write("OUTP ON"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	got, err := tr.Query("*IDN?")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if got != "echo:*IDN?" {
		t.Fatalf("reply = %q", got)
	}
}

func TestSocketHostPortAddress(t *testing.T) {
	host, port := echoServer(t)

	tr, err := OpenSocket(context.Background(), net.JoinHostPort(host, strconv.Itoa(port)), params.New(nil))
	if err != nil {
		t.Fatalf("OpenSocket returned error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestSocketDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = OpenSocket(context.Background(), addr, params.New(map[string]string{"timeout": "1"}))
	if err == nil {
		t.Fatalf("expected dial error")
	}
	if _, ok := err.(*Error); !ok {
		t.Fatalf("err = %T, want *transport.Error", err)
	}
}

func TestFramingParameters(t *testing.T) {
	f, err := framingFrom(params.New(map[string]string{
		"write_termination": `\r\n`,
		"read_termination":  `\r`,
	}))
	if err != nil {
		t.Fatalf("framingFrom returned error: %v", err)
	}
	if f.writeTerm != "\r\n" || f.readTerm != '\r' || f.timeout != DefaultTimeout {
		t.Fatalf("framing = %+v", f)
	}

	if _, err := framingFrom(params.New(map[string]string{"read_termination": "ab"})); err == nil {
		t.Fatalf("expected error for multi-byte read termination")
	}
}

func TestOpenUnknownLink(t *testing.T) {
	_, err := Open(context.Background(), "BOGUS", "x", nil)
	if err == nil || !strings.Contains(err.Error(), "SOCKET") {
		t.Fatalf("err = %v, want listing of available links", err)
	}
}

func TestPrologixEscape(t *testing.T) {
	got := prologixEscape("A+B\r\n")
	want := "A\x1b+B\x1b\r\x1b\n"
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
}
