package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

// Transport is the capability set every driver is written against. A backend
// implements it for one physical medium.
type Transport interface {
	Write(cmd string) error
	Read() (string, error)
	Query(cmd string) (string, error)
	Close() error
}

// Link identifiers. A driver module exposes one backend per link it supports.
const (
	LinkSocket = "SOCKET"
	LinkTelnet = "TELNET"
	LinkSerial = "SERIAL"
	LinkGPIB   = "GPIB"
	LinkUSB    = "USB"
	LinkVXI11  = "VXI11"
	LinkVISA   = "VISA"
	LinkSim    = "SIM"
)

// DefaultTimeout applies when no timeout parameter is given.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport: closed")

// Error is the opaque failure raised by a backend. The dispatch engine
// propagates it unmodified.
type Error struct {
	Link string
	Op   string
	Addr string
	Err  error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s %s %s: %v", strings.ToLower(e.Link), e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", strings.ToLower(e.Link), e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Opener connects to address on one medium. Recognised keyword parameters
// are consumed from p.
type Opener func(ctx context.Context, address string, p *params.Set) (Transport, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register installs the opener for link. Registering the same link twice
// panics.
func Register(link string, o Opener) {
	mu.Lock()
	defer mu.Unlock()
	link = strings.ToUpper(link)
	if _, exists := openers[link]; exists {
		panic(fmt.Sprintf("transport: opener already registered for link %q", link))
	}
	openers[link] = o
}

// Lookup returns the opener for link.
func Lookup(link string) (Opener, bool) {
	mu.RLock()
	defer mu.RUnlock()
	o, ok := openers[strings.ToUpper(link)]
	return o, ok
}

// Links lists every registered link, sorted.
func Links() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for link := range openers {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

// Open looks up the opener for link and connects.
func Open(ctx context.Context, link, address string, p *params.Set) (Transport, error) {
	o, ok := Lookup(link)
	if !ok {
		return nil, fmt.Errorf("transport: no backend for link %q (available: %s)", link, strings.Join(Links(), ", "))
	}
	if p == nil {
		p = params.New(nil)
	}
	return o(ctx, address, p)
}

// framing holds the parameters shared by line-oriented media.
type framing struct {
	timeout   time.Duration
	writeTerm string
	readTerm  byte
}

func framingFrom(p *params.Set) (framing, error) {
	timeout, err := p.Duration("timeout", DefaultTimeout)
	if err != nil {
		return framing{}, err
	}
	wt := unescape(p.String("write_termination", "\n"))
	rt := unescape(p.String("read_termination", "\n"))
	if len(rt) != 1 {
		return framing{}, fmt.Errorf("transport: read_termination must be a single byte, got %q", rt)
	}
	return framing{timeout: timeout, writeTerm: wt, readTerm: rt[0]}, nil
}

// unescape turns the \n, \r, \t escapes used in index files into bytes.
func unescape(s string) string {
	r := strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t", `\\`, `\`)
	return r.Replace(s)
}
