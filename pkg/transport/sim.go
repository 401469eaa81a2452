package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/OpenTraceLab/labctl/pkg/params"
)

func init() {
	Register(LinkSim, func(_ context.Context, address string, p *params.Set) (Transport, error) {
		// Accept the line parameters so index entries stay portable
		// between the simulator and real hardware.
		if _, err := framingFrom(p); err != nil {
			return nil, err
		}
		return NewSim(address), nil
	})
}

// QueryHook lets a test or a simulated driver answer message parts itself.
// It sees every part, queries or not. Returning handled=false falls through
// to the register model. A handled command that returns a non-empty reply
// queues it, the way talk-only instruments answer a trigger. The hook runs
// with the simulator locked and must not call back into it.
type QueryHook func(cmd string) (reply string, handled bool, err error)

// Sim is an in-memory SCPI instrument. Writes of the form "HEADER value" are
// stored and "HEADER?" returns the last stored value (or "0"). "*IDN?" answers
// with a fixed identity built from the address.
type Sim struct {
	Address string

	OnQuery QueryHook

	mu      sync.Mutex
	regs    map[string]string
	writes  []string
	pending []string
	closed  bool
}

// NewSim constructs a simulator for the given address.
func NewSim(address string) *Sim {
	return &Sim{Address: address, regs: map[string]string{}}
}

// Writes returns a copy of every command written so far, queries included.
func (s *Sim) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// LastWrite returns the most recent command or "".
func (s *Sim) LastWrite() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return ""
	}
	return s.writes[len(s.writes)-1]
}

// Closed reports whether Close has been called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Register returns the stored value for header.
func (s *Sim) Register(header string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.regs[strings.ToUpper(header)]
	return v, ok
}

func (s *Sim) fail(op string, err error) error {
	return &Error{Link: LinkSim, Op: op, Addr: s.Address, Err: err}
}

func (s *Sim) Write(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.fail("write", ErrClosed)
	}
	s.writes = append(s.writes, cmd)

	// Compound messages are split like an instrument parser would; the
	// replies to one message come back as a single ';'-joined line.
	var replies []string
	for _, part := range strings.Split(cmd, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		query := strings.HasSuffix(strings.Fields(part)[0], "?")
		if s.OnQuery != nil {
			reply, handled, err := s.OnQuery(part)
			if err != nil {
				return s.fail("write", err)
			}
			if handled {
				if query || reply != "" {
					replies = append(replies, reply)
				}
				continue
			}
		}
		if query {
			replies = append(replies, s.answer(part))
			continue
		}
		header, value, _ := strings.Cut(part, " ")
		s.regs[strings.ToUpper(header)] = strings.TrimSpace(value)
	}
	if len(replies) > 0 {
		s.pending = append(s.pending, strings.Join(replies, ";"))
	}
	return nil
}

func (s *Sim) answer(query string) string {
	header := strings.ToUpper(strings.TrimSuffix(strings.Fields(query)[0], "?"))
	if header == "*IDN" {
		return fmt.Sprintf("LABCTL,SIM-%s,0,1.0", s.Address)
	}
	if v, ok := s.regs[header]; ok {
		return v
	}
	return "0"
}

func (s *Sim) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", s.fail("read", ErrClosed)
	}
	if len(s.pending) == 0 {
		return "", s.fail("read", ErrTimeout)
	}
	reply := s.pending[0]
	s.pending = s.pending[1:]
	return reply, nil
}

func (s *Sim) Query(cmd string) (string, error) {
	if err := s.Write(cmd); err != nil {
		return "", err
	}
	return s.Read()
}

// Close is idempotent.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
