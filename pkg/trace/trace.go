// Package trace records every transport exchange of a session as a stream of
// CBOR events, one per write, read or query.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Op names the transport operation an event records.
type Op uint8

const (
	OpWrite Op = iota + 1
	OpRead
	OpQuery
	OpClose
)

func (o Op) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpQuery:
		return "query"
	case OpClose:
		return "close"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Event is one recorded exchange. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time     `cbor:"1,keyasint"`
	Session   string        `cbor:"2,keyasint"`
	Link      string        `cbor:"3,keyasint"`
	Address   string        `cbor:"4,keyasint,omitempty"`
	Op        Op            `cbor:"5,keyasint"`
	Request   string        `cbor:"6,keyasint,omitempty"`
	Response  string        `cbor:"7,keyasint,omitempty"`
	Error     string        `cbor:"8,keyasint,omitempty"`
	Duration  time.Duration `cbor:"9,keyasint"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Record(Event)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: cbor encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace: cbor decoder mode: %v", err))
	}
}

// Writer encodes events to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
	closed bool
	err    error // first encode failure
}

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w)}
}

// OpenFile appends events to the file at path, creating it with mode 0644.
func OpenFile(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Record encodes ev. It never fails the caller; the first encoding error is
// kept and reported by Close.
func (w *Writer) Record(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if err := w.enc.Encode(ev); err != nil && w.err == nil {
		w.err = fmt.Errorf("trace: encode %s event: %w", ev.Op, err)
	}
}

// Close closes the underlying file, if any, and returns the first error seen
// while recording joined with the close error. It is safe to call twice.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var cerr error
	if w.closer != nil {
		cerr = w.closer.Close()
	}
	return errors.Join(w.err, cerr)
}

// Read decodes every event from r until EOF.
func Read(r io.Reader) ([]Event, error) {
	var out []Event
	err := Each(r, func(ev Event) error {
		out = append(out, ev)
		return nil
	})
	return out, err
}

// Each calls fn for every event in r, stopping at the first error.
func Each(r io.Reader, fn func(Event) error) error {
	dec := decMode.NewDecoder(r)
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
