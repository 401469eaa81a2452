package transport

import (
	"sync"
	"testing"

	"github.com/OpenTraceLab/labctl/pkg/trace"
)

type memorySink struct {
	mu     sync.Mutex
	events []trace.Event
}

func (m *memorySink) Record(ev trace.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func TestTracedRecordsOperations(t *testing.T) {
	sink := &memorySink{}
	sim := NewSim("9")
	tr := Traced(sim, sink, "sess", LinkSim, "9")

	if err := tr.Write("VOLT 2"); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if _, err := tr.Query("VOLT?"); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if _, err := tr.Read(); err == nil {
		t.Fatalf("expected timeout reading without a pending reply")
	}
	tr.Close()

	if len(sink.events) != 4 {
		t.Fatalf("recorded %d events, want 4", len(sink.events))
	}
	q := sink.events[1]
	if q.Op != trace.OpQuery || q.Request != "VOLT?" || q.Response != "2" || q.Session != "sess" {
		t.Fatalf("query event = %+v", q)
	}
	if sink.events[2].Error == "" {
		t.Fatalf("read event should carry the error")
	}
	if !sim.Closed() {
		t.Fatalf("Close was not forwarded")
	}
}

func TestTracedNilSink(t *testing.T) {
	sim := NewSim("1")
	if got := Traced(sim, nil, "", LinkSim, "1"); got != Transport(sim) {
		t.Fatalf("nil sink should return the transport unchanged")
	}
}
