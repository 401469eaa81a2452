package transport

import (
	"time"

	"github.com/OpenTraceLab/labctl/pkg/trace"
)

type traced struct {
	Transport
	sink    trace.Sink
	session string
	link    string
	addr    string
}

// Traced wraps t so every operation is reported to sink. A nil sink returns
// t unchanged.
func Traced(t Transport, sink trace.Sink, session, link, addr string) Transport {
	if sink == nil {
		return t
	}
	return &traced{Transport: t, sink: sink, session: session, link: link, addr: addr}
}

func (t *traced) record(op trace.Op, req, resp string, start time.Time, err error) {
	ev := trace.Event{
		Timestamp: start,
		Session:   t.session,
		Link:      t.link,
		Address:   t.addr,
		Op:        op,
		Request:   req,
		Response:  resp,
		Duration:  time.Since(start),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	t.sink.Record(ev)
}

func (t *traced) Write(cmd string) error {
	start := time.Now()
	err := t.Transport.Write(cmd)
	t.record(trace.OpWrite, cmd, "", start, err)
	return err
}

func (t *traced) Read() (string, error) {
	start := time.Now()
	resp, err := t.Transport.Read()
	t.record(trace.OpRead, "", resp, start, err)
	return resp, err
}

func (t *traced) Query(cmd string) (string, error) {
	start := time.Now()
	resp, err := t.Transport.Query(cmd)
	t.record(trace.OpQuery, cmd, resp, start, err)
	return resp, err
}

func (t *traced) Close() error {
	start := time.Now()
	err := t.Transport.Close()
	t.record(trace.OpClose, "", "", start, err)
	return err
}
