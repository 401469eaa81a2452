package trace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	w.Record(Event{Timestamp: ts, Session: "s1", Link: "SIM", Address: "7", Op: OpQuery, Request: "*IDN?", Response: "LABCTL,SIM-7,0,1.0", Duration: time.Millisecond})
	w.Record(Event{Timestamp: ts, Session: "s1", Link: "SIM", Op: OpWrite, Request: "FREQ 1", Error: "closed"})
	require.NoError(t, w.Close())
	w.Record(Event{Session: "dropped"})

	events, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, ts.Equal(events[0].Timestamp))
	assert.Equal(t, OpQuery, events[0].Op)
	assert.Equal(t, "LABCTL,SIM-7,0,1.0", events[0].Response)
	assert.Equal(t, time.Millisecond, events[0].Duration)
	assert.Equal(t, "closed", events[1].Error)
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.trace")

	for i := 0; i < 2; i++ {
		w, err := OpenFile(path)
		require.NoError(t, err)
		w.Record(Event{Session: "s", Op: OpRead, Response: "1"})
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var n int
	require.NoError(t, Each(f, func(ev Event) error {
		n++
		assert.Equal(t, "read", ev.Op.String())
		return nil
	}))
	assert.Equal(t, 2, n)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{0xff, 0x00, 0x13}))
	assert.Error(t, err)
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{ calls int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	return 0, errDiskFull
}

func TestCloseReportsFirstEncodeError(t *testing.T) {
	fw := &failingWriter{}
	w := NewWriter(fw)
	w.Record(Event{Session: "s1", Link: "SIM", Op: OpWrite, Request: "*RST"})
	w.Record(Event{Session: "s1", Link: "SIM", Op: OpQuery, Request: "*IDN?"})
	assert.Equal(t, 2, fw.calls)

	err := w.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Contains(t, err.Error(), "write event")
	assert.NotContains(t, err.Error(), "query event")

	assert.NoError(t, w.Close())
}
