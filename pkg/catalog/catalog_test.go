package catalog

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/labctl/pkg/transport"
)

type channel struct {
	freq float64
}

func (c *channel) Frequency(freq float64) error { c.freq = freq; return nil }
func (c *channel) Shape(shape string) error     { return nil }

type empty struct{}

type scope struct {
	transport.Transport

	Channel1 *channel
	Channel2 *channel
	Trace    *channel `cmd:"trace_a"`
	Hidden   *channel `cmd:"-"`
	Missing  *channel
	Empty    *empty
	Label    string
	Callback func()

	helper *channel
}

func newScope() *scope {
	return &scope{
		Transport: transport.NewSim("1"),
		Channel1:  &channel{},
		Channel2:  &channel{},
		Trace:     &channel{},
		Hidden:    &channel{},
		Empty:     &empty{},
		helper:    &channel{},
	}
}

func (s *scope) Amplitude(volts float64) error { return nil }
func (s *scope) GetIDN() (string, error)       { return s.Query("*IDN?") }

func (s *scope) ArgNames() map[string][]string {
	return map[string][]string{"Amplitude": {"volts"}}
}

func (s *scope) Submodules() map[string]any {
	return map[string]any{"slot1": &channel{}, "slot2": nil}
}

func TestBuildPaths(t *testing.T) {
	c, err := Build(newScope())
	require.NoError(t, err)

	want := []string{
		"I.amplitude",
		"I.channel1.frequency",
		"I.channel1.shape",
		"I.channel2.frequency",
		"I.channel2.shape",
		"I.close",
		"I.get_idn",
		"I.query",
		"I.read",
		"I.slot1.frequency",
		"I.slot1.shape",
		"I.trace_a.frequency",
		"I.trace_a.shape",
		"I.write",
	}
	assert.Equal(t, want, c.Paths())
	assert.Equal(t, len(want), c.Len())
	assert.Equal(t, []string{"channel1", "channel2", "slot1", "trace_a"}, c.Submodules())
}

func TestBuildDepthAndExclusions(t *testing.T) {
	c, err := Build(newScope())
	require.NoError(t, err)

	for _, p := range c.Paths() {
		parts := strings.Split(p, ".")
		assert.LessOrEqual(t, len(parts)-1, MaxDepth, p)
		assert.Equal(t, Root, parts[0])
		assert.NotContains(t, p, "new_scope")
		assert.NotContains(t, p, "arg_names")
		assert.NotContains(t, p, "submodules")
		assert.NotContains(t, p, "hidden")
		assert.NotContains(t, p, "helper")
	}
	assert.False(t, c.Has("I.missing.frequency"))
	assert.False(t, c.Has("I.empty"))
}

func TestLookupBindsReceiver(t *testing.T) {
	s := newScope()
	c, err := Build(s)
	require.NoError(t, err)

	m, ok := c.Lookup("I.channel2.frequency")
	require.True(t, ok)
	assert.Equal(t, 2, m.Depth())
	assert.Equal(t, "channel2", m.Sub)
	assert.Equal(t, "Frequency", m.GoName)

	out := m.Func.Call([]reflect.Value{reflect.ValueOf(1000.0)})
	assert.True(t, out[0].IsNil())
	assert.Equal(t, 1000.0, s.Channel2.freq)
	assert.Equal(t, 0.0, s.Channel1.freq)

	amp, ok := c.Lookup("I.amplitude")
	require.True(t, ok)
	assert.Equal(t, 1, amp.Depth())
	assert.Equal(t, []string{"volts"}, amp.Params)
}

type sweeper struct{}

func (*sweeper) Sweep(ctx context.Context, start, stop float64, points ...int) error { return nil }
func (*sweeper) Note(string)                                                         {}
func (*sweeper) ArgNames() map[string][]string {
	return map[string][]string{"Sweep": {"start", "stop", "points"}}
}

func TestSignature(t *testing.T) {
	c, err := Build(&sweeper{})
	require.NoError(t, err)

	sweep, ok := c.Lookup("I.sweep")
	require.True(t, ok)
	assert.Equal(t, "I.sweep(start float64, stop float64, points ...int)", sweep.Signature())

	note, ok := c.Lookup("I.note")
	require.True(t, ok)
	assert.Equal(t, "I.note(string)", note.Signature())

	s, err := Build(newScope())
	require.NoError(t, err)
	idn, _ := s.Lookup("I.get_idn")
	assert.Equal(t, "I.get_idn()", idn.Signature())
}

type clash struct {
	Channel *channel
}

func (c *clash) Submodules() map[string]any { return map[string]any{"channel": &channel{}} }

func TestBuildRejectsDuplicateSubmodule(t *testing.T) {
	_, err := Build(&clash{Channel: &channel{}})
	assert.Error(t, err)
}

func TestBuildNil(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestSnake(t *testing.T) {
	tests := map[string]string{
		"Amplitude":   "amplitude",
		"Channel1":    "channel1",
		"GetIDN":      "get_idn",
		"SetCH1Scale": "set_ch1_scale",
		"HTTPServer":  "http_server",
		"IDN":         "idn",
		"already":     "already",
	}
	for in, want := range tests {
		assert.Equal(t, want, Snake(in), in)
	}
}
