package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
)

// mockScope records every call it receives.
type mockScope struct {
	m *mock.Mock

	Channel1 *mockChannel
}

func (s *mockScope) Amplitude(v float64) error {
	return s.m.Called(v).Error(0)
}

func (s *mockScope) GetIDN() (string, error) {
	args := s.m.Called()
	return args.String(0), args.Error(1)
}

type mockChannel struct {
	m *mock.Mock
}

func (c *mockChannel) Frequency(freq float64) error {
	return c.m.Called("channel1", freq).Error(0)
}

func (c *mockChannel) ArgNames() map[string][]string {
	return map[string][]string{"Frequency": {"freq"}}
}

func newMockScope(t *testing.T) (*mock.Mock, *Dispatcher) {
	t.Helper()
	m := &mock.Mock{}
	s := &mockScope{m: m, Channel1: &mockChannel{m: m}}
	c, err := catalog.Build(s)
	require.NoError(t, err)
	return m, New(c)
}

func tokens(t *testing.T, cmds ...[]string) []Token {
	t.Helper()
	out := make([]Token, 0, len(cmds))
	for _, c := range cmds {
		tok, err := ParseToken(c)
		require.NoError(t, err)
		out = append(out, tok)
	}
	return out
}

func TestRunRootMethod(t *testing.T) {
	m, d := newMockScope(t)
	m.On("Amplitude", 5.0).Return(nil).Once()

	res, err := d.Run(context.Background(), tokens(t, []string{"I.amplitude", "5"}))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "I.amplitude", res[0].Path)
	assert.Empty(t, res[0].Values)
	m.AssertExpectations(t)
}

func TestRunSubmoduleKeyword(t *testing.T) {
	m, d := newMockScope(t)
	m.On("Frequency", "channel1", 1000.0).Return(nil).Twice()

	_, err := d.Run(context.Background(), tokens(t,
		[]string{"I.channel1.frequency", "freq=1000"},
		[]string{"I.channel1.frequency", "1000"},
	))
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestRunSurfacesReturnValues(t *testing.T) {
	m, d := newMockScope(t)
	m.On("GetIDN").Return("ACME,SCOPE,1,2", nil)

	res, err := d.Run(context.Background(), tokens(t, []string{"I.get_idn"}))
	require.NoError(t, err)
	assert.Equal(t, []Result{{Path: "I.get_idn", Values: []any{"ACME,SCOPE,1,2"}}}, res)
}

func TestRunUnknownMethod(t *testing.T) {
	m, d := newMockScope(t)

	_, err := d.Run(context.Background(), tokens(t, []string{"I.nonexistent", "1"}))
	var unknown *UnknownMethodError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "I.nonexistent", unknown.Attempted)
	assert.Equal(t, []string{"I.amplitude", "I.channel1.frequency", "I.get_idn"}, unknown.Known)
	assert.Contains(t, err.Error(), "I.channel1.frequency")
	assert.Empty(t, m.Calls)
}

func TestRunFailFast(t *testing.T) {
	m, d := newMockScope(t)
	m.On("Amplitude", 1.0).Return(nil).Once()

	res, err := d.Run(context.Background(), tokens(t,
		[]string{"I.amplitude", "1"},
		[]string{"I.amplitud", "2"},
		[]string{"I.amplitude", "3"},
	))
	var unknown *UnknownMethodError
	require.ErrorAs(t, err, &unknown)
	assert.Len(t, res, 1)
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "Amplitude", 3.0)
}

func TestRunFailFastOnBindError(t *testing.T) {
	m, d := newMockScope(t)
	m.On("Amplitude", 1.0).Return(nil).Once()

	res, err := d.Run(context.Background(), tokens(t,
		[]string{"I.amplitude", "1"},
		[]string{"I.amplitude", "high"},
		[]string{"I.amplitude", "3"},
	))
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Len(t, res, 1)
	m.AssertNumberOfCalls(t, "Amplitude", 1)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	m, d := newMockScope(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := d.Run(ctx, tokens(t, []string{"I.amplitude", "1"}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res)
	assert.Empty(t, m.Calls)
}
