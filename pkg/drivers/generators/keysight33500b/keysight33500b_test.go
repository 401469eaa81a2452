package keysight33500b

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func TestChannelCommands(t *testing.T) {
	sim := transport.NewSim("1")
	g := New(sim)

	require.NoError(t, g.Channel2.Frequency(1000))
	require.NoError(t, g.Channel2.Amplitude(2.5))
	require.NoError(t, g.Channel2.Shape("square"))
	require.NoError(t, g.Channel2.Load(0))
	require.NoError(t, g.Output(true))
	require.NoError(t, g.Couple(false))

	assert.Equal(t, []string{
		"SOUR2:FREQ 1000",
		"SOUR2:VOLT 2.5",
		"SOUR2:FUNC SQU",
		"OUTP2:LOAD INF",
		"OUTP1 ON",
		"FREQ:COUP OFF;VOLT:COUP OFF",
	}, sim.Writes())

	f, err := g.Channel2.GetFrequency()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, f)
	shape, err := g.Channel2.GetShape()
	require.NoError(t, err)
	assert.Equal(t, "SQU", shape)
}

func TestChannelValidation(t *testing.T) {
	g := New(transport.NewSim("1"))
	assert.ErrorContains(t, g.Channel1.Shape("zigzag"), "shapes: SIN")
	assert.Error(t, g.Channel1.Frequency(0))
	assert.Error(t, g.Channel1.DutyCycle(100))
}

func TestDispatchThroughCatalog(t *testing.T) {
	sim := transport.NewSim("1")
	c, err := catalog.Build(New(sim))
	require.NoError(t, err)
	d := command.New(c)

	for _, line := range []string{"I.amplitude,5", "I.channel1.frequency,freq=1000", "I.channel2.output,on=True"} {
		tok, err := command.Parse(line)
		require.NoError(t, err)
		_, err = d.Exec(context.Background(), tok)
		require.NoError(t, err, line)
	}
	assert.Equal(t, []string{"SOUR1:VOLT 5", "SOUR1:FREQ 1000", "OUTP2 ON"}, sim.Writes())
}

func TestRegistered(t *testing.T) {
	m, err := instrument.Default.Locate("Keysight33500B")
	require.NoError(t, err)
	assert.Contains(t, m.BackendNames(), "Driver_VISA")
	assert.Contains(t, m.BackendNames(), "Driver_SIM")

	inst, err := instrument.Default.Open(context.Background(), instrument.OpenRequest{
		Driver: "keysight33500b", Link: "SIM", Address: "4",
	})
	require.NoError(t, err)
	defer inst.Close()

	idn, err := inst.(*Generator).Identify()
	require.NoError(t, err)
	assert.Equal(t, "LABCTL,SIM-4,0,1.0", idn)

	model := inst.(instrument.Modeler).DriverModel()
	assert.NotEmpty(t, model)
}
