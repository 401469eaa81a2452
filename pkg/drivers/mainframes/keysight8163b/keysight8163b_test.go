package keysight8163b_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/labctl/pkg/catalog"
	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight8163b"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight81635a"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/mainframes/keysight81960a"
	"github.com/OpenTraceLab/labctl/pkg/instrument"
	"github.com/OpenTraceLab/labctl/pkg/transport"
)

func open(t *testing.T, params map[string]string) (*keysight8163b.Mainframe, *transport.Sim) {
	t.Helper()
	var sim *transport.Sim
	inst, err := instrument.Default.Open(context.Background(), instrument.OpenRequest{
		Driver:  "Keysight8163B",
		Link:    "SIM",
		Address: "20",
		Params:  params,
		Wrap: func(tr transport.Transport) transport.Transport {
			sim = tr.(*transport.Sim)
			return tr
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst.(*keysight8163b.Mainframe), sim
}

func TestSlotsFromParams(t *testing.T) {
	m, sim := open(t, map[string]string{
		"slot1": "Keysight81635A, PowerSensor",
		"slot2": "Keysight81960A,Laser",
	})
	assert.Equal(t, []string{"slot1=Keysight81635A,PowerSensor", "slot2=Keysight81960A,Laser"}, m.Slots())

	c, err := catalog.Build(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot1", "slot2"}, c.Submodules())
	assert.True(t, c.Has("I.slot1.power"))
	assert.True(t, c.Has("I.slot2.sweep"))

	d := command.New(c)
	for _, line := range []string{
		"I.slot1.wavelength,nm=1550",
		"I.slot2.wavelength,1550.5",
		"I.slot2.output,1",
	} {
		tok, err := command.Parse(line)
		require.NoError(t, err)
		_, err = d.Exec(context.Background(), tok)
		require.NoError(t, err, line)
	}
	assert.Equal(t, []string{
		"SENS1:CHAN1:POW:WAV 1550NM",
		"SOUR2:WAV 1550.5NM",
		"SOUR2:POW:STAT 1",
	}, sim.Writes())
}

func TestEmptyMainframe(t *testing.T) {
	m, _ := open(t, nil)
	assert.Empty(t, m.Slots())

	c, err := catalog.Build(m)
	require.NoError(t, err)
	assert.Empty(t, c.Submodules())
	assert.True(t, c.Has("I.identify"))
}

func TestBadSlots(t *testing.T) {
	tests := []struct {
		params map[string]string
		want   string
	}{
		{map[string]string{"slot9": "Keysight81635A,PowerSensor"}, "bad slot parameter"},
		{map[string]string{"slotx": "Keysight81635A,PowerSensor"}, "bad slot parameter"},
		{map[string]string{"slot1": "Keysight81635A"}, "want <module>,<part>"},
		{map[string]string{"slot1": "Keysight81635A,Laser"}, "parts: PowerSensor, PowerSensor2"},
		{map[string]string{"slot1": "Nope,Laser"}, "not found"},
	}
	for _, tt := range tests {
		_, err := instrument.Default.Open(context.Background(), instrument.OpenRequest{
			Driver: "Keysight8163B", Link: "SIM", Address: "20", Params: tt.params,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}
