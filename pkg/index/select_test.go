package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFromIndex(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	got, err := Select(idx, Selection{Driver: "psu"})
	require.NoError(t, err)
	assert.Equal(t, Target{
		Nickname: "psu",
		Driver:   "Keithley2400",
		Link:     "GPIB",
		Address:  "24",
		Params:   map[string]string{"board_index": "1"},
	}, got)
}

func TestSelectExplicitWins(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	got, err := Select(idx, Selection{
		Driver:  "psu",
		Link:    "SIM",
		Address: "7",
		Params:  map[string]string{"Board_Index": "2", "timeout": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Keithley2400", got.Driver)
	assert.Equal(t, "SIM", got.Link)
	assert.Equal(t, "7", got.Address)
	assert.Equal(t, map[string]string{"board_index": "2", "timeout": "1"}, got.Params)
}

func TestSelectLiteralDriver(t *testing.T) {
	got, err := Select(nil, Selection{Driver: "Keysight33500B", Link: "SOCKET", Address: "10.0.0.2"})
	require.NoError(t, err)
	assert.Empty(t, got.Nickname)
	assert.Equal(t, "Keysight33500B", got.Driver)
}

func TestSelectMissing(t *testing.T) {
	tests := []struct {
		sel  Selection
		want []string
	}{
		{Selection{Driver: "X"}, []string{"link", "address"}},
		{Selection{Driver: "X", Link: "SIM"}, []string{"address"}},
		{Selection{Driver: "X", Address: "1"}, []string{"link"}},
	}
	for _, tt := range tests {
		_, err := Select(nil, tt.sel)
		var mi *MissingInputError
		require.ErrorAs(t, err, &mi)
		assert.Equal(t, tt.want, mi.Missing)
		for _, m := range tt.want {
			assert.Contains(t, err.Error(), "--"+m)
		}
	}
}

func TestSelectEntryWithoutAddress(t *testing.T) {
	idx, err := Parse(strings.NewReader("[sim]\ndriver = Keysight33500B\nconnection = SIM\n\n[bare]\ndriver = Keithley2400\n"))
	require.NoError(t, err)

	got, err := Select(idx, Selection{Driver: "sim"})
	require.NoError(t, err)
	assert.Equal(t, "Keysight33500B", got.Driver)
	assert.Equal(t, "SIM", got.Link)
	assert.Empty(t, got.Address)

	got, err = Select(idx, Selection{Driver: "bare", Params: map[string]string{"Baud": "9600"}})
	require.NoError(t, err)
	assert.Equal(t, "bare", got.Nickname)
	assert.Empty(t, got.Link)
	assert.Empty(t, got.Address)
	assert.Equal(t, map[string]string{"baud": "9600"}, got.Params)
}
