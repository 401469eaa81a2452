package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
; lab bench
[psu]
driver = Keithley2400
connection = GPIB
address = 24
board_index = 1

[scope]
Driver = RigolDS1000Z
LINK = VISA
address = TCPIP0::192.168.1.20::inst0::INSTR
timeout = 10

[mainframe]
driver = Keysight8163B
link = socket
address = 10.0.0.7
slot1 = Keysight81635A,PowerSensor
`

func TestParse(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"psu", "scope", "mainframe"}, idx.Names())
	assert.Equal(t, 3, idx.Len())

	psu, ok := idx.Resolve("psu")
	require.True(t, ok)
	assert.Equal(t, Entry{
		Name:       "psu",
		Driver:     "Keithley2400",
		Connection: "GPIB",
		Address:    "24",
		Params:     map[string]string{"board_index": "1"},
	}, psu)

	scope, ok := idx.Resolve("scope")
	require.True(t, ok)
	assert.Equal(t, "RigolDS1000Z", scope.Driver)
	assert.Equal(t, "VISA", scope.Connection)
	assert.Equal(t, "TCPIP0::192.168.1.20::inst0::INSTR", scope.Address)
	assert.Equal(t, []string{"timeout"}, scope.ParamKeys())

	mf, ok := idx.Resolve("mainframe")
	require.True(t, ok)
	assert.Equal(t, "Keysight81635A,PowerSensor", mf.Params["slot1"])

	_, ok = idx.Resolve("nope")
	assert.False(t, ok)
}

func TestResolveReturnsCopy(t *testing.T) {
	idx, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	e, _ := idx.Resolve("psu")
	e.Params["board_index"] = "9"

	again, _ := idx.Resolve("psu")
	assert.Equal(t, "1", again.Params["board_index"])
}

func TestLoadManyEntries(t *testing.T) {
	var b strings.Builder
	const n = 25
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[dev%d]\ndriver = Drv%d\nconnection = SIM\naddress = %d\n\n", i, i, i)
	}
	path := filepath.Join(t.TempDir(), "devices.ini")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	idx, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, n, idx.Len())
	for i := 0; i < n; i++ {
		e, ok := idx.Resolve(fmt.Sprintf("dev%d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("Drv%d", i), e.Driver)
		assert.Equal(t, fmt.Sprint(i), e.Address)
	}
	assert.Len(t, idx.Entries(), n)
}

func TestLoadDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.ini")
	data := "[a]\ndriver = X\n\n[b]\ndriver = Y\n\n[a]\ndriver = Z\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	var dup *DuplicateIndexEntryError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
	assert.Equal(t, path, dup.Path)
	assert.Contains(t, err.Error(), "[a]")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"no driver", "[a]\naddress = 1\n", "[a]: missing driver"},
		{"stray keys", "driver = X\n[a]\ndriver = Y\n", "keys outside any section"},
		{"conflicting link", "[a]\ndriver = X\nlink = SIM\nconnection = GPIB\n", "disagree"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.ini"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	_, ok := idx.Resolve("x")
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
	assert.Nil(t, idx.Entries())
}
