package mapdata

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDump(t *testing.T) {
	recs := []*Record{
		NewRecord("Town", "/maps/Town.csv", ZXNorthEast, []Item{
			{Name: "Gate", Coord: Coord3{X: 10, Y: 0, Z: -5}},
		}),
		NewRecord("Empty", "", XZNorthWest, nil),
	}

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, recs))

	var out []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)

	assert.Equal(t, "Town", out[0]["name"])
	assert.Equal(t, "ZX_NorthEast", out[0]["coord_system"])
	assert.Equal(t, map[string]any{"x": 10, "y": 0, "z": -5}, out[0]["min"])
	items, ok := out[0]["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	assert.Nil(t, out[1]["min"])
	assert.Nil(t, out[1]["max"])
}
