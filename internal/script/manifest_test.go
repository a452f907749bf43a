package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifestMissing(t *testing.T) {
	m, err := LoadManifest(filepath.Join(t.TempDir(), "nope.manifest.yaml"))
	require.NoError(t, err)
	assert.Nil(t, m, "missing manifest should be (nil, nil)")
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fx.lua.manifest.yaml")
	src := `
name: fx
params:
  - name: speed
    type: float
    default: 2.0
    min: 0.0
    max: 10.0
  - name: color
    type: color
    default: 0xffff0000
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "fx", m.Name)
	require.Len(t, m.Params, 2)
	assert.Equal(t, "speed", m.Params[0].Name)
	require.NotNil(t, m.Params[0].Max)
	assert.Equal(t, 10.0, *m.Params[0].Max)
}

func TestManifestMerge(t *testing.T) {
	min, max := 0.0, 10.0
	m := &Manifest{Params: []ParamSpec{
		{Name: "speed", Type: "float", Default: 2.0, Min: &min, Max: &max},
		{Name: "width", Type: "int", Default: 3},
	}}

	eff := m.Merge(map[string]any{"speed": 50.0, "extra": "x"})
	assert.Equal(t, 10.0, eff["speed"], "override must clamp to max")
	assert.Equal(t, 3, eff["width"], "declared defaults fill in")
	assert.Equal(t, "x", eff["extra"], "undeclared overrides pass through")

	eff = m.Merge(nil)
	assert.Equal(t, 2.0, eff["speed"])
}

var clampCases = []struct {
	name   string
	value  any
	expect any
}{
	{"ttl", 1000, int64(240)},
	{"ttl", 0, int64(1)},
	{"ttl", 100, int64(100)},
	{"ttl", "soup", "soup"},
	{"undeclared", 9999, 9999},
}

func TestManifestClamp(t *testing.T) {
	min, max := 1.0, 240.0
	m := &Manifest{Params: []ParamSpec{
		{Name: "ttl", Type: "int", Default: 18, Min: &min, Max: &max},
	}}
	for _, c := range clampCases {
		assert.Equal(t, c.expect, m.Clamp(c.name, c.value), "clamp %s=%v", c.name, c.value)
	}
}

func TestManifestPath(t *testing.T) {
	assert.Equal(t, "scripts/fx.lua.manifest.yaml", ManifestPath("scripts/fx.lua"))
}
