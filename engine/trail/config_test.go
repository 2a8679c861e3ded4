package trail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlConfig = `
trail_count = 64
life = 2.0
input_rate = 120.0
input_count_max = 3
culling = false
backend = "software"
start_color = [1.0, 0.5, 0.0, 1.0]

[[lods]]
distance = 10.0
node_step = 1

[[lods]]
distance = 50.0
node_step = 4
material = "trail_far"
`

const yamlConfig = `
trail_count: 64
life: 2
input_rate: 120
input_count_max: 3
culling: false
backend: software
start_color: [1, 0.5, 0, 1]
lods:
  - distance: 10
    node_step: 1
  - distance: 50
    node_step: 4
    material: trail_far
`

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format ConfigFormat
	}{
		{"toml", tomlConfig, ConfigFormatTOML},
		{"yaml", yamlConfig, ConfigFormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.data), tt.format)
			require.NoError(t, err)

			assert.Equal(t, 64, cfg.TrailCount)
			assert.Equal(t, float32(2), cfg.Life)
			assert.Equal(t, float32(120), cfg.InputRate)
			assert.Equal(t, 3, cfg.InputCountMax)
			assert.False(t, cfg.Culling)
			assert.Equal(t, BackendNameSoftware, cfg.Backend)
			assert.Equal(t, mgl32.Vec4{1, 0.5, 0, 1}, cfg.Appearance().StartColor)

			// untouched keys keep their defaults
			assert.Equal(t, float32(60), cfg.FrameRate)
			assert.Equal(t, DefaultMaterial, cfg.Material)

			assert.Equal(t, []LodSetting{
				{Distance: 10, NodeStep: 1, Material: DefaultMaterial},
				{Distance: 50, NodeStep: 4, Material: "trail_far"},
			}, cfg.LodSettings())
		})
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte("trail_count = 1\ncolour = 3\n"), ConfigFormatTOML)
	assert.Error(t, err)

	_, err = ParseConfig([]byte("trail_count: 1\ncolour: 3\n"), ConfigFormatYAML)
	assert.Error(t, err)
}

func TestParseConfigEmptyYAMLUsesDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil, ConfigFormatYAML)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailCount = 0
	cfg.Life = -1
	cfg.StartColor = []float32{1, 1}
	cfg.Backend = "vulkan"
	cfg.Blend = "glow"
	cfg.Lods = []LodSetting{{Distance: 5, NodeStep: 0}}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, `blend "glow"`)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 6)
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "trail.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlConfig), 0o644))
	cfg, err := LoadConfig(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.TrailCount)

	ymlPath := filepath.Join(dir, "trail.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte(yamlConfig), 0o644))
	cfg, err = LoadConfig(ymlPath)
	require.NoError(t, err)
	assert.Len(t, cfg.Lods, 2)

	_, err = LoadConfig(filepath.Join(dir, "trail.json"))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lods = []LodSetting{{Distance: 8, NodeStep: 2, Material: "x"}}

	for _, format := range []ConfigFormat{ConfigFormatTOML, ConfigFormatYAML} {
		data, err := cfg.Marshal(format)
		require.NoError(t, err)
		got, err := ParseConfig(data, format)
		require.NoError(t, err, string(data))
		assert.Equal(t, cfg, got, string(format))
	}
}
