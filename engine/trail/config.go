package trail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ConfigFormat selects the encoding of a config file.
type ConfigFormat string

const (
	ConfigFormatTOML ConfigFormat = "toml"
	ConfigFormatYAML ConfigFormat = "yaml"
)

// Backend names accepted by Config.Backend.
const (
	BackendNameSoftware = "software"
	BackendNameWGPU     = "wgpu"
)

// Blend names accepted by Config.Blend.
const (
	BlendAlpha    = "alpha"
	BlendAdditive = "additive"
	BlendOpaque   = "opaque"
)

// DefaultMaterial is the render pipeline key used by LODs that do not name one.
const DefaultMaterial = "trail_ribbon"

// Config is the file-backed description of one trail set.
type Config struct {
	// TrailCount is the number of trails. Changing it reallocates every buffer.
	TrailCount int `toml:"trail_count" yaml:"trail_count"`

	// Life is how long a node stays visible, in seconds.
	Life float32 `toml:"life" yaml:"life"`

	// InputRate is the expected number of samples per second per trail.
	InputRate float32 `toml:"input_rate" yaml:"input_rate"`

	// FrameRate is the host frame rate, used to warn about input rates below it.
	FrameRate float32 `toml:"frame_rate" yaml:"frame_rate"`

	// InputCountMax is the maximum number of samples per trail per frame.
	InputCountMax int `toml:"input_count_max" yaml:"input_count_max"`

	// MinNodeDistance skips samples closer than this to the trail head.
	MinNodeDistance float32 `toml:"min_node_distance" yaml:"min_node_distance"`

	// IgnoreOrigin skips samples located exactly at the world origin.
	IgnoreOrigin bool `toml:"ignore_origin" yaml:"ignore_origin"`

	StartWidth float32 `toml:"start_width" yaml:"start_width"`
	EndWidth   float32 `toml:"end_width" yaml:"end_width"`

	// StartColor, EndColor and DefaultColor are RGBA with 4 components.
	StartColor   []float32 `toml:"start_color" yaml:"start_color"`
	EndColor     []float32 `toml:"end_color" yaml:"end_color"`
	DefaultColor []float32 `toml:"default_color" yaml:"default_color"`

	// Culling enables the visibility culler.
	Culling bool `toml:"culling" yaml:"culling"`

	// Stereo draws every trail once per eye.
	Stereo bool `toml:"stereo" yaml:"stereo"`

	// Backend is either "software" or "wgpu".
	Backend string `toml:"backend" yaml:"backend"`

	// Material is the render pipeline key of trails without LOD or of LODs without a material.
	Material string `toml:"material" yaml:"material"`

	// Blend is the blend mode of the materials this config registers: "alpha", "additive" or
	// "opaque". A material shared by several trail sets draws with the mode registered last.
	Blend string `toml:"blend" yaml:"blend"`

	// Lods lists the LOD levels. Empty disables classification.
	Lods []LodSetting `toml:"lods,omitempty" yaml:"lods,omitempty"`
}

// DefaultConfig returns a config for a single culled trail sampled at 60 Hz.
//
// Returns:
//   - Config: the default config
func DefaultConfig() Config {
	return Config{
		TrailCount:    1,
		Life:          1,
		InputRate:     60,
		FrameRate:     60,
		InputCountMax: 4,
		StartWidth:    0.1,
		EndWidth:      0,
		StartColor:    []float32{1, 1, 1, 1},
		EndColor:      []float32{1, 1, 1, 0},
		DefaultColor:  []float32{1, 1, 1, 1},
		Culling:       true,
		Backend:       BackendNameWGPU,
		Material:      DefaultMaterial,
		Blend:         BlendAlpha,
	}
}

// LoadConfig reads a config file. The format is chosen by extension: .toml, .yaml or .yml.
// Fields missing from the file keep their DefaultConfig values.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Config: the validated config
//   - error: an error if the file cannot be read, parsed or validated
func LoadConfig(path string) (Config, error) {
	var format ConfigFormat
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = ConfigFormatTOML
	case ".yaml", ".yml":
		format = ConfigFormatYAML
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a config. Unknown keys are rejected.
//
// Parameters:
//   - data: the encoded config
//   - format: the encoding
//
// Returns:
//   - Config: the validated config
//   - error: an error if decoding or validation failed
func ParseConfig(data []byte, format ConfigFormat) (Config, error) {
	cfg := DefaultConfig()
	switch format {
	case ConfigFormatTOML:
		if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode toml: %w", err)
		}
	case ConfigFormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unknown config format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the config.
//
// Parameters:
//   - format: the encoding
//
// Returns:
//   - []byte: the encoded config
//   - error: an error if encoding failed
func (c Config) Marshal(format ConfigFormat) ([]byte, error) {
	switch format {
	case ConfigFormatTOML:
		return toml.Marshal(c)
	case ConfigFormatYAML:
		return yaml.Marshal(c)
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
}

// Validate reports every problem in the config at once.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalidConfig listing each problem
func (c Config) Validate() error {
	var errs *multierror.Error
	fail := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if c.TrailCount <= 0 {
		fail("trail_count %d must be positive", c.TrailCount)
	}
	if !positive(c.Life) {
		fail("life %v must be positive", c.Life)
	}
	if !positive(c.InputRate) {
		fail("input_rate %v must be positive", c.InputRate)
	}
	if !positive(c.FrameRate) {
		fail("frame_rate %v must be positive", c.FrameRate)
	}
	if c.InputCountMax <= 0 {
		fail("input_count_max %d must be positive", c.InputCountMax)
	}
	if !nonNegative(c.MinNodeDistance) {
		fail("min_node_distance %v must not be negative", c.MinNodeDistance)
	}
	if !nonNegative(c.StartWidth) || !nonNegative(c.EndWidth) {
		fail("widths %v, %v must not be negative", c.StartWidth, c.EndWidth)
	}
	for name, color := range map[string][]float32{"start_color": c.StartColor, "end_color": c.EndColor, "default_color": c.DefaultColor} {
		if len(color) != 4 {
			fail("%s needs 4 components, got %d", name, len(color))
		}
	}
	if c.Backend != BackendNameSoftware && c.Backend != BackendNameWGPU {
		fail("backend %q must be %q or %q", c.Backend, BackendNameSoftware, BackendNameWGPU)
	}
	switch c.Blend {
	case "", BlendAlpha, BlendAdditive, BlendOpaque:
	default:
		fail("blend %q must be %q, %q or %q", c.Blend, BlendAlpha, BlendAdditive, BlendOpaque)
	}
	for i, lod := range c.Lods {
		if !nonNegative(lod.Distance) {
			fail("lods[%d].distance %v must not be negative", i, lod.Distance)
		}
		if lod.NodeStep < 1 {
			fail("lods[%d].node_step %d must be at least 1", i, lod.NodeStep)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Appearance returns the width and color ramp of the config.
//
// Returns:
//   - Appearance: the ramp, with missing colors defaulting to white
func (c Config) Appearance() Appearance {
	return Appearance{
		StartWidth: c.StartWidth,
		EndWidth:   c.EndWidth,
		StartColor: colorOr(c.StartColor, mgl32.Vec4{1, 1, 1, 1}),
		EndColor:   colorOr(c.EndColor, mgl32.Vec4{1, 1, 1, 1}),
	}
}

// Color returns the default sample color.
//
// Returns:
//   - mgl32.Vec4: the color, white if unset
func (c Config) Color() mgl32.Vec4 {
	return colorOr(c.DefaultColor, mgl32.Vec4{1, 1, 1, 1})
}

// LodSettings returns the LOD levels with empty materials replaced by Config.Material.
//
// Returns:
//   - []LodSetting: the levels in file order
func (c Config) LodSettings() []LodSetting {
	out := make([]LodSetting, len(c.Lods))
	for i, lod := range c.Lods {
		out[i] = lod
		if out[i].Material == "" {
			out[i].Material = c.material()
		}
	}
	return out
}

func (c Config) material() string {
	if c.Material == "" {
		return DefaultMaterial
	}
	return c.Material
}

func colorOr(c []float32, fallback mgl32.Vec4) mgl32.Vec4 {
	if len(c) != 4 {
		return fallback
	}
	return mgl32.Vec4{c[0], c[1], c[2], c[3]}
}

func positive(v float32) bool {
	return v > 0 && !math32.IsInf(v, 1)
}

func nonNegative(v float32) bool {
	return v >= 0 && !math32.IsInf(v, 1)
}
