package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-trail/engine/scene"
	"github.com/Carmen-Shannon/oxy-trail/engine/trail"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, cfg trail.Config) {
	t.Helper()
	data, err := cfg.Marshal(trail.ConfigFormatTOML)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func headlessConfig(trailCount int) trail.Config {
	cfg := trail.DefaultConfig()
	cfg.TrailCount = trailCount
	cfg.Backend = trail.BackendNameSoftware
	return cfg
}

func TestOrbitPosition(t *testing.T) {
	p0 := orbitPosition(0, 4, 0, 2)
	assert.InDelta(t, 2, p0.X(), 1e-5)
	assert.InDelta(t, 0, p0.Z(), 1e-5)

	p1 := orbitPosition(1, 4, 0, 2)
	assert.InDelta(t, 0, p1.X(), 1e-5)
	assert.InDelta(t, 2, p1.Z(), 1e-5)

	for i := range 4 {
		p := orbitPosition(i, 4, 1.3, 2)
		assert.InDelta(t, 2, mgl32.Vec2{p.X(), p.Z()}.Len(), 1e-4)
		assert.LessOrEqual(t, p.Y(), float32(0.5))
	}
}

func TestMoveEmitters(t *testing.T) {
	g := trail.NewEmitterGroup(3, 2)
	moveEmitters(g, 0, 1)
	n, batch := g.Collect()
	assert.Equal(t, 3, n)
	for i := range 3 {
		assert.Equal(t, 1, batch.TrailSamples(i))
	}
}

func TestRunHeadless(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := runOptions{frames: 5, radius: 4}
	require.NoError(t, runHeadless(context.Background(), headlessConfig(3), opts, reg))

	families, err := reg.Gather()
	require.NoError(t, err)
	var frames float64
	for _, mf := range families {
		if mf.GetName() == "oxy_trail_frames_total" {
			frames = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(5), frames)
}

func TestRunHeadlessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := runOptions{frames: 0, radius: 1}
	assert.NoError(t, runHeadless(ctx, headlessConfig(1), opts, prometheus.NewRegistry()))
}

func TestLoadConfigOrDefault(t *testing.T) {
	cfg, err := loadConfigOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, trail.DefaultConfig(), cfg)

	_, err = loadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "trails.toml")
	writeConfig(t, path, headlessConfig(7))
	cfg, err = loadConfigOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.TrailCount)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	writeConfig(t, good, headlessConfig(2))
	bad := filepath.Join(dir, "bad.toml")
	invalid := headlessConfig(2)
	invalid.Life = 0
	writeConfig(t, bad, invalid)

	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)

	root.SetArgs([]string{"validate", good})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "good.toml: ok")

	root.SetArgs([]string{"validate", good, bad})
	assert.ErrorContains(t, root.Execute(), "1 of 2 configs invalid")
}

func TestConfigCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--format", "yaml"})
	require.NoError(t, root.Execute())

	cfg, err := trail.ParseConfig(out.Bytes(), trail.ConfigFormatYAML)
	require.NoError(t, err)
	assert.Equal(t, trail.DefaultConfig().TrailCount, cfg.TrailCount)
}

func TestWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trails.toml")
	writeConfig(t, path, headlessConfig(2))

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan trail.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchConfig(ctx, path, func(cfg trail.Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	data, err := headlessConfig(9).Marshal(trail.ConfigFormatTOML)
	require.NoError(t, err)

	// Rewrite until the watcher is registered and reports the change.
	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return false
		}
		select {
		case cfg := <-reloaded:
			return cfg.TrailCount == 9
		case <-time.After(2 * reloadDebounce):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestToggleCulling(t *testing.T) {
	backend := trail.NewSoftwareBackend()
	sc := scene.NewScene("toggle", newDemoCamera(1, 2), backend, scene.WithComputeWorkers(1))
	t.Cleanup(func() { _ = sc.Release() })

	cfg := headlessConfig(2)
	cfg.Culling = false
	_, err := sc.AddTrailSet(trailSetKey, cfg, nil)
	require.NoError(t, err)

	require.NoError(t, toggleCulling(sc, trailSetKey))
	require.NoError(t, sc.PrepareCompute(0.1))
	assert.True(t, sc.TrailSet(trailSetKey).Config().Culling)
	assert.NotNil(t, sc.TrailSet(trailSetKey).Culler())

	assert.Error(t, toggleCulling(sc, "missing"))
}
