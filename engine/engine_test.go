// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/driver/soft"
	"github.com/gviegas/meshdraw/engine/internal/ctxt"
)

// Sizes of the fake shader binaries.
var shaderSizes = map[string]int{dflAS: 128, dflMS: 512, dflPS: 256}

// writeShaders writes fake shader binaries to a temporary
// directory.
// The soft driver does not run shaders, so their contents
// only need to round-trip.
func writeShaders(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, n := range shaderSizes {
		b := bytes.Repeat([]byte{byte(n)}, n)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
	}
	return dir
}

// testConfig returns a small configuration that uses the
// soft driver.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Driver = "soft"
	cfg.Debug = true
	cfg.Width = 64
	cfg.Height = 32
	cfg.ShaderDir = writeShaders(t)
	return cfg
}

// openGPU opens the soft driver and closes it when the
// test ends, checking that nothing leaked.
func openGPU(t *testing.T) *soft.GPU {
	t.Helper()
	drv, gpu, err := ctxt.Load("soft", driver.Config{Debug: true})
	require.NoError(t, err)
	g := gpu.(*soft.GPU)
	t.Cleanup(func() {
		drv.Close()
		assert.Empty(t, g.Violations())
	})
	return g
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.validate())
	assert.Equal(t, 1600, cfg.Width)
	assert.Equal(t, 900, cfg.Height)
	assert.Equal(t, MinImageCount, cfg.ImageCount)
	assert.Equal(t, CornflowerBlue, cfg.ClearColor)
	assert.Equal(t, "meshlet_ms.dxil", cfg.MeshShader)
	assert.Equal(t, [3]float32{0, 0, -2}, cfg.CameraPosition)
	assert.False(t, cfg.Depth)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
driver = "soft"
width = 800
height = 600
image_count = 3
rtv_capacity = 3
depth = true
clear_color = [0.0, 0.0, 0.0, 1.0]
camera_position = [1.0, 2.0, 3.0]
`))
	require.NoError(t, err)
	want := DefaultConfig()
	want.Driver = "soft"
	want.Width = 800
	want.Height = 600
	want.ImageCount = 3
	want.RTVCapacity = 3
	want.Depth = true
	want.ClearColor = [4]float32{0, 0, 0, 1}
	want.CameraPosition = [3]float32{1, 2, 3}
	assert.Equal(t, want, cfg)
}

func TestLoadConfigError(t *testing.T) {
	for _, doc := range [...]string{
		`no_such_key = 1`,
		`width = "wide"`,
		`width = -1`,
		`image_count = 1`,
		`image_count = 3`,
		`depth = true
dsv_capacity = 0`,
		`cbv_capacity = 0`,
		`block_size = -1`,
		`[section`,
	} {
		_, err := LoadConfig(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}
