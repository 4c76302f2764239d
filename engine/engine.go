// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package engine renders a meshlet scene with a mesh
// shading pipeline and presents it to a surface.
package engine

import (
	"io"
	"log/slog"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/internal/logger"
)

const (
	// The minimum number of swapchain images.
	MinImageCount = 2

	dflWidth      = 1600
	dflHeight     = 900
	dflImageCount = MinImageCount
	dflShaderDir  = "."
	dflAS         = "meshlet_as.dxil"
	dflMS         = "meshlet_ms.dxil"
	dflPS         = "meshlet_ps.dxil"
	dflBlockSize  = 16 << 20
	dflRTVCap     = MinImageCount
	dflDSVCap     = 1
	dflCBVCap     = 4
)

// CornflowerBlue is the default clear color.
var CornflowerBlue = [4]float32{0.392156899, 0.584313750, 0.929411829, 1}

// Config is used to configure the engine.
// It can be decoded from TOML with LoadConfig.
type Config struct {
	// Substring of the name of the driver to use.
	// The match is case insensitive. The soft driver
	// must be named explicitly.
	//
	// Default is "" (any native driver).
	Driver string `toml:"driver"`

	// Enable the driver's validation layer.
	//
	// Default is false.
	Debug bool `toml:"debug"`

	// Size of the surface in pixels.
	//
	// Default is 1600x900.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Number of swapchain images.
	// It must be at least MinImageCount.
	//
	// Default is 2.
	ImageCount int `toml:"image_count"`

	// Wait for vertical sync when presenting.
	//
	// Default is false.
	VSync bool `toml:"vsync"`

	// Directory containing the shader binaries.
	//
	// Default is ".".
	ShaderDir string `toml:"shader_dir"`

	// File names of the amplification, mesh and pixel
	// shader binaries.
	//
	// Default is "meshlet_as.dxil", "meshlet_ms.dxil"
	// and "meshlet_ps.dxil".
	AmplificationShader string `toml:"amplification_shader"`
	MeshShader          string `toml:"mesh_shader"`
	PixelShader         string `toml:"pixel_shader"`

	// Path of a glTF file whose meshlets are uploaded
	// and bound to the pipeline.
	//
	// Default is "" (no mesh).
	Mesh string `toml:"mesh"`

	// Size of the allocator's pooled memory blocks.
	//
	// Default is 16777216 bytes (16MiB).
	BlockSize int64 `toml:"block_size"`

	// Capacities of the RTV, DSV and CBV/SRV/UAV
	// descriptor heaps.
	// The RTV heap needs one slot per swapchain image.
	//
	// Default is 2, 1 and 4.
	RTVCapacity int `toml:"rtv_capacity"`
	DSVCapacity int `toml:"dsv_capacity"`
	CBVCapacity int `toml:"cbv_capacity"`

	// Color to which the image is cleared every frame.
	//
	// Default is CornflowerBlue.
	ClearColor [4]float32 `toml:"clear_color"`

	// Create a depth buffer and enable the depth test.
	// Depth is 0 at the near plane and is cleared to 1.
	//
	// Default is false.
	Depth bool `toml:"depth"`

	// Initial camera position and rotation (pitch, yaw
	// and roll, in radians).
	//
	// Default is (0, 0, -2) and (0, 0, 0).
	CameraPosition [3]float32 `toml:"camera_position"`
	CameraRotation [3]float32 `toml:"camera_rotation"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Width:               dflWidth,
		Height:              dflHeight,
		ImageCount:          dflImageCount,
		ShaderDir:           dflShaderDir,
		AmplificationShader: dflAS,
		MeshShader:          dflMS,
		PixelShader:         dflPS,
		BlockSize:           dflBlockSize,
		RTVCapacity:         dflRTVCap,
		DSVCapacity:         dflDSVCap,
		CBVCapacity:         dflCBVCap,
		ClearColor:          CornflowerBlue,
		CameraPosition:      [3]float32{0, 0, -2},
	}
}

// LoadConfig decodes a TOML document from r over the
// default configuration.
// Unknown keys are errors.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "engine: config")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("engine: invalid surface size %dx%d", c.Width, c.Height)
	case c.ImageCount < MinImageCount:
		return errors.Errorf("engine: image count %d is less than %d", c.ImageCount, MinImageCount)
	case c.RTVCapacity < c.ImageCount:
		return errors.Errorf("engine: RTV capacity %d cannot hold %d images", c.RTVCapacity, c.ImageCount)
	case c.Depth && c.DSVCapacity < 1:
		return errors.New("engine: depth requires a DSV capacity of at least 1")
	case c.CBVCapacity < 1:
		return errors.New("engine: CBV capacity must be at least 1")
	case c.BlockSize < 0:
		return errors.Errorf("engine: invalid block size %d", c.BlockSize)
	}
	return nil
}

// SetLogger sets the logger used by the engine and the
// drivers.
// Nothing is logged by default.
func SetLogger(l *slog.Logger) { logger.Set(l) }
