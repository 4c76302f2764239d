// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"

	"github.com/gviegas/meshdraw/linear"
)

const eps = 1e-4

func project(c *Camera, p linear.V3) linear.V4 {
	vp := c.ViewProjection()
	v := linear.V4{p[0], p[1], p[2], 1}
	v.Mul(&vp, &v)
	return linear.V4{v[0] / v[3], v[1] / v[3], v[2] / v[3], 1}
}

func TestNew(t *testing.T) {
	c := New([3]float32{0, 0, -2}, [3]float32{})
	assert.Equal(t, [3]float32{0, 0, -2}, c.Position())
	assert.Equal(t, [3]float32{}, c.Rotation())

	v := project(c, linear.V3{})
	assert.InDelta(t, 0, v[0], eps)
	assert.InDelta(t, 0, v[1], eps)
	assert.Greater(t, v[2], float32(0))
	assert.Less(t, v[2], float32(1))

	// Depth is 0 at the near plane and 1 at the far plane.
	v = project(c, linear.V3{0, 0, -2 + c.Near})
	assert.InDelta(t, 0, v[2], eps)
	v = project(c, linear.V3{0, 0, -2 + c.Far})
	assert.InDelta(t, 1, v[2], eps)
}

func TestNewClampsPitch(t *testing.T) {
	c := New([3]float32{}, [3]float32{10, 0, 0})
	assert.InDelta(t, maxPitch, c.Rotation()[0], eps)
}

func TestMove(t *testing.T) {
	c := New([3]float32{}, [3]float32{})
	c.Move(100, 0)
	assert.InDelta(t, 100*dflSensitivity, c.Rotation()[1], eps)
	c.Move(0, -1e6)
	assert.InDelta(t, -maxPitch, c.Rotation()[0], eps)
	c.Move(0, 2e6)
	assert.InDelta(t, maxPitch, c.Rotation()[0], eps)
}

func TestUpdate(t *testing.T) {
	c := New([3]float32{}, [3]float32{})
	c.Update(0.016, 1600, 800)
	vp := c.ViewProjection()
	assert.InDelta(t, vp[1][1], 2*vp[0][0], eps)

	// Zero size keeps the aspect ratio.
	c.Update(0.016, 0, 0)
	assert.Equal(t, vp, c.ViewProjection())

	c.Spin = 0.5
	c.Update(2, 1600, 800)
	assert.InDelta(t, 1, c.Rotation()[1], eps)
}

func TestYaw(t *testing.T) {
	c := New([3]float32{}, [3]float32{0, math32.Pi / 2, 0})
	view := c.View()
	v := linear.V4{5, 0, 0, 1}
	v.Mul(&view, &v)
	assert.InDelta(t, 0, v[0], eps)
	assert.InDelta(t, 0, v[1], eps)
	assert.InDelta(t, 5, v[2], eps)

	p := project(c, linear.V3{5, 0, 0})
	assert.InDelta(t, 0, p[0], eps)
	assert.Greater(t, p[2], float32(0))
}
