// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package camera implements a first-person camera that
// produces view-projection matrices.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/gviegas/meshdraw/linear"
)

const (
	dflYFov        = math32.Pi / 3
	dflNear        = 0.1
	dflFar         = 100
	dflSensitivity = 0.005
	maxPitch       = math32.Pi/2 - 0.01
)

// Camera is a perspective camera whose orientation is
// given by pitch, yaw and roll angles.
type Camera struct {
	// Vertical field of view in radians.
	YFov float32
	// Distances to the near and far planes.
	Near, Far float32
	// Radians per unit of mouse motion.
	Sensitivity float32
	// Yaw change in radians per second.
	Spin float32

	pos    linear.V3
	rot    [3]float32
	aspect float32
	proj   linear.M4
	view   linear.M4
}

// New creates a camera at position whose initial
// rotation is rotation (pitch, yaw and roll).
// The aspect ratio is 1 until the first call to Update.
func New(position, rotation [3]float32) *Camera {
	c := &Camera{
		YFov:        dflYFov,
		Near:        dflNear,
		Far:         dflFar,
		Sensitivity: dflSensitivity,
		pos:         position,
		rot:         rotation,
		aspect:      1,
	}
	c.rot[0] = clampPitch(c.rot[0])
	c.compute()
	return c
}

func clampPitch(p float32) float32 { return math32.Max(-maxPitch, math32.Min(maxPitch, p)) }

// Position returns the camera's position.
func (c *Camera) Position() [3]float32 { return c.pos }

// Rotation returns the camera's pitch, yaw and roll.
func (c *Camera) Rotation() [3]float32 { return c.rot }

// Move rotates the camera by mouse motion.
// Horizontal motion changes yaw and vertical motion
// changes pitch, which is clamped short of straight up
// and down.
func (c *Camera) Move(dx, dy float32) {
	c.rot[1] += dx * c.Sensitivity
	c.rot[0] = clampPitch(c.rot[0] + dy*c.Sensitivity)
}

// Update advances the camera by dt seconds and sets the
// aspect ratio from the surface size.
// A zero-sized surface keeps the previous aspect ratio.
func (c *Camera) Update(dt float32, width, height int) {
	if width > 0 && height > 0 {
		c.aspect = float32(width) / float32(height)
	}
	c.rot[1] += c.Spin * dt
	c.compute()
}

func (c *Camera) compute() {
	var p, y, r, q linear.Q
	p.Rotate(c.rot[0], &linear.V3{1})
	y.Rotate(c.rot[1], &linear.V3{1: 1})
	r.Rotate(c.rot[2], &linear.V3{2: 1})
	q.Mul(&y, &p)
	q.Mul(&q, &r)
	q.Norm(&q)

	// The rotated Y and Z axes are the up and forward
	// directions.
	var rm linear.M4
	rm.RotateQ(&q)
	up := linear.V3{rm[1][0], rm[1][1], rm[1][2]}
	var center linear.V3
	center.Add(&c.pos, &linear.V3{rm[2][0], rm[2][1], rm[2][2]})
	c.view.LookAt(&c.pos, &center, &up)
	c.proj.Perspective(c.YFov, c.aspect, c.Near, c.Far)
}

// View returns the view matrix computed by the last
// call to Update.
func (c *Camera) View() linear.M4 { return c.view }

// ViewProjection returns the product of the projection
// and view matrices computed by the last call to Update.
func (c *Camera) ViewProjection() linear.M4 {
	var m linear.M4
	m.Mul(&c.proj, &c.view)
	return m
}
