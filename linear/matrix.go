// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import (
	"github.com/chewxy/math32"
)

// M4 is a column-major 4x4 matrix of float32.
type M4 [4]V4

// I makes m an identity matrix.
func (m *M4) I() { *m = M4{{1}, {0, 1}, {0, 0, 1}, {0, 0, 0, 1}} }

// Mul sets m to contain l ⋅ r.
// m may alias l or r.
func (m *M4) Mul(l, r *M4) {
	var p M4
	for i := range p {
		p[i].Mul(l, &r[i])
	}
	*m = p
}

// RotateQ sets m to contain the rotation matrix of q.
// q must be normalized.
func (m *M4) RotateQ(q *Q) {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.R
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	*m = M4{
		{1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0},
		{2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0},
		{2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0},
		{3: 1},
	}
}

// Perspective sets m to contain a left-handed perspective
// projection.
// Depth is mapped from [near, far] to [0, 1].
func (m *M4) Perspective(yfov, aspect, near, far float32) {
	f := 1 / math32.Tan(yfov*0.5)
	r := far / (far - near)
	*m = M4{{f / aspect}, {1: f}, {2: r, 3: 1}, {2: -near * r}}
}

// LookAt sets m to contain a left-handed view matrix.
// up must not be parallel to center - eye.
func (m *M4) LookAt(eye, center, up *V3) {
	var f, s, u V3
	f.Sub(center, eye)
	f.Norm(&f)
	s.Cross(up, &f)
	s.Norm(&s)
	u.Cross(&f, &s)
	*m = M4{
		{s[0], u[0], f[0]},
		{s[1], u[1], f[1]},
		{s[2], u[2], f[2]},
		{-s.Dot(eye), -u.Dot(eye), -f.Dot(eye), 1},
	}
}
