// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import (
	"math"
	"testing"
)

// These are the transforms computed when a camera
// changes.

func BenchmarkPerspective(b *testing.B) {
	var m M4
	for i := 0; i < b.N; i++ {
		m.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100)
	}
	b.Log(m[0][0])
}

func BenchmarkLookAt(b *testing.B) {
	eye := V3{0, 1, -2}
	center := V3{0, 1, -1}
	up := V3{0, 1, 0}
	var m M4
	for i := 0; i < b.N; i++ {
		m.LookAt(&eye, &center, &up)
	}
	b.Log(m[3])
}

func BenchmarkRotateQ(b *testing.B) {
	var q Q
	q.Rotate(0.5, &V3{1: 1})
	var m M4
	for i := 0; i < b.N; i++ {
		m.RotateQ(&q)
	}
	b.Log(m[0])
}

func BenchmarkMul(b *testing.B) {
	var p, v, m M4
	p.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100)
	v.LookAt(&V3{0, 1, -2}, &V3{0, 1, -1}, &V3{0, 1, 0})
	b.Run("M4.Mul", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			m.Mul(&p, &v)
		}
	})
	b.Run("M4.Mul aliased", func(b *testing.B) {
		m = v
		for i := 0; i < b.N; i++ {
			m.Mul(&p, &m)
		}
	})
	b.Log(m[3])
}
