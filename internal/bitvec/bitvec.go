// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package bitvec defines a bit vector type used to track
// fixed-capacity resources, such as allocator pages and
// descriptor slots.
package bitvec

import (
	"iter"
	"math/bits"
	"unsafe"
)

// Uint represents the granularity of a bit vector.
type Uint interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// V is a bit vector with custom granularity.
// A set bit means that the corresponding unit is in use.
type V[T Uint] struct {
	s   []T
	n   int
	rem int
}

// New creates a vector with n unset bits.
// Padding bits in the last Uint are never reported as
// available.
func New[T Uint](n int) *V[T] {
	v := new(V[T])
	v.Grow(n)
	return v
}

// nbit returns the number of bits in T.
func (*V[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of usable bits in the vector.
func (v *V[_]) Len() int { return v.n }

// Rem returns the number of unset bits in the vector.
func (v *V[_]) Rem() int { return v.rem }

// Grow appends nplus unset bits to the vector.
// It returns the index of the first new bit.
func (v *V[T]) Grow(nplus int) (index int) {
	index = v.n
	if nplus <= 0 {
		return
	}
	nb := v.nbit()
	if need := (v.n + nplus + nb - 1) / nb; need > len(v.s) {
		v.s = append(v.s, make([]T, need-len(v.s))...)
	}
	v.n += nplus
	v.rem += nplus
	return
}

func (v *V[T]) at(index int) (i int, b T) {
	n := v.nbit()
	return index / n, T(1) << (index % n)
}

// Set sets a given bit.
func (v *V[T]) Set(index int) {
	i, b := v.at(index)
	if v.s[i]&b == 0 {
		v.s[i] |= b
		v.rem--
	}
}

// Unset unsets a given bit.
func (v *V[T]) Unset(index int) {
	i, b := v.at(index)
	if v.s[i]&b != 0 {
		v.s[i] &^= b
		v.rem++
	}
}

// IsSet checks whether a given bit is set.
func (v *V[T]) IsSet(index int) bool {
	i, b := v.at(index)
	return v.s[i]&b != 0
}

// SetRange sets the bits in [index, index+n).
func (v *V[T]) SetRange(index, n int) {
	for i := index; i < index+n; i++ {
		v.Set(i)
	}
}

// UnsetRange unsets the bits in [index, index+n).
func (v *V[T]) UnsetRange(index, n int) {
	for i := index; i < index+n; i++ {
		v.Unset(i)
	}
}

// Search attempts to locate an unset bit in the vector.
// It fails only when v.Rem() == 0.
func (v *V[T]) Search() (index int, ok bool) {
	if v.rem == 0 {
		return
	}
	nb := v.nbit()
	for i, x := range v.s {
		if x == ^T(0) {
			continue
		}
		index = i*nb + bits.TrailingZeros64(uint64(^x))
		if index >= v.n {
			return 0, false
		}
		return index, true
	}
	return
}

// SearchRange attempts to locate n contiguous unset bits.
// The lowest such range is returned.
// It calls Search if n <= 1.
func (v *V[T]) SearchRange(n int) (index int, ok bool) {
	if n <= 1 {
		return v.Search()
	}
	if v.rem < n {
		return
	}
	nb := v.nbit()
	cnt := 0
	for i := 0; i < v.n; {
		// Skip whole Uints that are fully set.
		if i%nb == 0 && v.s[i/nb] == ^T(0) {
			cnt = 0
			i += nb
			continue
		}
		if v.IsSet(i) {
			cnt = 0
		} else if cnt++; cnt == n {
			return i - n + 1, true
		}
		i++
	}
	return
}

// Count returns the number of set bits.
func (v *V[_]) Count() int { return v.n - v.rem }

// Clear unsets every bit in the vector.
func (v *V[T]) Clear() {
	clear(v.s)
	v.rem = v.n
}

// All returns an iterator over all usable bits of the
// vector.
// The first value in the pair represents the index of the
// bit, while the second indicates whether the bit is set.
func (v *V[T]) All() iter.Seq2[int, bool] {
	return func(yield func(int, bool) bool) {
		for i := range v.n {
			if !yield(i, v.IsSet(i)) {
				return
			}
		}
	}
}
