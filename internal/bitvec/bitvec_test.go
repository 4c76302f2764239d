// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package bitvec

import (
	"testing"
	"unsafe"
)

func TestNbit(t *testing.T) {
	for _, x := range [...][2]int{
		{int(unsafe.Sizeof(uint(0))) * 8, (&V[uint]{}).nbit()},
		{int(unsafe.Sizeof(uint8(0))) * 8, (&V[uint8]{}).nbit()},
		{int(unsafe.Sizeof(uint16(0))) * 8, (&V[uint16]{}).nbit()},
		{int(unsafe.Sizeof(uint32(0))) * 8, (&V[uint32]{}).nbit()},
		{int(unsafe.Sizeof(uint64(0))) * 8, (&V[uint64]{}).nbit()},
		{int(unsafe.Sizeof(uintptr(0))) * 8, (&V[uintptr]{}).nbit()},
	} {
		if x[0] != x[1] {
			t.Fatalf("V[T].nbit:\nhave %d\nwant %d", x[0], x[1])
		}
	}
}

func TestNew(t *testing.T) {
	for _, n := range [...]int{0, 1, 7, 8, 9, 64, 100} {
		v := New[uint8](n)
		if x := v.Len(); x != n {
			t.Fatalf("New(%d).Len:\nhave %d\nwant %d", n, x, n)
		}
		if x := v.Rem(); x != n {
			t.Fatalf("New(%d).Rem:\nhave %d\nwant %d", n, x, n)
		}
		if x, want := len(v.s), (n+7)/8; x != want {
			t.Fatalf("New(%d): len(v.s):\nhave %d\nwant %d", n, x, want)
		}
	}
}

func TestGrow(t *testing.T) {
	var v V[uint32]
	for _, x := range [...]struct {
		nplus, wantLen int
	}{
		{1, 1},
		{31, 32},
		{3, 35},
		{0, 35},
		{-1, 35},
		{100, 135},
	} {
		if n, i := v.Len(), v.Grow(x.nplus); n != i {
			t.Fatalf("v.Grow:\nhave %d\nwant %d", i, n)
		}
		if n := v.Len(); n != x.wantLen {
			t.Fatalf("v.Grow: Len:\nhave %d\nwant %d", n, x.wantLen)
		}
		if n := v.Rem(); n != x.wantLen {
			t.Fatalf("v.Grow: Rem:\nhave %d\nwant %d", n, x.wantLen)
		}
	}
}

func TestSetUnset(t *testing.T) {
	v := New[uint16](40)
	for _, i := range [...]int{0, 15, 16, 39} {
		v.Set(i)
		if !v.IsSet(i) {
			t.Fatalf("v.IsSet(%d):\nhave false\nwant true", i)
		}
	}
	// Setting twice has no effect.
	v.Set(15)
	if n := v.Rem(); n != 36 {
		t.Fatalf("v.Rem:\nhave %d\nwant 36", n)
	}
	if n := v.Count(); n != 4 {
		t.Fatalf("v.Count:\nhave %d\nwant 4", n)
	}
	v.Unset(16)
	v.Unset(16)
	if v.IsSet(16) {
		t.Fatal("v.IsSet(16):\nhave true\nwant false")
	}
	if n := v.Rem(); n != 37 {
		t.Fatalf("v.Rem:\nhave %d\nwant 37", n)
	}
	v.Clear()
	if n := v.Rem(); n != 40 {
		t.Fatalf("v.Clear: Rem:\nhave %d\nwant 40", n)
	}
}

func TestSearch(t *testing.T) {
	v := New[uint8](10)
	for i := range 10 {
		idx, ok := v.Search()
		if !ok || idx != i {
			t.Fatalf("v.Search:\nhave %d, %t\nwant %d, true", idx, ok, i)
		}
		v.Set(idx)
	}
	// Padding bits of the last Uint must not be returned.
	if idx, ok := v.Search(); ok {
		t.Fatalf("v.Search:\nhave %d, true\nwant 0, false", idx)
	}
	v.Unset(3)
	if idx, ok := v.Search(); !ok || idx != 3 {
		t.Fatalf("v.Search:\nhave %d, %t\nwant 3, true", idx, ok)
	}
}

func TestSearchRange(t *testing.T) {
	v := New[uint8](32)
	v.SetRange(0, 3)
	v.Set(5)
	v.SetRange(8, 8)
	for _, x := range [...]struct {
		n, idx int
		ok     bool
	}{
		{1, 3, true},
		{2, 3, true},
		{3, 16, true},
		{16, 16, true},
		{17, 0, false},
	} {
		idx, ok := v.SearchRange(x.n)
		if ok != x.ok || (ok && idx != x.idx) {
			t.Fatalf("v.SearchRange(%d):\nhave %d, %t\nwant %d, %t", x.n, idx, ok, x.idx, x.ok)
		}
	}
	v.UnsetRange(8, 8)
	if idx, ok := v.SearchRange(10); !ok || idx != 6 {
		t.Fatalf("v.SearchRange(10):\nhave %d, %t\nwant 6, true", idx, ok)
	}
}

func TestAll(t *testing.T) {
	v := New[uint32](5)
	v.Set(1)
	v.Set(4)
	n := 0
	for i, set := range v.All() {
		if want := i == 1 || i == 4; set != want {
			t.Fatalf("v.All: bit %d:\nhave %t\nwant %t", i, set, want)
		}
		n++
	}
	if n != 5 {
		t.Fatalf("v.All: count:\nhave %d\nwant 5", n)
	}
}
