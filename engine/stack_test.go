// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	var (
		s   Stack
		got []string
	)
	rel := func(name string) func() { return func() { got = append(got, name) } }
	dev := s.Push("device", rel("device"))
	heap := s.Push("heap", rel("heap"))
	res := s.Push("resource", rel("resource"))
	assert.Equal(t, 3, s.Len())

	err := s.Release(heap)
	assert.ErrorIs(t, err, ErrOrder)
	assert.Contains(t, err.Error(), "heap released before resource")
	assert.ErrorIs(t, s.Release(dev), ErrOrder)
	assert.Empty(t, got)

	require.NoError(t, s.Release(res))
	require.NoError(t, s.Release(heap))
	assert.ErrorIs(t, s.Release(heap), ErrOrder)
	assert.Equal(t, []string{"resource", "heap"}, got)

	s.Push("view", rel("view"))
	s.Push("nop", nil)
	s.Unwind()
	assert.Equal(t, []string{"resource", "heap", "view", "device"}, got)
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Release(dev), ErrOrder)
}
