package sn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWraps(t *testing.T) {
	s := LTE
	require.Equal(t, uint32(0), s.Advance(1023, 1))
	require.Equal(t, uint32(5), s.Advance(1020, 9))
}

func TestDiffWraps(t *testing.T) {
	s := LTE
	assert.Equal(t, uint32(1), s.Diff(1023, 0))
	assert.Equal(t, uint32(0), s.Diff(512, 512))
	assert.Equal(t, uint32(1023), s.Diff(0, 1023))
}

func TestIsInsideWindow(t *testing.T) {
	s := LTE
	low := uint32(1000)
	high := s.Advance(low, 512)

	assert.True(t, s.IsInside(low, high, low))
	assert.True(t, s.IsInside(low, high, s.Advance(low, 511)))
	assert.False(t, s.IsInside(low, high, high))
	assert.False(t, s.IsInside(low, high, s.Advance(low, 600)))
}

func TestIsInsideAcrossWrap(t *testing.T) {
	s := LTE
	low := uint32(900)
	high := s.Advance(low, 512) // wraps past 1024

	assert.True(t, s.IsInside(low, high, 1023))
	assert.True(t, s.IsInside(low, high, 0))
	assert.True(t, s.IsInside(low, high, s.Advance(low, 511)))
	assert.False(t, s.IsInside(low, high, high))
}

func TestLessRelativeToLow(t *testing.T) {
	s := LTE
	low := uint32(1020)
	assert.True(t, s.Less(low, s.Advance(low, 1), s.Advance(low, 5)))
	assert.False(t, s.Less(low, s.Advance(low, 5), s.Advance(low, 1)))
}

func TestRandomizedDiffRoundTrips(t *testing.T) {
	s := LTE
	for a := uint32(0); a < s.Modulus; a += 37 {
		for n := uint32(0); n < s.Modulus; n += 101 {
			b := s.Advance(a, n)
			require.Equal(t, n, s.Diff(a, b))
		}
	}
}
