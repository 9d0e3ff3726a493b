package pdu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMDHeaderRoundTripFixed(t *testing.T) {
	cases := []Header{
		{Poll: false, Framing: FIBothAligned, SN: 0},
		{Poll: true, Framing: FINeitherAligned, SN: 1023},
		{Poll: false, Framing: FIFirstNotAligned, SN: 5, LIs: []uint32{10, 20, 30}},
		{Poll: true, Framing: FILastNotAligned, SN: 512, LIs: []uint32{1}},
		{Resegmented: true, LastSegment: true, SegOffset: 0, SN: 7, Framing: FIBothAligned},
		{Resegmented: true, LastSegment: false, SegOffset: 1234, SN: 7, Framing: FINeitherAligned, LIs: []uint32{5, 6}},
	}

	for _, h := range cases {
		encoded, err := Encode(h, LTE)
		require.NoError(t, err)

		decoded, rest, err := Decode(encoded, LTE)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, h.Poll, decoded.Poll)
		assert.Equal(t, h.Framing, decoded.Framing)
		assert.Equal(t, h.SN, decoded.SN)
		assert.Equal(t, h.Resegmented, decoded.Resegmented)
		if h.Resegmented {
			assert.Equal(t, h.LastSegment, decoded.LastSegment)
			assert.Equal(t, h.SegOffset, decoded.SegOffset)
		}
		assert.Equal(t, h.LIs, decoded.LIs)
	}
}

func TestAMDHeaderRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		nLI := rng.IntN(16)
		var lis []uint32
		for j := 0; j < nLI; j++ {
			lis = append(lis, uint32(rng.IntN(1<<11)))
		}

		h := Header{
			Poll:        rng.IntN(2) == 1,
			Framing:     FramingInfo(rng.IntN(4)),
			SN:          uint32(rng.IntN(1024)),
			LIs:         lis,
			Resegmented: rng.IntN(2) == 1,
		}
		if h.Resegmented {
			h.LastSegment = rng.IntN(2) == 1
			h.SegOffset = uint32(rng.IntN(1 << 15))
		}

		encoded, err := Encode(h, LTE)
		require.NoError(t, err)
		decoded, _, err := Decode(encoded, LTE)
		require.NoError(t, err)
		assert.Equal(t, h, decoded)
	}
}

func TestAMDHeaderWithPayloadLeavesRemainder(t *testing.T) {
	h := Header{SN: 3, Framing: FIBothAligned}
	encoded, err := Encode(h, LTE)
	require.NoError(t, err)

	payload := []byte{0xAA, 0xBB, 0xCC}
	full := append(encoded, payload...)

	_, rest, err := Decode(full, LTE)
	require.NoError(t, err)
	assert.Equal(t, payload, rest)
}

func TestDispatchKindDistinguishesDataFromControl(t *testing.T) {
	h := Header{SN: 1, Framing: FIBothAligned}
	dataBytes, err := Encode(h, LTE)
	require.NoError(t, err)
	kind, err := DispatchKind(dataBytes)
	require.NoError(t, err)
	assert.Equal(t, KindData, kind)

	s := Status{ACKSN: 9}
	ctrlBytes, err := EncodeStatus(s, LTE)
	require.NoError(t, err)
	kind, err = DispatchKind(ctrlBytes)
	require.NoError(t, err)
	assert.Equal(t, KindControl, kind)
}

func TestStatusRoundTripFixed(t *testing.T) {
	cases := []Status{
		{ACKSN: 0},
		{ACKSN: 1023, NACKs: []NACK{{SN: 5}, {SN: 900}}},
		{ACKSN: 10, NACKs: []NACK{{SN: 1, HasSegment: true, SOStart: 0, SOEnd: SOEnd}}},
		{ACKSN: 10, NACKs: []NACK{{SN: 1, HasSegment: true, SOStart: 100, SOEnd: 200}, {SN: 2}}},
	}

	for _, s := range cases {
		encoded, err := EncodeStatus(s, LTE)
		require.NoError(t, err)
		decoded, err := DecodeStatus(encoded, LTE)
		require.NoError(t, err)
		assert.Equal(t, s.ACKSN, decoded.ACKSN)
		assert.Equal(t, s.NACKs, decoded.NACKs)
	}
}

func TestStatusRoundTripRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 500; i++ {
		n := rng.IntN(32)
		var nacks []NACK
		for j := 0; j < n; j++ {
			nk := NACK{SN: uint32(rng.IntN(1024))}
			if rng.IntN(2) == 1 {
				nk.HasSegment = true
				nk.SOStart = uint32(rng.IntN(1 << 15))
				nk.SOEnd = uint32(rng.IntN(1 << 15))
			}
			nacks = append(nacks, nk)
		}
		s := Status{ACKSN: uint32(rng.IntN(1024)), NACKs: nacks}

		encoded, err := EncodeStatus(s, LTE)
		require.NoError(t, err)
		decoded, err := DecodeStatus(encoded, LTE)
		require.NoError(t, err)
		assert.Equal(t, s.ACKSN, decoded.ACKSN)
		assert.Equal(t, s.NACKs, decoded.NACKs)
	}
}

func TestFramingInfoAlignmentBits(t *testing.T) {
	assert.True(t, FIBothAligned.FirstAligned())
	assert.True(t, FIBothAligned.LastAligned())
	assert.False(t, FIFirstNotAligned.FirstAligned())
	assert.True(t, FIFirstNotAligned.LastAligned())
	assert.True(t, FILastNotAligned.FirstAligned())
	assert.False(t, FILastNotAligned.LastAligned())
	assert.False(t, FINeitherAligned.FirstAligned())
	assert.False(t, FINeitherAligned.LastAligned())
}
