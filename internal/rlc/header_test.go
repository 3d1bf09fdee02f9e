package rlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUMHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{SI: SIFull, SNSize: SN6},
		{SI: SIFirst, SN: 5, SNSize: SN6},
		{SI: SIMiddle, SN: 63, SO: 1234, SNSize: SN6},
		{SI: SILast, SN: 0, SO: 5, SNSize: SN6},
		{SI: SIFull, SNSize: SN12},
		{SI: SIFirst, SN: 4095, SNSize: SN12},
		{SI: SIMiddle, SN: 100, SO: 500, SNSize: SN12},
		{SI: SILast, SN: 1, SO: 23, SNSize: SN12},
	}
	for _, h := range cases {
		packed := PackUM(h)
		got, n, err := UnpackUM(h.SNSize, packed)
		require.NoError(t, err)
		assert.Equal(t, len(packed), n)
		assert.Equal(t, h.SI, got.SI)
		if h.SI != SIFull {
			assert.Equal(t, h.SN, got.SN)
		}
		if h.SI == SIMiddle || h.SI == SILast {
			assert.Equal(t, h.SO, got.SO)
			assert.True(t, got.HasSO)
		}
	}
}

func TestAMHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{DC: 1, SI: SIFull, SNSize: SN12},
		{DC: 1, Poll: true, SI: SIFirst, SN: 4095, SNSize: SN12},
		{DC: 1, SI: SIMiddle, SN: 100, SO: 500, SNSize: SN12},
		{DC: 1, SI: SIFull, SNSize: SN18},
		{DC: 1, Poll: true, SI: SIFirst, SN: 262143, SNSize: SN18},
		{DC: 1, SI: SILast, SN: 7, SO: 999, SNSize: SN18},
	}
	for _, h := range cases {
		packed := PackAM(h)
		got, n, err := UnpackAM(h.SNSize, packed)
		require.NoError(t, err)
		assert.Equal(t, len(packed), n)
		assert.Equal(t, h.DC, got.DC)
		assert.Equal(t, h.Poll, got.Poll)
		assert.Equal(t, h.SI, got.SI)
		if h.SI != SIFull {
			assert.Equal(t, h.SN, got.SN)
		}
		if h.SI == SIMiddle || h.SI == SILast {
			assert.Equal(t, h.SO, got.SO)
		}
	}
}

func TestUMFullHeaderRejectsReservedBits(t *testing.T) {
	_, _, err := UnpackUM(SN6, []byte{0x01})
	assert.Error(t, err)
}

func TestStatusPDURoundTrip(t *testing.T) {
	s := StatusPDU{
		ACKSN: 5,
		NACKs: []NACK{
			{SN: 0, HasSO: true, SOStart: 5, SOEnd: 5},
			{SN: 2, HasRange: true, RangeEnd: 3},
		},
	}
	packed := PackStatus(SN12, s)
	got, err := UnpackStatus(SN12, packed)
	require.NoError(t, err)
	assert.Equal(t, s.ACKSN, got.ACKSN)
	require.Len(t, got.NACKs, 2)
	assert.Equal(t, s.NACKs[0].SN, got.NACKs[0].SN)
	assert.True(t, got.NACKs[0].HasSO)
	assert.Equal(t, s.NACKs[0].SOStart, got.NACKs[0].SOStart)
	assert.Equal(t, s.NACKs[0].SOEnd, got.NACKs[0].SOEnd)
	assert.Equal(t, s.NACKs[1].SN, got.NACKs[1].SN)
	assert.True(t, got.NACKs[1].HasRange)
	assert.Equal(t, s.NACKs[1].RangeEnd, got.NACKs[1].RangeEnd)
}
