package rlc

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainOf(n int) *buffer.Chain {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	c := buffer.NewChain()
	c.Append(buffer.NewSlice(buffer.WrapBuffer(data), 0, n))
	return c
}

type recordingDataNotifier struct {
	sdus [][]byte
}

func (r *recordingDataNotifier) OnNewSDU(c *buffer.Chain) {
	r.sdus = append(r.sdus, c.Flatten())
}

// TestUM12BitSegmentation is scenario S1 from spec section 8: a single
// 100-byte SDU pulled under repeated 25-byte grants segments cleanly,
// reassembles byte-exact, and drains the buffer state to zero - mirroring
// original_source/tests/unittests/rlc/rlc_um_test.cpp's
// tx_with_pdu_duplicates shape (grant-driven pull loop + full reassembly
// check) rather than hard-coding 3GPP header-size arithmetic offsets.
func TestUM12BitSegmentation(t *testing.T) {
	tx := NewTxUM(SN12, nil, nil, nil, nil, "b01")
	sdu := chainOf(100)
	tx.HandleSDU(sdu, 1)

	rxNotify := &recordingDataNotifier{}
	rx := NewRxUM(SN12, nil, rxNotify, nil, nil, 1)

	var sis []SI
	for i := 0; i < 10; i++ {
		pdu := tx.PullPDU(25)
		if pdu == nil {
			break
		}
		raw := pdu.Flatten()
		hdr, _, err := UnpackUM(SN12, raw)
		require.NoError(t, err)
		sis = append(sis, hdr.SI)
		rx.HandlePDU(raw)
	}

	require.NotEmpty(t, sis)
	assert.Equal(t, SIFirst, sis[0])
	assert.Equal(t, SILast, sis[len(sis)-1])
	for _, si := range sis[1 : len(sis)-1] {
		assert.Equal(t, SIMiddle, si)
	}

	require.Len(t, rxNotify.sdus, 1)
	assert.Len(t, rxNotify.sdus[0], 100)
	for i, b := range rxNotify.sdus[0] {
		assert.Equal(t, byte(i), b)
	}

	bytes, _ := tx.GetBufferState()
	assert.Equal(t, uint32(0), bytes)
}

func TestUMOutOfOrderReassembly(t *testing.T) {
	tx := NewTxUM(SN6, nil, nil, nil, nil, "b02")
	sdu := chainOf(50)
	tx.HandleSDU(sdu, 1)

	var pdus [][]byte
	for {
		pdu := tx.PullPDU(20)
		if pdu == nil {
			break
		}
		pdus = append(pdus, pdu.Flatten())
	}
	require.GreaterOrEqual(t, len(pdus), 2)

	rxNotify := &recordingDataNotifier{}
	rx := NewRxUM(SN6, nil, rxNotify, nil, nil, 1)
	// deliver last PDU first, then the rest in order - still reassembles.
	rx.HandlePDU(pdus[len(pdus)-1])
	for _, p := range pdus[:len(pdus)-1] {
		rx.HandlePDU(p)
	}
	require.Len(t, rxNotify.sdus, 1)
	assert.Len(t, rxNotify.sdus[0], 50)
}

func TestUMFullSDUWhenGrantFits(t *testing.T) {
	tx := NewTxUM(SN12, nil, nil, nil, nil, "b03")
	tx.HandleSDU(chainOf(10), 1)
	pdu := tx.PullPDU(100)
	require.NotNil(t, pdu)
	hdr, _, err := UnpackUM(SN12, pdu.Flatten())
	require.NoError(t, err)
	assert.Equal(t, SIFull, hdr.SI)
}

func TestUMSmallGrantReturnsNil(t *testing.T) {
	tx := NewTxUM(SN12, nil, nil, nil, nil, "b04")
	tx.HandleSDU(chainOf(10), 1)
	pdu := tx.PullPDU(0)
	assert.Nil(t, pdu)
}
