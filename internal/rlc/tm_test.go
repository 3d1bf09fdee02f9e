package rlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTMPullPDUReturnsSDUVerbatim(t *testing.T) {
	tx := NewTxTM(nil, nil, nil, "b00")
	tx.HandleSDU(chainOf(10))
	assert.Equal(t, uint32(10), tx.BufferState())

	pdu := tx.PullPDU(100)
	require.NotNil(t, pdu)
	assert.Equal(t, 10, pdu.Len())
	assert.Equal(t, uint32(0), tx.BufferState())
}

func TestTMPullPDUDropsOversizedSDU(t *testing.T) {
	tx := NewTxTM(nil, nil, nil, "b01")
	tx.HandleSDU(chainOf(20))

	pdu := tx.PullPDU(5)
	assert.Nil(t, pdu)
	assert.Equal(t, uint32(0), tx.BufferState(), "oversized SDU is dropped, not requeued")
}

func TestTMPullPDUEmptyQueueReturnsNil(t *testing.T) {
	tx := NewTxTM(nil, nil, nil, "b02")
	assert.Nil(t, tx.PullPDU(100))
}

func TestTMDiscardUnsupported(t *testing.T) {
	tx := NewTxTM(nil, nil, nil, "b03")
	tx.HandleSDU(chainOf(10))
	tx.Discard(1)
	// TM cannot discard; the SDU remains queued.
	assert.Equal(t, uint32(10), tx.BufferState())
}

func TestRxTMForwardsUnchanged(t *testing.T) {
	notifier := &recordingDataNotifier{}
	rx := NewRxTM(notifier)
	rx.HandlePDU(chainOf(7))
	require.Len(t, notifier.sdus, 1)
	assert.Len(t, notifier.sdus[0], 7)
}
