package rlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAMStatusOnLoss is scenario S2 from spec section 8: five 10-byte SDUs
// sent as 1-byte AM segments, with SN=0's SO=5 segment dropped; after the
// reassembly timer fires the status PDU should ACK everything through
// SN=4 (RX_Next_Highest=5) except a single NACK for SN=0 covering byte 5.
func TestAMStatusOnLoss(t *testing.T) {
	tx := NewTxAM(SN12, nil, nil, nil, nil, nil, "b01")
	rxNotify := &recordingDataNotifier{}
	rx := NewRxAM(SN12, nil, rxNotify, nil, nil, 1)
	tx.SetStatusProvider(rx)
	rx.SetStatusHandler(tx)

	for sn := 0; sn < 5; sn++ {
		tx.HandleSDU(chainOf(10), uint32(sn))
	}

	// First segment of each SDU has a 2-byte (no-SO) header; every
	// subsequent segment has a 4-byte (with-SO) header. Alternating the
	// grant this way yields exactly ten 1-byte segments per 10-byte SDU.
	var pdus [][]byte
	for sn := 0; sn < 5; sn++ {
		pdu := tx.PullPDU(3)
		require.NotNil(t, pdu)
		pdus = append(pdus, pdu.Flatten())
		for i := 0; i < 9; i++ {
			pdu := tx.PullPDU(5)
			require.NotNil(t, pdu)
			pdus = append(pdus, pdu.Flatten())
		}
	}
	require.Len(t, pdus, 50, "5 SDUs x 10 one-byte segments")

	for _, raw := range pdus {
		hdr, _, err := UnpackAM(SN12, raw)
		require.NoError(t, err)
		if hdr.SN == 0 && hdr.HasSO && hdr.SO == 5 {
			continue // drop this segment
		}
		rx.HandlePDU(raw)
	}

	rx.onReassemblyExpiry()

	s, ok := rx.PendingStatus()
	require.True(t, ok)
	assert.Equal(t, uint32(5), s.ACKSN)
	require.Len(t, s.NACKs, 1)
	assert.Equal(t, uint32(0), s.NACKs[0].SN)
	assert.True(t, s.NACKs[0].HasSO)
	assert.Equal(t, uint16(5), s.NACKs[0].SOStart)
	assert.Equal(t, uint16(5), s.NACKs[0].SOEnd)
}

func TestAMRetransmissionOnNACK(t *testing.T) {
	tx := NewTxAM(SN12, nil, nil, nil, nil, nil, "b02")
	rxNotify := &recordingDataNotifier{}
	rx := NewRxAM(SN12, nil, rxNotify, nil, nil, 1)
	tx.SetStatusProvider(rx)
	rx.SetStatusHandler(tx)

	tx.HandleSDU(chainOf(5), 0)
	pdu := tx.PullPDU(100)
	require.NotNil(t, pdu)

	status := StatusPDU{ACKSN: 1, NACKs: []NACK{{SN: 0}}}
	tx.ApplyStatus(status)
	require.Len(t, tx.retxQueue, 1)

	retxPDU := tx.PullPDU(100)
	require.NotNil(t, retxPDU)
	rx.HandlePDU(retxPDU.Flatten())
	require.Len(t, rxNotify.sdus, 1)
}

func TestAMMaxRetxRaisesProtocolFailure(t *testing.T) {
	var failed bool
	notifier := funcProtocolNotifier{onMaxRetx: func() { failed = true }}
	tx := NewTxAM(SN12, nil, nil, nil, notifier, nil, "b03")
	tx.maxRetxThresh = 2
	rx := NewRxAM(SN12, nil, nil, nil, nil, 1)
	tx.SetStatusProvider(rx)

	tx.HandleSDU(chainOf(5), 0)
	require.NotNil(t, tx.PullPDU(100))

	for i := 0; i < 3; i++ {
		tx.ApplyStatus(StatusPDU{ACKSN: 0, NACKs: []NACK{{SN: 0}}})
	}
	assert.True(t, failed)
	assert.True(t, tx.Failed())
	assert.Nil(t, tx.PullPDU(100))
}

type funcProtocolNotifier struct {
	onProtocolFailure func()
	onMaxRetx         func()
}

func (f funcProtocolNotifier) OnProtocolFailure() {
	if f.onProtocolFailure != nil {
		f.onProtocolFailure()
	}
}

func (f funcProtocolNotifier) OnMaxRetx() {
	if f.onMaxRetx != nil {
		f.onMaxRetx()
	}
}
