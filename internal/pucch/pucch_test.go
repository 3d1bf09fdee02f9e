package pucch

import (
	"testing"

	"github.com/open-ran-go/gnb-mac-rlc/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderPartitionsDisjointResources(t *testing.T) {
	b := NewBuilder(64)
	ue1, err := b.Partition(2)
	require.NoError(t, err)
	ue2, err := b.Partition(2)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, r := range append(append(ue1.HARQAck, ue1.Format2[0], ue1.SR, ue1.CSI), append(ue2.HARQAck, ue2.Format2[0], ue2.SR, ue2.CSI)...) {
		assert.False(t, seen[r.PRB], "prb %d reused across UEs", r.PRB)
		seen[r.PRB] = true
	}
}

func TestBuilderExhaustion(t *testing.T) {
	b := NewBuilder(3)
	_, err := b.Partition(2) // needs 5 PRBs (2 harq + format2 + sr + csi)
	assert.Error(t, err)
}

func TestManagerAvoidsCollisionAcrossUEs(t *testing.T) {
	b := NewBuilder(64)
	ue1, _ := b.Partition(1)
	ue2, _ := b.Partition(1)
	m := NewManager(8)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	m.SlotIndication(sl)

	r1, ok := m.AllocateHARQAck(sl, ue1, nil)
	require.True(t, ok)
	r2, ok := m.AllocateHARQAck(sl, ue2, nil)
	require.True(t, ok)
	assert.NotEqual(t, r1.PRB, r2.PRB)
}

func TestManagerMixesHARQIntoExistingFormat2(t *testing.T) {
	b := NewBuilder(64)
	ue, _ := b.Partition(1)
	m := NewManager(8)
	sl := slot.New(slot.SCS30kHz, 0, 0)
	m.SlotIndication(sl)

	sr, ok := m.AllocateCSI(sl, ue)
	require.True(t, ok)
	mixed, ok := m.AllocateHARQAck(sl, ue, &sr)
	require.True(t, ok)
	assert.Equal(t, sr, mixed, "harq-ack bits mix into the existing CSI format-2 resource")
}

func TestManagerSlotIndicationResetsUsage(t *testing.T) {
	b := NewBuilder(64)
	ue, _ := b.Partition(1)
	m := NewManager(8)
	sl0 := slot.New(slot.SCS30kHz, 0, 0)
	m.SlotIndication(sl0)
	_, ok := m.AllocateHARQAck(sl0, ue, nil)
	require.True(t, ok)

	sl8 := slot.New(slot.SCS30kHz, 0, 8)
	m.SlotIndication(sl8) // wraps onto sl0's ring entry (k=8)
	_, ok = m.AllocateHARQAck(sl8, ue, nil)
	assert.True(t, ok, "ring entry was wiped by the wrapping SlotIndication")
}
