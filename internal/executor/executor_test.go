package executor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitOrderPreserved(t *testing.T) {
	e := NewCellExecutor()
	var got []int
	for i := 0; i < 200; i++ {
		i := i
		require.NoError(t, e.Submit(func() { got = append(got, i) }))
	}
	n := e.RunPending()
	assert.Equal(t, 200, n)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
	assert.Zero(t, e.Pending())
}

func TestSubmitFromManyGoroutines(t *testing.T) {
	e := NewCellExecutor()
	var wg sync.WaitGroup
	const producers = 32
	const perProducer = 50
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = e.Submit(func() {})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, producers*perProducer, e.Pending())
	assert.Equal(t, producers*perProducer, e.RunPending())
}

func TestTasksSubmittedDuringRunDeferToNextDrain(t *testing.T) {
	e := NewCellExecutor()
	ran := 0
	require.NoError(t, e.Submit(func() {
		ran++
		_ = e.Submit(func() { ran++ })
	}))
	assert.Equal(t, 1, e.RunPending())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, e.RunPending())
	assert.Equal(t, 2, ran)
}

func TestTerminateRejectsSubmit(t *testing.T) {
	e := NewCellExecutor()
	ran := false
	require.NoError(t, e.Submit(func() { ran = true }))
	e.Terminate()
	assert.True(t, ran)
	assert.Equal(t, StateTerminated, e.State())
	assert.ErrorIs(t, e.Submit(func() {}), ErrTerminated)
}

func TestCoalescingFlagCollapsesArms(t *testing.T) {
	var flag CoalescingFlag
	e := NewUEExecutor()
	armed := 0
	arm := func() {
		if flag.TryArm() {
			armed++
			_ = e.Submit(func() { flag.Disarm() })
		}
	}
	arm()
	arm()
	arm()
	assert.Equal(t, 1, armed, "only the first arm should queue a task")
	assert.True(t, flag.Armed())
	e.RunPending()
	assert.False(t, flag.Armed())

	arm()
	assert.Equal(t, 2, armed, "a fresh arm after disarm should queue again")
}
