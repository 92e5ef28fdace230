package routines

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAllQueuedFunctionsRun(t *testing.T) {
	const cnt = 250

	var executed atomic.Int32

	pool := NewPool(4)

	for i := 0; i < cnt; i++ {
		pool.Queue(func() {
			executed.Add(1)
		})
	}

	pool.Wait()

	assert.Equal(t, int32(cnt), executed.Load())
}

func TestSingleRoutinePoolRunsInOrder(t *testing.T) {
	var order []int

	pool := NewPool(1)

	for i := 0; i < 10; i++ {
		i := i
		pool.Queue(func() {
			order = append(order, i)
		})
	}

	pool.Wait()

	assert.IsIncreasing(t, order)
}

func TestQueuePanicsAfterWait(t *testing.T) {
	pool := NewPool(1)
	pool.Wait()

	assert.Panics(t, func() {
		pool.Queue(func() {})
	})
}

func TestWaitCanBeCalledMultipleTimes(t *testing.T) {
	pool := NewPool(2)
	pool.Wait()
	assert.NotPanics(t, pool.Wait)
}
