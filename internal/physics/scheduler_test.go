package physics

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineScheduler_WaitAllBlocksUntilEverySpawnedTaskReturns(t *testing.T) {
	s := NewGoroutineScheduler()
	var done int32
	for i := 0; i < 50; i++ {
		s.Spawn(func() { atomic.AddInt32(&done, 1) })
	}
	s.WaitAll()
	assert.EqualValues(t, 50, atomic.LoadInt32(&done))
}
