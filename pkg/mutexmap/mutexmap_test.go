package mutexmap

import (
	"testing"

	"github.com/function61/gokit/assert"
)

func TestMutexMap(t *testing.T) {
	mm := New()

	releaseC, cOk := mm.TryLock("C:")
	assert.Assert(t, cOk)
	assert.Assert(t, mm.Held("C:"))

	_, cConcurrentOk := mm.TryLock("C:")
	assert.Assert(t, !cConcurrentOk)

	// other keys are independent
	releaseD, dOk := mm.TryLock("D:")
	assert.Assert(t, dOk)
	releaseD()

	releaseC()
	assert.Assert(t, !mm.Held("C:"))

	releaseC, cOk = mm.TryLock("C:")
	assert.Assert(t, cOk)
	defer releaseC()
}

func TestDoubleReleaseDoesNotFreeNewHolder(t *testing.T) {
	mm := New()

	first, _ := mm.TryLock("C:")
	first()

	second, ok := mm.TryLock("C:")
	assert.Assert(t, ok)
	defer second()

	first() // stale release

	assert.Assert(t, mm.Held("C:"))
}
