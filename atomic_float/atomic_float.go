package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 whose reads and writes are atomic, which lets a view read
// values while an evaluation writes them without locking the whole table.
// Values are stored as their IEEE-754 bit patterns. The zero value holds 0.0.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 returns an AtomicFloat64 holding val.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.Store(val)
	return af
}

// Load atomically reads the float64.
func (af *AtomicFloat64) Load() float64 {
	return math.Float64frombits(af.bits.Load())
}

// Store atomically sets the float64.
func (af *AtomicFloat64) Store(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// Add atomically adds addend and returns the new value. A write that loses a race with
// another writer is retried against the fresh value, so no update is dropped.
func (af *AtomicFloat64) Add(addend float64) (newVal float64) {
	for {
		old := af.bits.Load()
		newVal = math.Float64frombits(old) + addend
		if af.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}
