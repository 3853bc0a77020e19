package asynclogger

import (
	"runtime"
	"sync/atomic"
)

// Ring is the fixed-capacity vector of Slots plus the atomic write cursor
// that lets many producers append with no mutual exclusion on the hot path
// (spec.md §3/§4.2).
//
// Grounded on the teacher's BufferSet (asynclogger/buffer_set.go): the
// round-robin-shard-selection idea becomes the cursor CAS, and the
// "NumShards()/Shards()" iteration idiom is kept for the flusher's sweep.
type Ring struct {
	slots   []*Slot
	cursor  atomic.Uint64 // next index a producer will try to claim, mod len(slots)
	nslots  uint64
}

// NewRing allocates a ring of n slots, each with the given message capacity.
func NewRing(n, slotCapacity int) *Ring {
	if n <= 0 {
		n = 1
	}
	slots := make([]*Slot, n)
	for i := range slots {
		slots[i] = NewSlot(slotCapacity)
	}
	r := &Ring{slots: slots, nslots: uint64(n)}
	return r
}

// Len returns the ring's slot count.
func (r *Ring) Len() int { return int(r.nslots) }

// Slots exposes the underlying slots for the flusher's circular sweep.
func (r *Ring) Slots() []*Slot { return r.slots }

// reserve claims the next cursor index via CAS, retrying on contention.
// Out-of-order completion between adjacent reservations is tolerated per
// spec.md §4.2 — the flusher doesn't require strict order.
func (r *Ring) reserve() uint64 {
	for {
		c := r.cursor.Load()
		next := (c + 1) % r.nslots
		if r.cursor.CompareAndSwap(c, next) {
			return c
		}
		runtime.Gosched()
	}
}

// Cursor returns the current write cursor, used by the flusher to pick a
// circular sweep start point.
func (r *Ring) Cursor() uint64 { return r.cursor.Load() }

// Write reserves the next slot and writes p into it. If the reserved slot
// is still DIRTY (the flusher hasn't drained it yet), the caller
// cooperates by spin-yielding until it's available again, per spec.md
// §4.2: "the producer now owns index c ... if slot[c] is not available,
// yield and re-check until it is."
func (r *Ring) Write(p []byte) {
	idx := r.reserve()
	slot := r.slots[idx]

	for !slot.isAvailable() {
		runtime.Gosched()
	}

	// A concurrent producer may have raced us onto a slot that just became
	// DIRTY again (two producers can reserve adjacent indices and complete
	// out of order); retry the CAS-based write until it succeeds, which it
	// always eventually will once the owning writer/flusher releases it.
	for !slot.tryWrite(p) {
		runtime.Gosched()
	}
}
