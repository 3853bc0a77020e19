package asynclogger

import (
	"sync/atomic"
)

// slotState is one cell's state in the four-state machine from spec.md §3/§4.1.
type slotState int32

const (
	stateClean slotState = iota
	stateWriting
	stateDirty
	stateFlushing
)

// Slot is one cell of the Ring. Its status is the only field ever touched
// concurrently: buffer bytes and length are written only while status ==
// WRITING and read only while status == FLUSHING, so the CAS on status
// is what hands off ownership between a producer and the flusher.
//
// Grounded on the teacher's Buffer (asynclogger/buffer.go), generalized from
// its implicit offset+readyForFlush pair into the explicit four-state
// machine spec.md names as first class (CLEAN/WRITING/DIRTY/FLUSHING).
type Slot struct {
	state  atomic.Int32 // slotState
	data   []byte       // fixed capacity, allocated once
	length int32        // valid bytes in data; touched only under WRITING/FLUSHING ownership
}

// NewSlot allocates a slot with the given fixed message capacity.
func NewSlot(capacity int) *Slot {
	s := &Slot{data: make([]byte, capacity)}
	s.state.Store(int32(stateClean))
	return s
}

// tryWrite requires status == CLEAN, CASes to WRITING, copies min(len(p), cap)
// bytes, then unconditionally stores DIRTY. Returns false without side
// effects if another producer already owns this slot.
func (s *Slot) tryWrite(p []byte) (ok bool) {
	if !s.state.CompareAndSwap(int32(stateClean), int32(stateWriting)) {
		return false
	}

	n := copy(s.data, p)
	s.length = int32(n)

	// Unconditional store: this producer holds exclusive ownership from the
	// CAS above until this point, so no second CAS is needed here.
	s.state.Store(int32(stateDirty))
	return true
}

// tryFlush requires status == DIRTY, CASes to FLUSHING, writes the slot's
// bytes to sink, then unconditionally stores CLEAN. Returns false without
// side effects if the slot isn't dirty (being written, or already claimed
// by another flusher).
func (s *Slot) tryFlush(sink func(p []byte) error) (ok bool, err error) {
	if !s.state.CompareAndSwap(int32(stateDirty), int32(stateFlushing)) {
		return false, nil
	}

	err = sink(s.data[:s.length])

	s.state.Store(int32(stateClean))
	return true, err
}

// needsFlush reports whether the slot is DIRTY.
func (s *Slot) needsFlush() bool {
	return slotState(s.state.Load()) == stateDirty
}

// isAvailable reports whether the slot is CLEAN or DIRTY (not presently
// owned by a WRITING or FLUSHING producer/flusher).
func (s *Slot) isAvailable() bool {
	switch slotState(s.state.Load()) {
	case stateClean, stateDirty:
		return true
	default:
		return false
	}
}
