package throttle

import "sync/atomic"

const (
	ticketWaiting int32 = iota
	ticketGranted
	ticketAbandoned
)

// ticket is one queued caller. Exactly one of grant and abandon succeeds.
type ticket struct {
	state atomic.Int32
	ready chan struct{}
}

func newTicket() *ticket {
	return &ticket{ready: make(chan struct{})}
}

// grant hands the slot to the caller, false if it already left.
func (t *ticket) grant() bool {
	if !t.state.CompareAndSwap(ticketWaiting, ticketGranted) {
		return false
	}
	close(t.ready)
	return true
}

// abandon withdraws the caller, false if a slot was granted first.
func (t *ticket) abandon() bool {
	return t.state.CompareAndSwap(ticketWaiting, ticketAbandoned)
}
