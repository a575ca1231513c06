package smpplink

import "time"

// Outstanding request, waiting for _RESP
type pendingRequest struct {
	Seq       uint32
	CommandID uint32
	T         time.Time

	// Called from reader goroutine before the waiter is released
	onResp func(p SMPPPacket)

	resp chan pendingResult
}

type pendingResult struct {
	p   SMPPPacket
	err error
}

// pendingTable is indexed by sequence number. Not thread safe, guarded by session mutex.
type pendingTable struct {
	window int
	items  map[uint32]*pendingRequest
}

func newPendingTable(window int) *pendingTable {
	return &pendingTable{
		window: window,
		items:  make(map[uint32]*pendingRequest, window),
	}
}

func (t *pendingTable) add(seq uint32, cmdID uint32, onResp func(SMPPPacket)) (*pendingRequest, error) {
	if len(t.items) >= t.window {
		return nil, ErrWindowFull
	}
	r := &pendingRequest{
		Seq:       seq,
		CommandID: cmdID,
		T:         time.Now(),
		onResp:    onResp,
		resp:      make(chan pendingResult, 1),
	}
	t.items[seq] = r
	return r, nil
}

func (t *pendingTable) has(seq uint32) bool {
	_, ok := t.items[seq]
	return ok
}

// take removes request from the table
func (t *pendingTable) take(seq uint32) (*pendingRequest, bool) {
	r, ok := t.items[seq]
	if ok {
		delete(t.items, seq)
	}
	return r, ok
}

func (t *pendingTable) len() int { return len(t.items) }

// drain releases all waiters with err
func (t *pendingTable) drain(err error) {
	for seq, r := range t.items {
		r.resp <- pendingResult{err: err}
		delete(t.items, seq)
	}
}
