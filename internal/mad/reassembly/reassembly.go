// Package reassembly joins the DATA segments of multi-packet transfers.
//
// A Table lives for a whole decoding session: segments of one transaction
// arrive as separate datagrams. Callers pass the table explicitly; nothing in
// this package is global.
package reassembly

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tturner/madscope/internal/mad"
)

// Conversation identifies the endpoints a datagram travelled between. It is
// direction-specific.
type Conversation struct {
	Src   string
	Dst   string
	SrcQP uint32
	DstQP uint32
}

func (c Conversation) String() string {
	return fmt.Sprintf("%s/qp%d->%s/qp%d", c.Src, c.SrcQP, c.Dst, c.DstQP)
}

// Reverse returns the conversation seen from the other endpoint.
func (c Conversation) Reverse() Conversation {
	return Conversation{Src: c.Dst, Dst: c.Src, SrcQP: c.DstQP, DstQP: c.SrcQP}
}

// Key identifies one transaction within a conversation.
type Key struct {
	Conversation
	TransactionID uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s tid=0x%016X", k.Conversation, k.TransactionID)
}

// Outcome is what happened to a submitted segment.
type Outcome int

const (
	// OutcomeNoTransfer: no transfer header in effect; decode in place.
	OutcomeNoTransfer Outcome = iota
	// OutcomeBypass: a first+last DATA segment; decode in place, no state.
	OutcomeBypass
	// OutcomeCollecting: stored, waiting for more segments.
	OutcomeCollecting
	// OutcomeDuplicate: the segment number was already stored.
	OutcomeDuplicate
	// OutcomeComplete: the payload is reassembled and the state discarded.
	OutcomeComplete
	// OutcomeTerminated: ACK, STOP or ABORT ended the transaction.
	OutcomeTerminated
	// OutcomeDisabled: reassembly is off. Segment 1 is decoded in place,
	// later segments are left undecoded.
	OutcomeDisabled
	// OutcomeInvalid: an active header that cannot take part in a transfer.
	OutcomeInvalid
)

var outcomeNames = map[Outcome]string{
	OutcomeNoTransfer: "no-transfer",
	OutcomeBypass:     "single-segment",
	OutcomeCollecting: "collecting",
	OutcomeDuplicate:  "duplicate",
	OutcomeComplete:   "complete",
	OutcomeTerminated: "terminated",
	OutcomeDisabled:   "disabled",
	OutcomeInvalid:    "invalid",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText renders the outcome name in JSON output.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// AdminHeaderOverhead is counted in the declared payload length of the last
// segment but is not part of the reassembled data.
const AdminHeaderOverhead = mad.AdminHeaderSize

// MaxSegments is the highest segment number accepted. It bounds a transfer
// to roughly 128 MiB of 2048-byte datagrams.
const MaxSegments = 1 << 16

// maxMissingReport caps how many absent segment numbers a Result lists.
const maxMissingReport = 16

// Result reports the effect of one Submit.
type Result struct {
	Outcome Outcome
	// Payload is set for NoTransfer, Bypass, Complete and Disabled on
	// segment 1.
	Payload []byte
	Segment uint32
	// Stored is the number of distinct segments held for the transaction.
	Stored int
	// Missing lists the first absent segment numbers below the highest one
	// seen. MissingCount is the full number absent.
	Missing      []uint32
	MissingCount int
	// Discarded is true when a termination dropped collected state.
	Discarded bool
	// Evicted lists transactions dropped to respect MaxTransactions.
	Evicted []Stalled
	Reason  string
}

// Stalled describes a transaction dropped without completing.
type Stalled struct {
	Key      Key
	Stored   int
	HaveLast bool
	Missing  []uint32
	// MissingCount is the full number absent; Missing is truncated.
	MissingCount int
	Idle         time.Duration
}

// Options configures a Table.
type Options struct {
	// Enabled turns reassembly on. When off, only segment 1 is decoded.
	Enabled bool
	// Timeout is how long a transaction may sit idle before Expire drops
	// it. Zero disables expiry.
	Timeout time.Duration
	// MaxTransactions caps concurrent collecting transactions. Zero means
	// no cap.
	MaxTransactions int
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

type state struct {
	fragments map[uint32][]byte
	lastSeg   uint32
	total     int
	created   time.Time
	updated   time.Time
}

// Table holds per-transaction fragment state.
type Table struct {
	mu     sync.Mutex
	opts   Options
	states map[Key]*state
}

// New returns an empty table.
func New(opts Options) *Table {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Table{opts: opts, states: make(map[Key]*state)}
}

// Enabled reports whether reassembly is on.
func (t *Table) Enabled() bool {
	return t.opts.Enabled
}

// Len returns the number of collecting transactions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// Submit feeds one segment. fragment is the data following the class
// header; it is copied when stored.
//
// ACK, STOP and ABORT end a transaction collected in the same direction.
// STOP and ABORT also end one collected in the reverse direction, since the
// receiver sends them. An inactive terminating header only counts when it
// finds state to end.
func (t *Table) Submit(key Key, hdr mad.TransferHeader, fragment []byte) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	if hdr.Terminates() {
		if res, had := t.terminate(key, hdr); had || hdr.Active {
			return res
		}
	}
	if !hdr.Active {
		return Result{Outcome: OutcomeNoTransfer, Payload: fragment}
	}
	if hdr.Type != mad.TransferData {
		return Result{Outcome: OutcomeInvalid, Payload: fragment, Reason: "active transfer header with type " + hdr.Type.String()}
	}
	if hdr.SingleSegment() {
		return Result{Outcome: OutcomeBypass, Payload: bound(fragment, declaredTotal(hdr)), Segment: hdr.SegmentNumber}
	}
	if !t.opts.Enabled {
		res := Result{Outcome: OutcomeDisabled, Segment: hdr.SegmentNumber}
		if hdr.SegmentNumber == 1 {
			res.Payload = fragment
		}
		return res
	}
	if hdr.SegmentNumber == 0 {
		return Result{Outcome: OutcomeInvalid, Payload: fragment, Reason: "segment number 0"}
	}
	if hdr.SegmentNumber > MaxSegments {
		return Result{Outcome: OutcomeInvalid, Payload: fragment, Segment: hdr.SegmentNumber,
			Reason: fmt.Sprintf("segment number %d exceeds %d", hdr.SegmentNumber, MaxSegments)}
	}

	now := t.opts.Now()
	var res Result
	st, ok := t.states[key]
	if !ok {
		res.Evicted = t.makeRoom(now)
		st = &state{fragments: make(map[uint32][]byte), total: -1, created: now}
		t.states[key] = st
	}
	st.updated = now

	idx := hdr.SegmentNumber - 1
	res.Segment = hdr.SegmentNumber
	if _, dup := st.fragments[idx]; dup {
		res.Outcome = OutcomeDuplicate
	} else {
		st.fragments[idx] = append([]byte(nil), fragment...)
		res.Outcome = OutcomeCollecting
	}
	if hdr.Last && st.lastSeg == 0 {
		st.lastSeg = hdr.SegmentNumber
		st.total = declaredTotal(hdr)
	}
	res.Stored = len(st.fragments)
	res.Missing, res.MissingCount = st.missing()

	if st.lastSeg != 0 && res.MissingCount == 0 {
		res.Outcome = OutcomeComplete
		res.Payload = st.assemble()
		delete(t.states, key)
	}
	return res
}

// Expire drops transactions idle longer than the timeout and returns them.
func (t *Table) Expire() []Stalled {
	if t.opts.Timeout <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.opts.Now()
	var dropped []Stalled
	for key, st := range t.states {
		if idle := now.Sub(st.updated); idle > t.opts.Timeout {
			dropped = append(dropped, st.stalled(key, now))
			delete(t.states, key)
		}
	}
	sortStalled(dropped)
	return dropped
}

// Pending returns every collecting transaction without modifying the table.
func (t *Table) Pending() []Stalled {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.opts.Now()
	pending := make([]Stalled, 0, len(t.states))
	for key, st := range t.states {
		pending = append(pending, st.stalled(key, now))
	}
	sortStalled(pending)
	return pending
}

// terminate drops the state a terminating header ends. Callers hold t.mu.
func (t *Table) terminate(key Key, hdr mad.TransferHeader) (Result, bool) {
	_, had := t.states[key]
	delete(t.states, key)
	if hdr.Type != mad.TransferAck {
		rev := Key{Conversation: key.Conversation.Reverse(), TransactionID: key.TransactionID}
		if _, ok := t.states[rev]; ok {
			delete(t.states, rev)
			had = true
		}
	}
	return Result{Outcome: OutcomeTerminated, Segment: hdr.SegmentNumber, Discarded: had, Reason: hdr.Type.String()}, had
}

// makeRoom evicts the least recently updated transaction when the table is
// full. Callers hold t.mu.
func (t *Table) makeRoom(now time.Time) []Stalled {
	if t.opts.MaxTransactions <= 0 || len(t.states) < t.opts.MaxTransactions {
		return nil
	}
	var (
		oldestKey Key
		oldest    *state
	)
	for key, st := range t.states {
		if oldest == nil || st.updated.Before(oldest.updated) {
			oldestKey, oldest = key, st
		}
	}
	delete(t.states, oldestKey)
	return []Stalled{oldest.stalled(oldestKey, now)}
}

// highest is the segment number completion is judged against: the last
// segment when seen, else the highest stored.
func (st *state) highest() uint32 {
	if st.lastSeg != 0 {
		return st.lastSeg
	}
	var limit uint32
	for idx := range st.fragments {
		if idx+1 > limit {
			limit = idx + 1
		}
	}
	return limit
}

// missing returns up to maxMissingReport absent segment numbers below the
// highest one and the total number absent. It walks the stored indices, so
// the cost does not depend on the segment numbers themselves.
func (st *state) missing() ([]uint32, int) {
	limit := uint64(st.highest())
	stored := make([]uint64, 0, len(st.fragments))
	for idx := range st.fragments {
		if uint64(idx) < limit {
			stored = append(stored, uint64(idx))
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i] < stored[j] })
	count := int(limit) - len(stored)

	var list []uint32
	next := uint64(0)
	for _, end := range append(stored, limit) {
		for idx := next; idx < end && len(list) < maxMissingReport; idx++ {
			list = append(list, uint32(idx+1))
		}
		next = end + 1
	}
	return list, count
}

// DescribeMissing formats a truncated missing list with its full count.
func DescribeMissing(missing []uint32, count int) string {
	if count > len(missing) {
		return fmt.Sprintf("%v (+%d more)", missing, count-len(missing))
	}
	return fmt.Sprintf("%v", missing)
}

func (st *state) assemble() []byte {
	var out []byte
	for idx := uint32(0); idx < st.lastSeg; idx++ {
		out = append(out, st.fragments[idx]...)
	}
	return bound(out, st.total)
}

func (st *state) stalled(key Key, now time.Time) Stalled {
	missing, count := st.missing()
	return Stalled{
		Key:          key,
		Stored:       len(st.fragments),
		HaveLast:     st.lastSeg != 0,
		Missing:      missing,
		MissingCount: count,
		Idle:         now.Sub(st.updated),
	}
}

// declaredTotal is the authoritative reassembled length, or -1 when the
// declared length is too small to carry the class header.
func declaredTotal(hdr mad.TransferHeader) int {
	if hdr.PayloadLength < AdminHeaderOverhead {
		return -1
	}
	return int(hdr.PayloadLength) - AdminHeaderOverhead
}

func bound(data []byte, total int) []byte {
	if total >= 0 && total < len(data) {
		return data[:total]
	}
	return data
}

func sortStalled(s []Stalled) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Key.TransactionID != s[j].Key.TransactionID {
			return s[i].Key.TransactionID < s[j].Key.TransactionID
		}
		return s[i].Key.Conversation.String() < s[j].Key.Conversation.String()
	})
}
