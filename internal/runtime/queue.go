package runtime

import (
	"container/list"
	"time"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
	errspkg "github.com/capkit/capkit/internal/runtime/errors"
)

// queueEntry is a deferred request plus its arrival order. The fingerprint is
// computed once at submit and travels with the entry so a drain pass can
// re-check the cache without re-encoding the payload.
type queueEntry struct {
	req         *Request
	fingerprint Fingerprint
	seq         uint64
	enqueuedAt  time.Time
}

// requestQueue holds deferred requests in four priority tiers, FIFO within a
// tier. Like the cache it is guarded by the owning capability's mutex; no
// internal locking.
//
// Admission control bounds execution, not acceptance: the queue itself is
// unbounded unless capacity > 0, in which case the overflow policy decides
// between rejecting the newcomer and discarding the oldest entry of the
// lowest-priority tier.
type requestQueue struct {
	capacity int
	overflow string

	tiers [numPriorities]*list.List // index = Priority, front = oldest
	size  int
	seq   uint64
}

func newRequestQueue(capacity int, overflow string) *requestQueue {
	if overflow == "" {
		overflow = configpkg.OverflowReject
	}
	q := &requestQueue{capacity: capacity, overflow: overflow}
	for i := range q.tiers {
		q.tiers[i] = list.New()
	}
	return q
}

// Push enqueues a request. When the queue is full it either rejects the
// newcomer (ErrQueueFull) or drops the oldest entry of the lowest non-empty
// tier; a drop never sacrifices an entry of higher priority than the
// newcomer. The dropped entry, if any, is returned so the caller can resolve
// it as discarded.
func (q *requestQueue) Push(req *Request, fp Fingerprint) (dropped *queueEntry, err error) {
	if q.capacity > 0 && q.size >= q.capacity {
		if q.overflow != configpkg.OverflowDropOldest {
			return nil, errspkg.ErrQueueFull
		}
		dropped = q.dropOldestUpTo(req.Priority)
		if dropped == nil {
			return nil, errspkg.ErrQueueFull
		}
	}

	q.seq++
	entry := &queueEntry{req: req, fingerprint: fp, seq: q.seq, enqueuedAt: time.Now().UTC()}
	tier := req.Priority
	if !tier.valid() {
		tier = PriorityNormal
	}
	q.tiers[tier].PushBack(entry)
	q.size++
	return dropped, nil
}

// Pop removes and returns the entry that dispatches next: the oldest entry of
// the highest non-empty tier. Returns nil when the queue is empty.
func (q *requestQueue) Pop() *queueEntry {
	for tier := numPriorities - 1; tier >= 0; tier-- {
		if front := q.tiers[tier].Front(); front != nil {
			q.tiers[tier].Remove(front)
			q.size--
			return front.Value.(*queueEntry)
		}
	}
	return nil
}

// Remove deletes a pending request by ID. Returns the removed entry or nil.
func (q *requestQueue) Remove(id string) *queueEntry {
	for tier := range q.tiers {
		for elem := q.tiers[tier].Front(); elem != nil; elem = elem.Next() {
			entry := elem.Value.(*queueEntry)
			if entry.req.ID == id {
				q.tiers[tier].Remove(elem)
				q.size--
				return entry
			}
		}
	}
	return nil
}

func (q *requestQueue) Len() int { return q.size }

func (q *requestQueue) Clear() []*queueEntry {
	var discarded []*queueEntry
	for tier := range q.tiers {
		for elem := q.tiers[tier].Front(); elem != nil; elem = elem.Next() {
			discarded = append(discarded, elem.Value.(*queueEntry))
		}
		q.tiers[tier].Init()
	}
	q.size = 0
	return discarded
}

// Resize applies new bounds. Existing entries are kept even if they exceed a
// shrunken capacity; the bound applies to subsequent pushes.
func (q *requestQueue) Resize(capacity int, overflow string) {
	q.capacity = capacity
	if overflow != "" {
		q.overflow = overflow
	}
}

// dropOldestUpTo removes the oldest entry of the lowest non-empty tier whose
// priority does not exceed maxTier.
func (q *requestQueue) dropOldestUpTo(maxTier Priority) *queueEntry {
	if !maxTier.valid() {
		maxTier = PriorityNormal
	}
	for tier := Priority(0); tier <= maxTier; tier++ {
		if front := q.tiers[tier].Front(); front != nil {
			q.tiers[tier].Remove(front)
			q.size--
			return front.Value.(*queueEntry)
		}
	}
	return nil
}
