package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/capkit/capkit/internal/runtime/config"
	errspkg "github.com/capkit/capkit/internal/runtime/errors"
)

func queueReq(id string, prio Priority) *Request {
	return &Request{ID: id, Payload: id, Priority: prio}
}

func mustPush(t *testing.T, q *requestQueue, req *Request) {
	t.Helper()
	_, err := q.Push(req, 0)
	require.NoError(t, err)
}

func TestRequestQueue_PriorityOrdering(t *testing.T) {
	q := newRequestQueue(0, configpkg.OverflowReject)

	mustPush(t, q, queueReq("low", PriorityLow))
	mustPush(t, q, queueReq("critical", PriorityCritical))
	mustPush(t, q, queueReq("normal", PriorityNormal))
	mustPush(t, q, queueReq("high", PriorityHigh))

	var order []string
	for e := q.Pop(); e != nil; e = q.Pop() {
		order = append(order, e.req.ID)
	}
	assert.Equal(t, []string{"critical", "high", "normal", "low"}, order)
}

func TestRequestQueue_FIFOWithinTier(t *testing.T) {
	q := newRequestQueue(0, configpkg.OverflowReject)

	mustPush(t, q, queueReq("a", PriorityNormal))
	mustPush(t, q, queueReq("b", PriorityNormal))
	mustPush(t, q, queueReq("c", PriorityNormal))

	assert.Equal(t, "a", q.Pop().req.ID)
	assert.Equal(t, "b", q.Pop().req.ID)
	assert.Equal(t, "c", q.Pop().req.ID)
}

func TestRequestQueue_OverflowReject(t *testing.T) {
	q := newRequestQueue(2, configpkg.OverflowReject)

	mustPush(t, q, queueReq("a", PriorityNormal))
	mustPush(t, q, queueReq("b", PriorityNormal))

	_, err := q.Push(queueReq("c", PriorityNormal), 0)
	assert.ErrorIs(t, err, errspkg.ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestRequestQueue_OverflowDropOldest(t *testing.T) {
	q := newRequestQueue(2, configpkg.OverflowDropOldest)

	mustPush(t, q, queueReq("old-low", PriorityLow))
	mustPush(t, q, queueReq("normal", PriorityNormal))

	dropped, err := q.Push(queueReq("high", PriorityHigh), 0)
	require.NoError(t, err)
	require.NotNil(t, dropped)
	assert.Equal(t, "old-low", dropped.req.ID)
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, "high", q.Pop().req.ID)
	assert.Equal(t, "normal", q.Pop().req.ID)
}

func TestRequestQueue_DropOldestNeverDropsHigherPriority(t *testing.T) {
	q := newRequestQueue(2, configpkg.OverflowDropOldest)

	mustPush(t, q, queueReq("critical-a", PriorityCritical))
	mustPush(t, q, queueReq("critical-b", PriorityCritical))

	// Nothing at or below normal priority can be displaced.
	dropped, err := q.Push(queueReq("normal", PriorityNormal), 0)
	assert.ErrorIs(t, err, errspkg.ErrQueueFull)
	assert.Nil(t, dropped)
	assert.Equal(t, 2, q.Len())
}

func TestRequestQueue_Remove(t *testing.T) {
	q := newRequestQueue(0, configpkg.OverflowReject)

	mustPush(t, q, queueReq("a", PriorityNormal))
	mustPush(t, q, queueReq("b", PriorityHigh))

	entry := q.Remove("a")
	require.NotNil(t, entry)
	assert.Equal(t, "a", entry.req.ID)
	assert.Equal(t, 1, q.Len())

	assert.Nil(t, q.Remove("missing"))
}

func TestRequestQueue_Clear(t *testing.T) {
	q := newRequestQueue(0, configpkg.OverflowReject)

	mustPush(t, q, queueReq("a", PriorityNormal))
	mustPush(t, q, queueReq("b", PriorityLow))

	discarded := q.Clear()
	assert.Len(t, discarded, 2)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.Pop())
}

func TestRequestQueue_Resize(t *testing.T) {
	q := newRequestQueue(0, configpkg.OverflowReject)

	mustPush(t, q, queueReq("a", PriorityNormal))
	mustPush(t, q, queueReq("b", PriorityNormal))

	// Shrinking below the current length keeps existing entries but rejects
	// new ones.
	q.Resize(1, configpkg.OverflowReject)
	assert.Equal(t, 2, q.Len())
	_, err := q.Push(queueReq("c", PriorityNormal), 0)
	assert.ErrorIs(t, err, errspkg.ErrQueueFull)
}
