package zori

import (
	"context"
	"sync"

	"github.com/AtRiskMedia/zori-go/internal/domain/commands"
)

// Queue accepts calls before a client exists. Init replays them in order
// exactly once; afterwards Push forwards straight to the client.
type Queue struct {
	buf *commands.Buffer

	mu     sync.Mutex
	late   []commands.Raw
	client *Client
	ctx    context.Context
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{buf: commands.NewBuffer()}
}

// Push records a call, or runs it when a client is attached. It reports false
// only when an attached client rejects the call.
func (q *Queue) Push(method string, args ...any) bool {
	if q.buf.Append(method, args...) {
		return true
	}

	q.mu.Lock()
	client, ctx := q.client, q.ctx
	if client == nil {
		q.late = append(q.late, commands.Raw{Method: method, Args: args})
		q.mu.Unlock()
		return true
	}
	q.mu.Unlock()

	return client.Push(ctx, method, args...)
}

// Len returns the number of calls waiting for a client.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Len() + len(q.late)
}

// Attached reports whether a client has taken over the queue.
func (q *Queue) Attached() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.client != nil
}

func (q *Queue) drain() []commands.Raw {
	return q.buf.Drain()
}

// attach routes later pushes to client. Calls that arrived between the drain
// and attach run first, in order, outside the lock so they may push again.
func (q *Queue) attach(ctx context.Context, client *Client) {
	for {
		q.mu.Lock()
		pending := q.late
		q.late = nil
		if len(pending) == 0 {
			q.client = client
			q.ctx = context.WithoutCancel(ctx)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		client.c.CommandService.Replay(ctx, pending)
	}
}
