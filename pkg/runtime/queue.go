package runtime

import (
	"sync"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

// eventQueue is the FIFO of admitted agent contexts. Triggers push from any
// goroutine; only the worker pops.
type eventQueue struct {
	mu    sync.Mutex
	items []*core.AgentContext
}

func (q *eventQueue) push(a *core.AgentContext) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, a)
	return len(q.items)
}

func (q *eventQueue) pop() (*core.AgentContext, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	a := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return a, true
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
