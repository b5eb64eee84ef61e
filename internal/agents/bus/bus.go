// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bus implements the Agent Communication Bus (component K): a
// single-process async pub-sub substrate with a priority queue per
// recipient; a broadcast is enqueued into every subscriber's queue. Agents never hold references to each
// other, only ids -- messages are the only coupling, avoiding the cyclic
// agent-graph pattern flagged in the spec's Design Notes.
package bus

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/corerouter/internal/types"
)

// ErrBackpressure is returned when a recipient's queue is at capacity;
// callers choose to drop, retry, or degrade.
var ErrBackpressure = fmt.Errorf("bus: recipient queue at capacity")

// Handler processes one delivered message. Handlers for the same recipient
// are invoked in arrival order within a priority class -- never concurrently
// with each other, so a handler is never preempted mid-flight.
type Handler func(types.AgentMessage)

// envelope adds heap bookkeeping (priority, then a monotonically increasing
// sequence number as the FIFO tiebreaker within a priority class) on top of
// the wire message.
type envelope struct {
	msg types.AgentMessage
	seq int64
}

type priorityQueue []envelope

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].msg.Priority != q[j].msg.Priority {
		return q[i].msg.Priority > q[j].msg.Priority // higher priority first
	}
	return q[i].seq < q[j].seq // FIFO within a priority class
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(envelope)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// subscription is one recipient's mailbox: a bounded priority queue drained
// by a single goroutine so handlers never run concurrently for one agent.
type subscription struct {
	mu       sync.Mutex
	queue    priorityQueue
	capacity int
	handler  Handler
	notify   chan struct{}
}

// Bus is the Agent Communication Bus.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	seqCounter    int64
	queueCapacity int

	pendingMu sync.Mutex
	pending   map[string]chan types.AgentMessage // correlation_id -> reply channel
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueCapacity overrides the default per-recipient queue bound.
func WithQueueCapacity(n int) Option {
	return func(b *Bus) { b.queueCapacity = n }
}

// New creates a Bus with bounded per-recipient queues (default capacity 256).
func New(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[string]*subscription),
		queueCapacity: 256,
		pending:       make(map[string]chan types.AgentMessage),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler as agentID's message processor. A dedicated
// goroutine drains agentID's queue in priority/FIFO order.
func (b *Bus) Subscribe(agentID string, handler Handler) {
	b.mu.Lock()
	sub, ok := b.subscriptions[agentID]
	if !ok {
		sub = &subscription{capacity: b.queueCapacity, notify: make(chan struct{}, 1)}
		b.subscriptions[agentID] = sub
		go b.drain(sub)
	}
	sub.handler = handler
	b.mu.Unlock()
}

// Unsubscribe removes agentID's handler; queued messages are dropped.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	sub, ok := b.subscriptions[agentID]
	delete(b.subscriptions, agentID)
	b.mu.Unlock()
	if ok {
		sub.mu.Lock()
		sub.queue = nil
		sub.handler = nil
		sub.mu.Unlock()
	}
}

// Publish enqueues a message for its recipient (or every subscriber, for
// BroadcastRecipient) and returns an ack id. It fails with ErrBackpressure
// rather than blocking when the recipient's queue is full.
func (b *Bus) Publish(message types.AgentMessage) (string, error) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	if message.ToAgent == types.BroadcastRecipient {
		b.mu.RLock()
		targets := make([]*subscription, 0, len(b.subscriptions))
		for _, sub := range b.subscriptions {
			targets = append(targets, sub)
		}
		b.mu.RUnlock()
		// Broadcast is best-effort: per-recipient backpressure is silently
		// absorbed rather than failing the whole publish.
		for _, sub := range targets {
			_ = b.enqueue(sub, message)
		}
		return message.ID, nil
	}

	b.mu.RLock()
	sub, ok := b.subscriptions[message.ToAgent]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("bus: no subscriber for %q", message.ToAgent)
	}
	if err := b.enqueue(sub, message); err != nil {
		return "", err
	}
	return message.ID, nil
}

func (b *Bus) enqueue(sub *subscription, message types.AgentMessage) error {
	sub.mu.Lock()
	if len(sub.queue) >= sub.capacity {
		sub.mu.Unlock()
		return ErrBackpressure
	}
	b.mu.Lock()
	b.seqCounter++
	seq := b.seqCounter
	b.mu.Unlock()
	heap.Push(&sub.queue, envelope{msg: message, seq: seq})
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
	return nil
}

// drain runs for the lifetime of one subscription, invoking its handler in
// priority/FIFO order, one message at a time.
func (b *Bus) drain(sub *subscription) {
	for range sub.notify {
		for {
			sub.mu.Lock()
			if len(sub.queue) == 0 {
				sub.mu.Unlock()
				break
			}
			item := heap.Pop(&sub.queue).(envelope)
			handler := sub.handler
			sub.mu.Unlock()

			if handler != nil {
				b.dispatch(handler, item.msg)
			}
		}
	}
}

func (b *Bus) dispatch(handler Handler, msg types.AgentMessage) {
	if msg.CorrelationID != "" {
		b.pendingMu.Lock()
		ch, ok := b.pending[msg.CorrelationID]
		b.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
	}
	handler(msg)
}

// RequestResponse publishes message and waits up to timeout for a reply
// sharing its correlation_id (generating one if message.CorrelationID is
// empty). Cancellation of ctx does not rescind an already-delivered
// message, only this call's wait.
func (b *Bus) RequestResponse(ctx context.Context, message types.AgentMessage, timeout time.Duration) (types.AgentMessage, error) {
	if message.CorrelationID == "" {
		message.CorrelationID = uuid.NewString()
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}

	// The request itself carries the correlation_id, so dispatch forwards it
	// here too when the recipient receives it; the wait loop skips it.
	reply := make(chan types.AgentMessage, 2)
	b.pendingMu.Lock()
	b.pending[message.CorrelationID] = reply
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, message.CorrelationID)
		b.pendingMu.Unlock()
	}()

	if _, err := b.Publish(message); err != nil {
		return types.AgentMessage{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case r := <-reply:
			if r.ID == message.ID {
				continue
			}
			return r, nil
		case <-timer.C:
			return types.AgentMessage{}, fmt.Errorf("bus: request_response timed out after %s", timeout)
		case <-ctx.Done():
			return types.AgentMessage{}, ctx.Err()
		}
	}
}
