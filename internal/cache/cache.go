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

// Package cache implements the Routing Cache (component I): a
// fingerprint->decision memoization layer with TTL and LRU eviction. It is
// always backed by an in-process tier (grounded on the teacher's
// sync.Mutex-protected config maps) and optionally fronted by a RedisCache
// (grounded on connectors/redis's go-redis/v8 client). Any miss or backend
// failure degrades to direct routing without error -- the cache is
// optional per the spec.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"axonflow/corerouter/internal/types"
)

// Fingerprint is a stable hash of the routing-relevant request facets.
type Fingerprint string

// FingerprintKey is the canonical projection a Fingerprint hashes over.
type FingerprintKey struct {
	NormalizedPrompt   string `json:"normalized_prompt"`
	TaskType           string `json:"task_type"`
	Language           string `json:"language"`
	Persona            string `json:"persona"`
	ProviderPreference string `json:"provider_preference"`
}

// NewFingerprint computes the cache key for a routing request. Prompt
// normalization here is intentionally simple (trim handled by callers);
// the hash itself is what makes the key stable and opaque.
func NewFingerprint(key FingerprintKey) Fingerprint {
	data, _ := json.Marshal(key)
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// entry is {decision, created_at, ttl} per the spec.
type entry struct {
	decision  types.RoutingDecision
	createdAt time.Time
	ttl       time.Duration
	elem      *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

// Cache is the interface the router consults; a Redis-backed implementation
// can satisfy it transparently since lookups never surface backend errors.
type Cache interface {
	Get(ctx context.Context, fp Fingerprint) (types.RoutingDecision, bool)
	Set(ctx context.Context, fp Fingerprint, decision types.RoutingDecision, ttl time.Duration)
}

// MetricsSink receives hit/miss observations for the Metrics Collector.
type MetricsSink interface {
	Record(event types.MetricEvent)
}

// LRUCache is the always-present in-process tier: LRU-at-capacity plus
// TTL-on-read eviction, protected by a single mutex matching the teacher's
// config-map locking convention.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	items    map[Fingerprint]*entry
	order    *list.List // front = most recently used
	metrics  MetricsSink
}

// NewLRUCache builds an in-process cache bounded at capacity entries.
func NewLRUCache(capacity int, metrics MetricsSink) *LRUCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRUCache{
		capacity: capacity,
		items:    make(map[Fingerprint]*entry),
		order:    list.New(),
		metrics:  metrics,
	}
}

// Get returns the cached decision if present and unexpired.
func (c *LRUCache) Get(_ context.Context, fp Fingerprint) (types.RoutingDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[fp]
	if !ok || e.expired(time.Now()) {
		if ok {
			c.removeLocked(fp, e)
		}
		c.recordMiss()
		return types.RoutingDecision{}, false
	}
	c.order.MoveToFront(e.elem)
	c.recordHit()
	return e.decision, true
}

// Set stores a decision, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *LRUCache) Set(_ context.Context, fp Fingerprint, decision types.RoutingDecision, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[fp]; ok {
		existing.decision = decision
		existing.createdAt = time.Now()
		existing.ttl = ttl
		c.order.MoveToFront(existing.elem)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldestLocked()
	}

	e := &entry{decision: decision, createdAt: time.Now(), ttl: ttl}
	e.elem = c.order.PushFront(fp)
	c.items[fp] = e
}

func (c *LRUCache) evictOldestLocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	fp := oldest.Value.(Fingerprint)
	c.removeLocked(fp, c.items[fp])
}

func (c *LRUCache) removeLocked(fp Fingerprint, e *entry) {
	if e != nil && e.elem != nil {
		c.order.Remove(e.elem)
	}
	delete(c.items, fp)
}

func (c *LRUCache) recordHit() {
	if c.metrics != nil {
		c.metrics.Record(types.MetricEvent{Timestamp: time.Now(), MetricType: types.MetricCacheHit, Value: 1})
	}
}

func (c *LRUCache) recordMiss() {
	if c.metrics != nil {
		c.metrics.Record(types.MetricEvent{Timestamp: time.Now(), MetricType: types.MetricCacheMiss, Value: 1})
	}
}

// Len returns the number of stored entries, including expired ones that
// no Get has removed yet.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
