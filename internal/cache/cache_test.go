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

package cache

import (
	"context"
	"testing"
	"time"

	"axonflow/corerouter/internal/types"
)

func TestFingerprint_DeterministicAndDistinct(t *testing.T) {
	a := NewFingerprint(FingerprintKey{NormalizedPrompt: "fix the bug", TaskType: "code_generation"})
	b := NewFingerprint(FingerprintKey{NormalizedPrompt: "fix the bug", TaskType: "code_generation"})
	c := NewFingerprint(FingerprintKey{NormalizedPrompt: "fix the other bug", TaskType: "code_generation"})

	if a != b {
		t.Errorf("expected identical keys to fingerprint identically")
	}
	if a == c {
		t.Errorf("expected different prompts to fingerprint differently")
	}
}

func TestLRUCache_GetMiss(t *testing.T) {
	c := NewLRUCache(10, nil)
	_, ok := c.Get(context.Background(), Fingerprint("nope"))
	if ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestLRUCache_SetThenGet(t *testing.T) {
	c := NewLRUCache(10, nil)
	fp := Fingerprint("key1")
	decision := types.RoutingDecision{Provider: "openai", ModelID: "gpt-4o"}
	c.Set(context.Background(), fp, decision, time.Minute)

	got, ok := c.Get(context.Background(), fp)
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Provider != "openai" || got.ModelID != "gpt-4o" {
		t.Errorf("unexpected decision: %+v", got)
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache(10, nil)
	fp := Fingerprint("key1")
	c.Set(context.Background(), fp, types.RoutingDecision{Provider: "x"}, 1*time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(context.Background(), fp)
	if ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, nil)
	ctx := context.Background()
	c.Set(ctx, "a", types.RoutingDecision{Provider: "a"}, time.Minute)
	c.Set(ctx, "b", types.RoutingDecision{Provider: "b"}, time.Minute)

	// Touch "a" so "b" becomes least-recently-used.
	c.Get(ctx, "a")
	c.Set(ctx, "c", types.RoutingDecision{Provider: "c"}, time.Minute)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Errorf("expected b to be evicted as LRU")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Errorf("expected a to survive eviction")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Errorf("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("expected capacity held at 2, got %d", c.Len())
	}
}

type recordingSink struct {
	hits, misses int
}

func (r *recordingSink) Record(event types.MetricEvent) {
	switch event.MetricType {
	case types.MetricCacheHit:
		r.hits++
	case types.MetricCacheMiss:
		r.misses++
	}
}

func TestLRUCache_RecordsHitsAndMisses(t *testing.T) {
	sink := &recordingSink{}
	c := NewLRUCache(10, sink)
	ctx := context.Background()

	c.Get(ctx, "missing")
	c.Set(ctx, "present", types.RoutingDecision{Provider: "x"}, time.Minute)
	c.Get(ctx, "present")

	if sink.misses != 1 || sink.hits != 1 {
		t.Errorf("expected 1 hit and 1 miss, got hits=%d misses=%d", sink.hits, sink.misses)
	}
}

func TestRedisCache_NilClientFallsBackToLocal(t *testing.T) {
	local := NewLRUCache(10, nil)
	rc := NewRedisCache(nil, local, "")
	ctx := context.Background()

	rc.Set(ctx, "k", types.RoutingDecision{Provider: "anthropic"}, time.Minute)
	got, ok := rc.Get(ctx, "k")
	if !ok || got.Provider != "anthropic" {
		t.Fatalf("expected fallback to local tier, got %+v ok=%v", got, ok)
	}
}
