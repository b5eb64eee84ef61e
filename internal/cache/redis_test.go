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

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"axonflow/corerouter/internal/types"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, NewLRUCache(16, nil), ""), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()
	fp := NewFingerprint(FingerprintKey{NormalizedPrompt: "write a function"})
	decision := types.RoutingDecision{Provider: "anthropic", ModelID: "claude-3-5-sonnet"}

	cache.Set(ctx, fp, decision, time.Minute)

	got, ok := cache.Get(ctx, fp)
	if !ok {
		t.Fatal("expected cache hit after Set")
	}
	if got.Provider != decision.Provider || got.ModelID != decision.ModelID {
		t.Errorf("got %+v, want %+v", got, decision)
	}
}

func TestRedisCache_MissDegradesToLocal(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()
	fp := NewFingerprint(FingerprintKey{NormalizedPrompt: "unseen prompt"})

	if _, ok := cache.Get(ctx, fp); ok {
		t.Fatal("expected miss for unseen fingerprint")
	}
}

func TestRedisCache_BackendDownDegradesSilently(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	addr := mr.Addr()
	mr.Close() // server is gone before the client ever connects

	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 50 * time.Millisecond})
	local := NewLRUCache(16, nil)
	cache := NewRedisCache(client, local, "")
	ctx := context.Background()
	fp := NewFingerprint(FingerprintKey{NormalizedPrompt: "write a function"})
	decision := types.RoutingDecision{Provider: "anthropic", ModelID: "claude-3-5-sonnet"}

	// Set must not panic or block despite the backend being unreachable,
	// and the local tier still gets the write.
	cache.Set(ctx, fp, decision, time.Minute)

	got, ok := local.Get(ctx, fp)
	if !ok || got.Provider != "anthropic" {
		t.Fatal("expected local tier to hold the decision even though redis is down")
	}
}

func TestRedisCache_NilClientUsesLocalOnly(t *testing.T) {
	local := NewLRUCache(16, nil)
	cache := NewRedisCache(nil, local, "")
	ctx := context.Background()
	fp := NewFingerprint(FingerprintKey{NormalizedPrompt: "write a function"})
	decision := types.RoutingDecision{Provider: "ollama", ModelID: "llama3"}

	cache.Set(ctx, fp, decision, time.Minute)
	got, ok := cache.Get(ctx, fp)
	if !ok || got.Provider != "ollama" {
		t.Fatalf("expected nil-client cache to behave as local-only, got %+v ok=%v", got, ok)
	}
}
