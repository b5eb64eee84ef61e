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
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"axonflow/corerouter/internal/types"
)

// RedisCache fronts an LRUCache with a shared Redis tier, grounded on
// connectors/redis/connector.go's go-redis/v8 Get/Set usage. Any Redis
// error (connection refused, marshal failure) degrades to the local tier
// without surfacing -- the cache is optional per the spec.
type RedisCache struct {
	client *redis.Client
	local  *LRUCache
	prefix string
}

// NewRedisCache wraps local with a Redis-backed first tier. client may be
// nil, in which case RedisCache behaves exactly like local.
func NewRedisCache(client *redis.Client, local *LRUCache, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "axonflow:route:"
	}
	return &RedisCache{client: client, local: local, prefix: keyPrefix}
}

// Get checks Redis first, falling back to the local tier on miss or error.
func (c *RedisCache) Get(ctx context.Context, fp Fingerprint) (types.RoutingDecision, bool) {
	if c.client == nil {
		return c.local.Get(ctx, fp)
	}

	val, err := c.client.Get(ctx, c.prefix+string(fp)).Result()
	if err != nil {
		// redis.Nil (miss) and any connection error both degrade silently.
		return c.local.Get(ctx, fp)
	}

	var decision types.RoutingDecision
	if err := json.Unmarshal([]byte(val), &decision); err != nil {
		return c.local.Get(ctx, fp)
	}
	c.local.recordHit()
	return decision, true
}

// Set writes through to Redis (best effort) and to the local tier.
func (c *RedisCache) Set(ctx context.Context, fp Fingerprint, decision types.RoutingDecision, ttl time.Duration) {
	c.local.Set(ctx, fp, decision, ttl)
	if c.client == nil {
		return
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+string(fp), data, ttl).Err()
}
