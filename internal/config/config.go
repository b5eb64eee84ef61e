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

// Package config loads the orchestration core's startup configuration from
// environment variables, grounded on the teacher's
// orchestrator/llm/routing_strategy.go LoadRoutingConfigFromEnv pattern:
// explicit os.Getenv reads with logged defaults rather than a
// reflection-based env-binding library.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config is the orchestration core's full startup configuration.
type Config struct {
	// ManifestPath points at the Model Registry's YAML manifest.
	ManifestPath string

	// Quantum Executor pool size and timeout as loaded from the environment.
	// Nothing passes them to the executor, which routes with
	// runtime.NumCPU() workers and no timeout.
	QuantumPoolSize int
	QuantumTimeout  time.Duration

	// DQN hyperparameters.
	Epsilon0             float64
	EpsilonMin           float64
	EpsilonDecay         float64
	Gamma                float64
	BatchSize            int
	TargetUpdateInterval int
	LearningRate         float64
	ReplayCapacity       int

	// Routing Cache.
	CacheCapacity int
	CacheTTL      time.Duration
	RedisAddr     string

	// Metrics Collector.
	MetricsRingSize int

	// Agent Registry / Bus.
	AgentLatencyCeiling time.Duration
	BusQueueCapacity    int

	// HTTP server.
	ListenAddr string
}

// Load reads Config from the process environment, logging every value that
// is set in the environment -- mirroring LoadRoutingConfigFromEnv's
// "log what was overridden" behavior.
func Load() Config {
	cfg := Config{
		ManifestPath:         "models.yaml",
		QuantumPoolSize:      0,
		QuantumTimeout:       30 * time.Second,
		Epsilon0:             1.0,
		EpsilonMin:           0.05,
		EpsilonDecay:         0.995,
		Gamma:                0.95,
		BatchSize:            32,
		TargetUpdateInterval: 100,
		LearningRate:         0.001,
		ReplayCapacity:       10000,
		CacheCapacity:        1000,
		CacheTTL:             10 * time.Minute,
		RedisAddr:            "",
		MetricsRingSize:      10000,
		AgentLatencyCeiling:  30 * time.Second,
		BusQueueCapacity:     256,
		ListenAddr:           ":8080",
	}

	cfg.ManifestPath = stringEnv("AXONFLOW_MANIFEST_PATH", cfg.ManifestPath)
	cfg.QuantumPoolSize = intEnv("AXONFLOW_QUANTUM_POOL_SIZE", cfg.QuantumPoolSize)
	cfg.QuantumTimeout = durationEnv("AXONFLOW_QUANTUM_TIMEOUT", cfg.QuantumTimeout)

	cfg.Epsilon0 = floatEnv("AXONFLOW_DQN_EPSILON0", cfg.Epsilon0)
	cfg.EpsilonMin = floatEnv("AXONFLOW_DQN_EPSILON_MIN", cfg.EpsilonMin)
	cfg.EpsilonDecay = floatEnv("AXONFLOW_DQN_EPSILON_DECAY", cfg.EpsilonDecay)
	cfg.Gamma = floatEnv("AXONFLOW_DQN_GAMMA", cfg.Gamma)
	cfg.BatchSize = intEnv("AXONFLOW_DQN_BATCH_SIZE", cfg.BatchSize)
	cfg.TargetUpdateInterval = intEnv("AXONFLOW_DQN_TARGET_UPDATE_INTERVAL", cfg.TargetUpdateInterval)
	cfg.LearningRate = floatEnv("AXONFLOW_DQN_LEARNING_RATE", cfg.LearningRate)
	cfg.ReplayCapacity = intEnv("AXONFLOW_DQN_REPLAY_CAPACITY", cfg.ReplayCapacity)

	cfg.CacheCapacity = intEnv("AXONFLOW_CACHE_CAPACITY", cfg.CacheCapacity)
	cfg.CacheTTL = durationEnv("AXONFLOW_CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = stringEnv("AXONFLOW_REDIS_ADDR", cfg.RedisAddr)

	cfg.MetricsRingSize = intEnv("AXONFLOW_METRICS_RING_SIZE", cfg.MetricsRingSize)

	cfg.AgentLatencyCeiling = durationEnv("AXONFLOW_AGENT_LATENCY_CEILING", cfg.AgentLatencyCeiling)
	cfg.BusQueueCapacity = intEnv("AXONFLOW_BUS_QUEUE_CAPACITY", cfg.BusQueueCapacity)

	cfg.ListenAddr = stringEnv("AXONFLOW_LISTEN_ADDR", cfg.ListenAddr)

	return cfg
}

func stringEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	log.Printf("[config] %s=%s", key, v)
	return v
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] WARNING: invalid %s=%q, keeping default %d", key, v, def)
		return def
	}
	log.Printf("[config] %s=%d", key, n)
	return n
}

func floatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] WARNING: invalid %s=%q, keeping default %v", key, v, def)
		return def
	}
	log.Printf("[config] %s=%v", key, f)
	return f
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] WARNING: invalid %s=%q, keeping default %s", key, v, def)
		return def
	}
	log.Printf("[config] %s=%s", key, d)
	return d
}
