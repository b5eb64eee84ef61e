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

/*
Command orchestrator runs the AxonFlow orchestration core.

It loads the Model Registry manifest, bootstraps LLM provider adapters, and
wires the Advanced Router, Quantum Routing Manager, DQN Routing Agent,
Routing Cache, Metrics Collector, Agent Registry, and Communication Bus into
an internal/core.Orchestrator. The result is served over HTTP.

# Usage

	orchestrator

# Endpoints

	POST /v1/orchestrate   - route a request, optionally decompose it across
	                         specialist agents, and execute it against a
	                         provider; returns an OrchestrationResult
	POST /v1/router/debug  - run routing only, returning the scoring
	                         breakdown and per-model scores without executing
	GET  /healthz          - liveness/readiness probe
	GET  /metrics          - Prometheus metrics

# Environment Variables

	AXONFLOW_LISTEN_ADDR                 - HTTP listen address (default ":8080")
	AXONFLOW_MANIFEST_PATH               - Model Registry manifest path (default "models.yaml")
	AXONFLOW_CACHE_CAPACITY              - Routing Cache LRU tier capacity (default 1000)
	AXONFLOW_CACHE_TTL                   - Routing Cache entry TTL (default "10m")
	AXONFLOW_REDIS_ADDR                  - Redis address for the Routing Cache's second tier (optional)
	AXONFLOW_METRICS_RING_SIZE           - Metrics Collector ring buffer size (default 10000)
	AXONFLOW_AGENT_LATENCY_CEILING       - Agent Registry latency-normalization ceiling (default "30s")
	AXONFLOW_BUS_QUEUE_CAPACITY          - Communication Bus per-recipient queue capacity (default 256)
	AXONFLOW_QUANTUM_POOL_SIZE           - loaded into config.QuantumPoolSize (default 0); not passed to the Quantum Executor, which routes with runtime.NumCPU() workers
	AXONFLOW_QUANTUM_TIMEOUT             - loaded into config.QuantumTimeout (default "30s"); not passed to the Quantum Executor, which routes without a timeout
	AXONFLOW_DQN_EPSILON0                - DQN initial exploration rate (default 1.0)
	AXONFLOW_DQN_EPSILON_MIN             - DQN minimum exploration rate (default 0.05)
	AXONFLOW_DQN_EPSILON_DECAY           - DQN per-step epsilon decay factor (default 0.995)
	AXONFLOW_DQN_GAMMA                   - DQN discount factor (default 0.95)
	AXONFLOW_DQN_BATCH_SIZE              - DQN replay batch size (default 32)
	AXONFLOW_DQN_TARGET_UPDATE_INTERVAL  - DQN target network update interval (default 100)
	AXONFLOW_DQN_LEARNING_RATE           - DQN learning rate (default 0.001)
	AXONFLOW_DQN_REPLAY_CAPACITY         - DQN replay buffer capacity (default 10000)

Provider credentials (all optional; the Orchestrator bootstraps whichever
providers have credentials present, see internal/provider/bootstrap.go):

	ANTHROPIC_API_KEY
	OPENAI_API_KEY
	OLLAMA_ENDPOINT
	GOOGLE_API_KEY
	AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_DEPLOYMENT_NAME

# Example

	export ANTHROPIC_API_KEY="sk-ant-..."
	export AXONFLOW_REDIS_ADDR="localhost:6379"
	./orchestrator
*/
package main
