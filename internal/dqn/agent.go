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

package dqn

import (
	"math"
	"math/rand"
	"sync"

	"axonflow/corerouter/internal/types"
)

// AgentConfig tunes the epsilon-greedy policy and learning loop.
type AgentConfig struct {
	Epsilon0             float64 // initial exploration rate, default 1.0
	EpsilonMin           float64 // floor, default 0.05
	EpsilonDecay         float64 // geometric decay factor per update, default 0.995
	Gamma                float64 // discount factor, default 0.95
	BatchSize            int     // default 32
	TargetUpdateInterval int     // updates between online->target sync, default 100
	LearningRate         float64 // default 0.001
	ReplayCapacity       int     // default 10000
}

// DefaultAgentConfig mirrors the spec's defaults.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Epsilon0:             1.0,
		EpsilonMin:           0.05,
		EpsilonDecay:         0.995,
		Gamma:                0.95,
		BatchSize:            32,
		TargetUpdateInterval: 100,
		LearningRate:         0.001,
		ReplayCapacity:       10000,
	}
}

// Agent is the DQN Routing Agent (component F): an epsilon-greedy policy
// over an online/target QFunction pair, trained from a replay buffer of
// routing outcomes.
type Agent struct {
	mu sync.Mutex

	online QFunction
	target QFunction
	buffer *ReplayBuffer
	cfg    AgentConfig
	rng    *rand.Rand

	epsilon      float64
	updateCount  int
	actionSpace  []string
}

// NewAgent builds an Agent over the given action space (provider/model_id
// keys, registry-ordered) using DenseNet as the online/target QFunction.
func NewAgent(actionSpace []string, cfg AgentConfig) *Agent {
	rng := rand.New(rand.NewSource(1))
	online := NewDenseNet(len(actionSpace), cfg.LearningRate, rng)
	target := NewDenseNet(len(actionSpace), cfg.LearningRate, rng)
	online.CopyTo(target)
	return &Agent{
		online:      online,
		target:      target,
		buffer:      NewReplayBuffer(cfg.ReplayCapacity),
		cfg:         cfg,
		rng:         rng,
		epsilon:     cfg.Epsilon0,
		actionSpace: actionSpace,
	}
}

// NewLinearAgent builds an Agent over LinearQ instead of DenseNet, for
// deployments that want the simpler fallback as their online/target pair.
func NewLinearAgent(actionSpace []string, cfg AgentConfig) *Agent {
	online := NewLinearQ(len(actionSpace), cfg.LearningRate)
	target := NewLinearQ(len(actionSpace), cfg.LearningRate)
	online.CopyTo(target)
	return &Agent{
		online:      online,
		target:      target,
		buffer:      NewReplayBuffer(cfg.ReplayCapacity),
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(1)),
		epsilon:     cfg.Epsilon0,
		actionSpace: actionSpace,
	}
}

// ActionSpace returns the ordered provider/model_id keys this agent's
// actions index into.
func (a *Agent) ActionSpace() []string { return a.actionSpace }

// SelectAction runs epsilon-greedy action selection. available marks which
// action indices correspond to currently eligible models; unavailable
// actions are masked to -Inf before argmax and excluded from the random
// exploration draw.
func (a *Agent) SelectAction(state [21]float64, available []bool) int {
	a.mu.Lock()
	eps := a.epsilon
	a.mu.Unlock()

	eligible := eligibleIndices(available)
	if len(eligible) == 0 {
		return -1
	}

	if a.rng.Float64() < eps {
		return eligible[a.rng.Intn(len(eligible))]
	}

	q := a.online.Predict(state[:])
	best := eligible[0]
	bestVal := math.Inf(-1)
	for _, idx := range eligible {
		if q[idx] > bestVal {
			best, bestVal = idx, q[idx]
		}
	}
	return best
}

func eligibleIndices(available []bool) []int {
	var out []int
	for i, ok := range available {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Observe pushes one experience into the replay buffer and, once enough
// samples have accumulated, runs one training step.
func (a *Agent) Observe(exp types.Experience) (loss float64, trained bool) {
	a.buffer.Push(exp)
	if a.buffer.Len() < a.cfg.BatchSize {
		return 0, false
	}

	batch := a.buffer.Sample(a.cfg.BatchSize, a.rng)

	a.mu.Lock()
	defer a.mu.Unlock()
	loss = a.online.Fit(batch, a.cfg.Gamma, a.target)

	a.updateCount++
	if a.updateCount%a.cfg.TargetUpdateInterval == 0 {
		a.online.CopyTo(a.target)
	}

	a.epsilon = math.Max(a.cfg.EpsilonMin, a.epsilon*a.cfg.EpsilonDecay)
	return loss, true
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// RewardWeights composes the reward signal at request completion.
type RewardWeights struct {
	Success float64
	Latency float64
	Cost    float64
	Quality float64
}

// DefaultRewardWeights gives each term equal standing before clipping.
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{Success: 1.0, Latency: 1.0, Cost: 1.0, Quality: 1.0}
}

// ComposeReward builds the scalar reward from a success indicator and
// normalized penalty/quality terms, clipped to [-2, 2] per the spec.
func ComposeReward(w RewardWeights, success bool, normalizedLatencyPenalty, normalizedCostPenalty float64, qualityScore *float64) float64 {
	successTerm := -1.0
	if success {
		successTerm = 1.0
	}
	reward := w.Success*successTerm - w.Latency*normalizedLatencyPenalty - w.Cost*normalizedCostPenalty
	if qualityScore != nil {
		reward += w.Quality * *qualityScore
	}
	if reward > 2 {
		return 2
	}
	if reward < -2 {
		return -2
	}
	return reward
}
