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

import "axonflow/corerouter/internal/types"

// LinearQ is the mandatory dependency-free fallback: one weight vector per
// action, Q(s,a) = w_a . s + b_a, updated by gradient descent on squared TD
// error. NewLinearAgent builds on it (as do the agent's policy tests);
// NewAgent uses DenseNet instead.
type LinearQ struct {
	weights    [][]float64 // [action][state_dim]
	bias       []float64
	stateDim   int
	numActions int
	lr         float64
}

// StateDim is the fixed state-vector layout size from the spec.
const StateDim = 21

// NewLinearQ builds a zero-initialized linear Q-function for numActions
// discrete actions over the fixed 21-dimensional state.
func NewLinearQ(numActions int, learningRate float64) *LinearQ {
	w := make([][]float64, numActions)
	for i := range w {
		w[i] = make([]float64, StateDim)
	}
	return &LinearQ{
		weights:    w,
		bias:       make([]float64, numActions),
		stateDim:   StateDim,
		numActions: numActions,
		lr:         learningRate,
	}
}

// NumActions returns the size of the discrete action space.
func (q *LinearQ) NumActions() int { return q.numActions }

// Predict returns Q(s, ·) for every action.
func (q *LinearQ) Predict(state []float64) []float64 {
	out := make([]float64, q.numActions)
	for a := 0; a < q.numActions; a++ {
		out[a] = dot(q.weights[a], state) + q.bias[a]
	}
	return out
}

// Fit performs one gradient step per experience in batch against a (usually
// frozen) target network, returning the mean squared TD error.
func (q *LinearQ) Fit(batch []types.Experience, gamma float64, target QFunction) float64 {
	if len(batch) == 0 {
		return 0
	}
	var sumLoss float64
	for _, exp := range batch {
		state := exp.State[:]
		nextQ := target.Predict(exp.NextState[:])
		maxNext := maxOf(nextQ)

		doneFactor := 1.0
		if exp.Done {
			doneFactor = 0
		}
		tdTarget := exp.Reward + gamma*doneFactor*maxNext

		current := dot(q.weights[exp.Action], state) + q.bias[exp.Action]
		tdError := current - tdTarget
		sumLoss += tdError * tdError

		// Gradient of 0.5*(current-target)^2 wrt weights is tdError*state.
		for i := 0; i < q.stateDim; i++ {
			q.weights[exp.Action][i] -= q.lr * tdError * state[i]
		}
		q.bias[exp.Action] -= q.lr * tdError
	}
	return sumLoss / float64(len(batch))
}

// CopyTo copies this network's weights into target, implementing the
// periodic online->target sync.
func (q *LinearQ) CopyTo(target QFunction) {
	t, ok := target.(*LinearQ)
	if !ok {
		return
	}
	for a := range q.weights {
		copy(t.weights[a], q.weights[a])
	}
	copy(t.bias, q.bias)
}

func dot(a, b []float64) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
