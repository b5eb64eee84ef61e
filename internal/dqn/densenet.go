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
	"math/rand"

	"axonflow/corerouter/internal/types"
)

// DenseNet is the 21->64->32->|actions| feed-forward network described in
// the spec, implemented matrix-free over []float64 slices since no pack
// example imports gonum/gorgonia.
type DenseNet struct {
	w1, b1 [][]float64 // hidden1: 64 x 21, 64
	w2, b2 [][]float64 // hidden2: 32 x 64, 32
	w3, b3 [][]float64 // output:  actions x 32, actions

	hidden1, hidden2, numActions int
	lr                           float64
}

const (
	denseHidden1 = 64
	denseHidden2 = 32
)

// NewDenseNet builds a DenseNet with small random initial weights.
func NewDenseNet(numActions int, learningRate float64, rng *rand.Rand) *DenseNet {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	n := &DenseNet{
		hidden1:    denseHidden1,
		hidden2:    denseHidden2,
		numActions: numActions,
		lr:         learningRate,
	}
	n.w1 = randMatrix(rng, denseHidden1, StateDim)
	n.b1 = zeroVector(denseHidden1)
	n.w2 = randMatrix(rng, denseHidden2, denseHidden1)
	n.b2 = zeroVector(denseHidden2)
	n.w3 = randMatrix(rng, numActions, denseHidden2)
	n.b3 = zeroVector(numActions)
	return n
}

func randMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	scale := 1.0 / float64(cols+1)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m
}

func zeroVector(n int) [][]float64 {
	v := make([][]float64, n)
	for i := range v {
		v[i] = []float64{0}
	}
	return v
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func reluDeriv(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func denseForward(w [][]float64, b [][]float64, input []float64, activate bool) []float64 {
	out := make([]float64, len(w))
	for i := range w {
		v := dot(w[i], input) + b[i][0]
		if activate {
			v = relu(v)
		}
		out[i] = v
	}
	return out
}

// NumActions returns the size of the discrete action space.
func (n *DenseNet) NumActions() int { return n.numActions }

// Predict runs a forward pass and returns Q(s, ·) for every action.
func (n *DenseNet) Predict(state []float64) []float64 {
	h1 := denseForward(n.w1, n.b1, state, true)
	h2 := denseForward(n.w2, n.b2, h1, true)
	return denseForward(n.w3, n.b3, h2, false)
}

// Fit performs one backprop step per experience against a (usually frozen)
// target network, returning the mean squared TD error.
func (n *DenseNet) Fit(batch []types.Experience, gamma float64, target QFunction) float64 {
	if len(batch) == 0 {
		return 0
	}
	var sumLoss float64
	for _, exp := range batch {
		state := exp.State[:]

		// Forward pass with pre-activations retained for backprop.
		h1Pre := make([]float64, n.hidden1)
		for i := range n.w1 {
			h1Pre[i] = dot(n.w1[i], state) + n.b1[i][0]
		}
		h1 := applyRelu(h1Pre)

		h2Pre := make([]float64, n.hidden2)
		for i := range n.w2 {
			h2Pre[i] = dot(n.w2[i], h1) + n.b2[i][0]
		}
		h2 := applyRelu(h2Pre)

		qOut := make([]float64, n.numActions)
		for i := range n.w3 {
			qOut[i] = dot(n.w3[i], h2) + n.b3[i][0]
		}

		nextQ := target.Predict(exp.NextState[:])
		maxNext := maxOf(nextQ)
		doneFactor := 1.0
		if exp.Done {
			doneFactor = 0
		}
		tdTarget := exp.Reward + gamma*doneFactor*maxNext
		tdError := qOut[exp.Action] - tdTarget
		sumLoss += tdError * tdError

		// Backprop: only the chosen action's output contributes gradient.
		dOut := make([]float64, n.numActions)
		dOut[exp.Action] = tdError

		dH2 := make([]float64, n.hidden2)
		for i := range n.w3 {
			if dOut[i] == 0 {
				continue
			}
			for j := range n.w3[i] {
				dH2[j] += dOut[i] * n.w3[i][j]
				n.w3[i][j] -= n.lr * dOut[i] * h2[j]
			}
			n.b3[i][0] -= n.lr * dOut[i]
		}

		dH2Pre := make([]float64, n.hidden2)
		for i := range dH2 {
			dH2Pre[i] = dH2[i] * reluDeriv(h2Pre[i])
		}

		dH1 := make([]float64, n.hidden1)
		for i := range n.w2 {
			if dH2Pre[i] == 0 {
				continue
			}
			for j := range n.w2[i] {
				dH1[j] += dH2Pre[i] * n.w2[i][j]
				n.w2[i][j] -= n.lr * dH2Pre[i] * h1[j]
			}
			n.b2[i][0] -= n.lr * dH2Pre[i]
		}

		dH1Pre := make([]float64, n.hidden1)
		for i := range dH1 {
			dH1Pre[i] = dH1[i] * reluDeriv(h1Pre[i])
		}

		for i := range n.w1 {
			if dH1Pre[i] == 0 {
				continue
			}
			for j := range n.w1[i] {
				n.w1[i][j] -= n.lr * dH1Pre[i] * state[j]
			}
			n.b1[i][0] -= n.lr * dH1Pre[i]
		}
	}
	return sumLoss / float64(len(batch))
}

func applyRelu(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = relu(x)
	}
	return out
}

// CopyTo copies this network's weights into target.
func (n *DenseNet) CopyTo(target QFunction) {
	t, ok := target.(*DenseNet)
	if !ok {
		return
	}
	copyMatrix(n.w1, t.w1)
	copyMatrix(n.b1, t.b1)
	copyMatrix(n.w2, t.w2)
	copyMatrix(n.b2, t.b2)
	copyMatrix(n.w3, t.w3)
	copyMatrix(n.b3, t.b3)
}

func copyMatrix(src, dst [][]float64) {
	for i := range src {
		if i >= len(dst) {
			return
		}
		copy(dst[i], src[i])
	}
}
