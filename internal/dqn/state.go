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

// numProviderDims is the fixed count of provider-availability booleans
// packed into dims 11-15 of the state vector (spec 4.F).
const numProviderDims = 5

// StateInputs carries everything BuildState needs beyond the request
// itself; every field is pre-normalized to roughly [0,1] by the caller.
type StateInputs struct {
	ComplexityScore     float64 // dim 0
	ContextType         types.ContextType
	ProviderAvailable   [numProviderDims]bool // dims 11-15, in registry provider order
	RollingSuccessRate  float64               // dim 16
	CostBudget          float64               // dim 17
	LatencyBudget       float64               // dim 18
	ContextWindowBudget float64               // dim 19
	UserPreference      float64               // dim 20, -1..+1 cost-pref..quality-pref
}

// BuildState assembles the fixed 21-dimensional state vector: dim 0 is
// complexity, dims 1-10 are a ContextType one-hot over types.ContextTypeOrder,
// dims 11-15 are provider-availability booleans, dim 16 is rolling success
// rate, dims 17-19 are the cost/latency/context-window budget trio, and
// dim 20 is the caller's cost-vs-quality preference scalar.
func BuildState(in StateInputs) [StateDim]float64 {
	var s [StateDim]float64
	s[0] = in.ComplexityScore

	for i, ct := range types.ContextTypeOrder {
		if ct == in.ContextType {
			s[1+i] = 1
			break
		}
	}

	for i := 0; i < numProviderDims; i++ {
		if in.ProviderAvailable[i] {
			s[11+i] = 1
		}
	}

	s[16] = in.RollingSuccessRate
	s[17] = in.CostBudget
	s[18] = in.LatencyBudget
	s[19] = in.ContextWindowBudget
	s[20] = in.UserPreference
	return s
}
