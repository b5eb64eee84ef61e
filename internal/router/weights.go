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

package router

// Weights parameterizes the capability-score formula in §4.C step 3:
//
//	score = w_cap*capability_fit + w_ctx*context_fit
//	       - w_cost*normalized_cost - w_lat*normalized_latency
//	       + w_rel*reliability
type Weights struct {
	Capability float64
	Context    float64
	Cost       float64
	Latency    float64
	Reliability float64
}

// BalancedWeights is the Advanced Router's default profile.
var BalancedWeights = Weights{Capability: 0.35, Context: 0.25, Cost: 0.15, Latency: 0.10, Reliability: 0.15}

// CostEfficientWeights penalizes cost heavily, used by the COST_EFFICIENT
// routing strategy.
var CostEfficientWeights = Weights{Capability: 0.25, Context: 0.20, Cost: 0.35, Latency: 0.10, Reliability: 0.10}

// PerformanceFocusedWeights zeroes the cost term, per §4.G.
var PerformanceFocusedWeights = Weights{Capability: 0.35, Context: 0.20, Cost: 0.0, Latency: 0.25, Reliability: 0.20}

// TaskOptimizedWeights biases toward capability and context fit over
// economics, used by the TASK_OPTIMIZED routing strategy.
var TaskOptimizedWeights = Weights{Capability: 0.45, Context: 0.30, Cost: 0.10, Latency: 0.05, Reliability: 0.10}
