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

// Package dqn implements the DQN Routing Agent (component F): a 21-dimensional
// state to discrete-action policy, trained online from a replay buffer of
// routing outcomes. No neural-net framework appears anywhere in the example
// pack, so both QFunction implementations are hand-written over []float64 --
// see DESIGN.md for the standard-library justification.
package dqn

import "axonflow/corerouter/internal/types"

// QFunction maps a state vector to per-action values and can be fit on a
// batch of experiences. LinearQ and DenseNet both implement it so the agent
// has no hard dependency on either.
type QFunction interface {
	Predict(state []float64) []float64
	Fit(batch []types.Experience, gamma float64, target QFunction) float64
	CopyTo(target QFunction)
	NumActions() int
}
