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

import (
	"strings"

	"axonflow/corerouter/internal/types"
)

// taskTypeToContext maps a non-custom TaskType directly to a ContextType.
var taskTypeToContext = map[types.TaskType]types.ContextType{
	types.TaskCodeGeneration: types.ContextCodeGeneration,
	types.TaskCodeAnalysis:   types.ContextReview,
	types.TaskTesting:        types.ContextTesting,
	types.TaskDocumentation:  types.ContextDocumentation,
	types.TaskReview:         types.ContextReview,
	types.TaskDebugging:      types.ContextDebugging,
	types.TaskRefactoring:    types.ContextRefactoring,
	types.TaskArchitecture:   types.ContextArchitecture,
}

// keywordContextTable is consulted in order; the first matching entry wins.
// Order encodes the tie-break rule in §4.C step 2.
var keywordContextTable = []struct {
	keywords []string
	context  types.ContextType
}{
	{[]string{"vulnerability", "exploit", "cve", "injection", "auth bypass"}, types.ContextSecurity},
	{[]string{"bug", "crash", "stack trace", "panic", "exception", "not working"}, types.ContextDebugging},
	{[]string{"slow", "latency", "throughput", "profil", "bottleneck"}, types.ContextPerformance},
	{[]string{"design", "system design", "diagram", "architecture"}, types.ContextArchitecture},
	{[]string{"unit test", "test case", "coverage", "assert"}, types.ContextTesting},
	{[]string{"readme", "document", "comment", "docstring"}, types.ContextDocumentation},
	{[]string{"review", "pull request", "code review"}, types.ContextReview},
	{[]string{"refactor", "clean up", "restructure"}, types.ContextRefactoring},
	{[]string{"write", "implement", "generate", "create function"}, types.ContextCodeGeneration},
}

// ExtractContext exposes extractContext for callers outside the package
// (the DQN state builder reuses it rather than re-deriving context type).
func ExtractContext(req types.Request) types.ContextType {
	return extractContext(req)
}

// extractContext implements §4.C step 2: direct map for non-custom task
// types, else keyword classification with first-match tie-break.
func extractContext(req types.Request) types.ContextType {
	if req.TaskType != "" && req.TaskType != types.TaskCustom {
		if ctx, ok := taskTypeToContext[req.TaskType]; ok {
			return ctx
		}
	}

	lower := strings.ToLower(req.Prompt)
	for _, entry := range keywordContextTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.context
			}
		}
	}
	return types.ContextGeneral
}
