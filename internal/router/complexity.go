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
	"math"
	"regexp"
	"strings"

	"axonflow/corerouter/internal/types"
)

var technicalKeywords = []string{
	"algorithm", "concurrency", "race condition", "distributed", "optimize",
	"performance", "scalability", "architecture", "microservice", "cache",
	"transaction", "consistency", "idempotent", "throughput", "latency",
}

var multiStepMarkers = regexp.MustCompile(`(?i)\bfirst\b.*\bthen\b.*\bfinally\b`)

var codeIndicatorPattern = regexp.MustCompile(`[{}]|(?i)\bfunc\b|\bfunction\b|\bimport\b|\bclass\b|\bdef\b`)

// complexityThresholds maps the normalized [0,1] score to a bucket. Each
// bucket takes scores above the previous max up to and including its own
// max, so a score of exactly 0.10 is trivial.
var complexityThresholds = []struct {
	max   float64
	level types.ComplexityLevel
}{
	{0.10, types.ComplexityTrivial},
	{0.25, types.ComplexitySimple},
	{0.40, types.ComplexityModerate},
	{0.58, types.ComplexityComplex},
	{0.75, types.ComplexityVeryComplex},
	{0.90, types.ComplexityExpert},
	{math.MaxFloat64, types.ComplexityCritical},
}

// ScoreComplexity exposes scoreComplexity for callers outside the package
// (the DQN state builder reuses it rather than re-deriving complexity).
func ScoreComplexity(req types.Request) (float64, types.ComplexityLevel) {
	return scoreComplexity(req)
}

// scoreComplexity combines prompt-length, keyword, code-indicator, file-count
// and multi-step signals into a normalized [0,1] score, per §4.C step 1.
func scoreComplexity(req types.Request) (float64, types.ComplexityLevel) {
	lengthScore := logLengthScore(len(req.Prompt))
	keywordScore := keywordDensityScore(req.Prompt, technicalKeywords)
	codeScore := codeIndicatorScore(req.Prompt)
	fileScore := fileCountScore(len(req.Files))
	stepScore := 0.0
	if multiStepMarkers.MatchString(req.Prompt) {
		stepScore = 1.0
	}

	weighted := 0.30*lengthScore + 0.25*keywordScore + 0.20*codeScore + 0.15*fileScore + 0.10*stepScore
	if weighted < 0 {
		weighted = 0
	}
	if weighted > 1 {
		weighted = 1
	}

	for _, bucket := range complexityThresholds {
		if weighted <= bucket.max {
			return weighted, bucket.level
		}
	}
	return weighted, types.ComplexityCritical
}

// logLengthScore buckets prompt length on a log scale: a 4000-char prompt
// scores 1.0, a 20-char prompt scores ~0.37.
func logLengthScore(n int) float64 {
	if n <= 0 {
		return 0
	}
	const maxLen = 4000.0
	score := math.Log1p(float64(n)) / math.Log1p(maxLen)
	if score > 1 {
		score = 1
	}
	return score
}

func keywordDensityScore(prompt string, keywords []string) float64 {
	lower := strings.ToLower(prompt)
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	const saturateAt = 5.0
	return math.Min(float64(count)/saturateAt, 1.0)
}

func codeIndicatorScore(prompt string) float64 {
	matches := codeIndicatorPattern.FindAllString(prompt, -1)
	const saturateAt = 8.0
	return math.Min(float64(len(matches))/saturateAt, 1.0)
}

func fileCountScore(n int) float64 {
	const saturateAt = 6.0
	return math.Min(float64(n)/saturateAt, 1.0)
}
