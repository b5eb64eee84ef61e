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

// Package logger provides structured, multi-tenant-aware logging for the
// orchestration core. It keeps the field shape of shared/logger/logger.go
// (component/instance_id/container/client_id/request_id) but backs it with
// github.com/rs/zerolog instead of hand-rolled json.Marshal+log.Println,
// following the zerolog usage in the AgenticGoKit example's logging plugin.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger pre-populated with deployment identity
// fields, matching the teacher's Logger{Component, InstanceID, Container}.
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	zl zerolog.Logger
}

// New creates a Logger for the named component. InstanceID is read from the
// INSTANCE_ID environment variable (set during deployment) and Container
// from the hostname, matching the teacher's conventions.
func New(component string) *Logger {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}
	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	zl := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("component", component).
		Str("instance_id", instanceID).
		Str("container", container).
		Logger()

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		zl:         zl,
	}
}

// Fields is a structured payload attached to a log line, mirroring the
// teacher's map[string]interface{} Fields.
type Fields map[string]any

func (l *Logger) log(evt *zerolog.Event, clientID, requestID, message string, fields Fields) {
	if clientID != "" {
		evt = evt.Str("client_id", clientID)
	}
	if requestID != "" {
		evt = evt.Str("request_id", requestID)
	}
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(message)
}

// Debug logs a debug-level structured entry.
func (l *Logger) Debug(clientID, requestID, message string, fields Fields) {
	l.log(l.zl.Debug(), clientID, requestID, message, fields)
}

// Info logs an informational message.
func (l *Logger) Info(clientID, requestID, message string, fields Fields) {
	l.log(l.zl.Info(), clientID, requestID, message, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(clientID, requestID, message string, fields Fields) {
	l.log(l.zl.Warn(), clientID, requestID, message, fields)
}

// Error logs an error message.
func (l *Logger) Error(clientID, requestID, message string, fields Fields) {
	l.log(l.zl.Error(), clientID, requestID, message, fields)
}

// With returns a child Logger with additional fields bound to every
// subsequent entry, useful for per-request loggers.
func (l *Logger) With(fields Fields) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	child := *l
	child.zl = ctx.Logger()
	return &child
}
