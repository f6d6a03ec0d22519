package publishers

import "github.com/samvad-hq/crm-relay/pkg/httpclient"

// Logger defines the logging surface publishers rely on. It is the same
// surface the HTTP client logs through, so one adapter serves both.
type Logger = httpclient.Logger

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
