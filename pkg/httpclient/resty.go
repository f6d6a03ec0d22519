package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// newRestyBaseClient creates the pooled resty.Client backing a Client.
// Retries stay disabled; every failure is surfaced to the caller as-is.
func newRestyBaseClient(timeout time.Duration, transport http.RoundTripper, log Logger) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetRetryCount(0)
	c.SetAllowGetMethodPayload(true)
	c.SetLogger(restyLogger{log: log})
	if transport != nil {
		c.SetTransport(transport)
	}
	return c
}

// restyLogger routes resty's internal warnings into the object logger.
type restyLogger struct {
	log Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.ErrorObj("resty error", "resty", fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.WarnObj("resty warning", "resty", fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.DebugObj("resty debug", "resty", fmt.Sprintf(format, v...))
}
