package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry wires error reporting for the reservation API. An empty DSN
// disables reporting, which is the local-development default; release lets
// deploys tag events with the build they came from.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

// FlushSentry drains buffered events, bounded so a shutdown or a serverless
// invocation cannot hang on the transport.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
