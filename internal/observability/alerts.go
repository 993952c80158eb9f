package observability

import "github.com/vantrix/realmcore/internal/logging"

// LogSink is a minimal AlertSink that only logs, for tests and for
// any deployment that runs without the full Prometheus-backed Metrics
// (e.g. persistence.kind=memory dev setups).
type LogSink struct{}

// Alert implements internal/actorsystem.AlertSink.
func (LogSink) Alert(kind, detail string) {
	logging.Errorf("ALERT[%s]: %s", kind, detail)
}
