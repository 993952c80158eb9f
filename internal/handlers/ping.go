package handlers

import (
	"time"

	"github.com/vantrix/realmcore/internal/dispatch"
)

// RegisterPing wires a trivial RunOnCaller handler used by clients as a
// liveness/latency probe; it never touches an entity and never blocks,
// so it always runs inline on the dispatcher's own goroutine.
func RegisterPing(reg *dispatch.Registry, protocolKey uint32) {
	reg.Register(&dispatch.Handler{
		ProtocolKey: protocolKey,
		Name:        "conn.ping",
		RunOn:       dispatch.RunOnCaller,
		Decode:      func(body []byte) (any, error) { return nil, nil },
		Invoke: func(rc *dispatch.RequestContext, req any) (any, error) {
			return map[string]int64{"serverTimeMs": time.Now().UnixMilli()}, nil
		},
	})
}
