package handlers

import "github.com/vantrix/realmcore/internal/dispatch"

// RegisterEcho wires a RunOnAsync handler: it does no real off-thread
// work itself, but exercises the AsyncPool path end to end so the
// runOn wiring is covered by something simpler than an actor round
// trip.
func RegisterEcho(reg *dispatch.Registry, protocolKey uint32) {
	reg.Register(&dispatch.Handler{
		ProtocolKey: protocolKey,
		Name:        "conn.echo",
		RunOn:       dispatch.RunOnAsync,
		Decode:      func(body []byte) (any, error) { return append([]byte(nil), body...), nil },
		Invoke: func(rc *dispatch.RequestContext, req any) (any, error) {
			return req.([]byte), nil
		},
	})
}
