package handlers

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/vantrix/realmcore/internal/dispatch"
	"github.com/vantrix/realmcore/internal/game"
)

// RegisterProfile wires the two actor-backed protocol entries that
// round-trip through internal/game's player entities via the
// dispatcher's RunOnActor path (spec.md §4.3 step 6).
func RegisterProfile(reg *dispatch.Registry, getProtocolKey, grantExpProtocolKey uint32) {
	reg.Register(&dispatch.Handler{
		ProtocolKey: getProtocolKey,
		Name:        game.KindGetProfile,
		RequireAuth: true,
		RequireRole: true,
		RunOn:       dispatch.RunOnActor,
		Decode:      func(body []byte) (any, error) { return nil, nil },
	})

	reg.Register(&dispatch.Handler{
		ProtocolKey: grantExpProtocolKey,
		Name:        game.KindGrantExp,
		RequireAuth: true,
		RequireRole: true,
		RunOn:       dispatch.RunOnActor,
		Decode: func(body []byte) (any, error) {
			if !gjson.ValidBytes(body) {
				return nil, errors.New("malformed json body")
			}
			delta := gjson.GetBytes(body, "amount")
			if !delta.Exists() {
				return nil, errors.New("amount is required")
			}
			return delta.Int(), nil
		},
	})
}
