package handlers

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/vantrix/realmcore/internal/dispatch"
	"github.com/vantrix/realmcore/internal/session"
)

// Credentials validates an (account, token) pair. A real deployment
// plugs in its own account-service client; this package only defines
// the seam login.go calls through.
type Credentials interface {
	Authenticate(account, token string) (roleID uint64, roleName string, err error)
}

var errMissingCredentials = errors.New("account and token are required")

type loginRequest struct {
	Account string
	Token   string
}

// RegisterLogin wires the unauthenticated login handler at
// protocolKey. It decodes its body with gjson rather than a fixed
// struct tag, since client SDKs across platforms have historically
// sent extra debug fields alongside account/token that a strict
// Unmarshal would reject.
func RegisterLogin(reg *dispatch.Registry, mgr *session.Manager, creds Credentials, protocolKey uint32) {
	reg.Register(&dispatch.Handler{
		ProtocolKey: protocolKey,
		Name:        "auth.login",
		RunOn:       dispatch.RunOnCaller,
		Decode: func(body []byte) (any, error) {
			if !gjson.ValidBytes(body) {
				return nil, errors.New("malformed json body")
			}
			parsed := gjson.ParseBytes(body)
			account := parsed.Get("account").String()
			token := parsed.Get("token").String()
			if account == "" || token == "" {
				return nil, errMissingCredentials
			}
			return loginRequest{Account: account, Token: token}, nil
		},
		Invoke: func(rc *dispatch.RequestContext, req any) (any, error) {
			lr := req.(loginRequest)
			roleID, roleName, err := creds.Authenticate(lr.Account, lr.Token)
			if err != nil {
				return nil, err
			}
			s, ok := mgr.BySessionID(rc.SessionID)
			if !ok {
				return nil, errors.New("session no longer connected")
			}
			mgr.BindRole(s, roleID, roleName)
			return map[string]any{
				"roleId":         roleID,
				"roleName":       roleName,
				"reconnectToken": s.ReconnectToken(),
			}, nil
		},
	})
}
