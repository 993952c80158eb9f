// Package handlers registers the concrete protocol handlers exercising
// every runOn kind described in spec.md §4.3, and supplies the JSON
// reply envelope the dispatcher's ReplyEncoder contract delegates to.
package handlers

import (
	"encoding/json"

	"github.com/vantrix/realmcore/internal/dispatch"
)

// Envelope is the wire shape of every Response body: code 0 means
// success and Data carries the handler's result; any other code is one
// of dispatch's ErrorKind values and Msg carries the detail string.
// This is a handler-layer convention, not part of the frame header
// itself (spec.md §3/§6 leaves the body format to the deployment).
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

// JSONReply implements internal/dispatch.ReplyEncoder.
type JSONReply struct{}

func (JSONReply) EncodeSuccess(resp any) ([]byte, error) {
	return json.Marshal(Envelope{Code: 0, Data: resp})
}

func (JSONReply) EncodeError(kind dispatch.ErrorKind, detail string) ([]byte, error) {
	return json.Marshal(Envelope{Code: int(kind), Msg: detail})
}
