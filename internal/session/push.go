package session

import (
	"encoding/json"

	"github.com/vantrix/realmcore/internal/codec"
)

// systemProtocolID is reserved for server-originated pushes that aren't
// tied to any application handler (protocol ids 1+ are the handlers'
// own namespace, per cmd/server's registrations).
const systemProtocolID = 0

// methodKicked identifies the one system push this package emits.
const methodKicked = 1

// kickPush is the JSON body of a kicked push, matching the
// {code,msg,data} envelope shape handlers.Envelope uses for ordinary
// replies so a single client-side decoder handles both.
type kickPush struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// encodeKickFrame builds the Push frame (seqId 0) spec.md §4.2's kick
// operation requires be delivered before the connection closes.
func encodeKickFrame(c *codec.Codec, reason KickReason) []byte {
	body, err := json.Marshal(kickPush{Code: 1, Msg: string(reason)})
	if err != nil {
		body = []byte(`{"code":1,"msg":"kicked"}`)
	}
	return c.Encode(codec.Message{
		SeqID:      0,
		ProtocolID: systemProtocolID,
		MethodID:   methodKicked,
		Body:       body,
	})
}
