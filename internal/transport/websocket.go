// Package transport provides alternate session.Transport
// implementations over the primary TCP listener. A gorilla/websocket
// connection doesn't natively satisfy net.Conn (it frames whole
// messages, not a raw byte stream), so wsConn adapts message-at-a-time
// WebSocket I/O into the Read/Write byte-stream shape
// internal/codec.Reader and internal/session.Session expect.
package transport

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vantrix/realmcore/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts *websocket.Conn to net.Conn: each Write call sends one
// binary WebSocket message (the caller is expected to call Write once
// per encoded frame, matching internal/codec.Codec.Encode's output);
// Read drains the current inbound message into p, fetching a fresh
// message via ReadMessage once the buffered one is exhausted.
type wsConn struct {
	ws      *websocket.Conn
	readBuf []byte
}

// Upgrade upgrades an HTTP request to a WebSocket connection and
// returns it as a session.Transport-compatible net.Conn.
func Upgrade(w http.ResponseWriter, r *http.Request) (net.Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if kind != websocket.BinaryMessage && kind != websocket.TextMessage {
			continue
		}
		c.readBuf = data
	}
	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

// Serve runs an HTTP server on addr that upgrades every request on
// path to a WebSocket, handing the resulting net.Conn to accept.
func Serve(addr, path string, accept func(net.Conn)) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			logging.Warnf("transport: websocket upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		accept(conn)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("transport: websocket listener failed: %v", err)
		}
	}()
	logging.Infof("transport: serving websocket on %s%s", addr, path)
	return srv
}
