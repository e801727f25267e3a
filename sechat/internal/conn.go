package internal

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// Conn wraps websocket.Conn with a per-read timeout. The event stream
// is read-only; the client never writes frames.
type Conn struct {
	ws          *websocket.Conn
	readTimeout time.Duration
}

func NewConn(ws *websocket.Conn, readTimeout time.Duration) *Conn {
	return &Conn{ws: ws, readTimeout: readTimeout}
}

// Read returns the next frame. The stream multiplexes rooms into JSON
// text frames; callers skip other message types.
func (c *Conn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	if c.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.readTimeout)
		defer cancel()
	}
	return c.ws.Read(ctx)
}

func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	return c.ws.Close(code, reason)
}
