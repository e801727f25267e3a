package sechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/seggan/lightchat/sechat/internal"

	"github.com/coder/websocket"
)

// runConnector is the room's background task: negotiate a stream URL,
// read frames until the connection ends for any reason, renegotiate.
// Nothing here propagates to the room's consumer; errors only drive
// the loop. The task exits only on cancellation.
func (r *Room) runConnector(ctx context.Context) {
	defer close(r.done)
	defer r.setState(StateClosed)

	backoff := r.cfg.ReconnectBase
	for {
		if ctx.Err() != nil {
			return
		}
		r.setState(StateNegotiating)
		streamURL, err := r.negotiate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.setState(StateErrored)
			r.logger.Warn("stream negotiation failed", map[string]any{
				"room": r.id, "error": err.Error(),
			})
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, r.cfg.ReconnectBase, r.cfg.ReconnectMax)
			continue
		}
		backoff = r.cfg.ReconnectBase

		r.setState(StateConnected)
		err = r.stream(ctx, streamURL)
		if ctx.Err() != nil {
			return
		}
		r.setState(StateErrored)
		if err != nil {
			r.logger.Warn("stream connection ended", map[string]any{
				"room": r.id, "error": err.Error(),
			})
		} else {
			r.logger.Debug("stream connection closed, reconnecting", map[string]any{
				"room": r.id,
			})
		}
	}
}

// negotiate asks the service for this room's streaming URL and appends
// the liveness parameter the service requires.
func (r *Room) negotiate(ctx context.Context) (string, error) {
	body, err := r.session.AuthenticatedPost(ctx, r.cfg.ChatURL+"/ws-auth",
		url.Values{"roomid": {fmt.Sprintf("%d", r.id)}}, r.id)
	if err != nil {
		return "", err
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", WrapError(ErrorDecode, "ws-auth response", err)
	}
	if resp.URL == "" {
		return "", NewError(ErrorDecode, "ws-auth response carried no url")
	}
	return fmt.Sprintf("%s?l=%d", resp.URL, time.Now().Unix()), nil
}

// stream opens the connection and reads frames until it ends. A nil
// return means the peer closed normally; either way the caller
// renegotiates.
func (r *Room) stream(ctx context.Context, streamURL string) error {
	dialCtx := ctx
	if r.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, r.cfg.HandshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set("Origin", r.cfg.ChatURL)
	header.Set("User-Agent", r.cfg.UserAgent)

	ws, _, err := websocket.Dial(dialCtx, streamURL, &websocket.DialOptions{
		HTTPClient: r.session.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		return WrapError(ErrorTransport, "dial stream", err)
	}
	conn := internal.NewConn(ws, r.cfg.ReadTimeout)
	defer conn.Close(websocket.StatusNormalClosure, "reconnecting")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return WrapError(ErrorTransport, "read frame", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := r.handleFrame(ctx, data); err != nil {
			return err
		}
	}
}

// handleFrame decodes one multiplexed frame and dispatches every event
// addressed to this room, in array order.
func (r *Room) handleFrame(ctx context.Context, data []byte) error {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return WrapError(ErrorDecode, "frame envelope", err)
	}
	raw, ok := frame[fmt.Sprintf("r%d", r.id)]
	if !ok {
		return nil
	}
	var channel struct {
		Events []json.RawMessage `json:"e"`
	}
	if err := json.Unmarshal(raw, &channel); err != nil {
		return WrapError(ErrorDecode, "room channel", err)
	}
	for _, rawEvent := range channel.Events {
		var ev ChatEvent
		if err := json.Unmarshal(rawEvent, &ev); err != nil {
			return WrapError(ErrorDecode, "chat event", err)
		}
		r.dispatch(ctx, ev)
	}
	return nil
}

// sleepCtx waits for d, returning false if the context ends first. A
// zero duration keeps the historical tight-loop retry cadence.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// nextBackoff doubles the delay up to max.
func nextBackoff(current, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	next := current * 2
	if next > max && max > 0 {
		next = max
	}
	return next
}
