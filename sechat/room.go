package sechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
)

// Room is one joined chat room: an ordered deduplicated message
// buffer, an ordered list of event handlers, and a background
// connector task feeding both. Rooms are created by Client.JoinRoom
// and finalized by Leave; all accessors are safe for concurrent use.
type Room struct {
	id      int64
	session *WebSession
	cfg     Config
	logger  Logger

	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	mu           sync.Mutex
	name         string
	handlers     []EventHandler
	messages     []Message
	bootstrapped bool
}

// newRoom constructs the room, installs the buffer updater as the
// first handler, and starts the connector task.
func newRoom(session *WebSession, cfg Config, logger Logger, id int64) *Room {
	r := &Room{
		id:      id,
		session: session,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
	r.handlers = []EventHandler{r.applyEvent}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.runConnector(ctx)
	return r
}

// ID returns the room's numeric id.
func (r *Room) ID() int64 { return r.id }

// Name returns the room name as last reported by the service, or ""
// before any event or history entry carried one.
func (r *Room) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// ConnectorState reports where the room's stream connector is in its
// reconnect loop.
func (r *Room) ConnectorState() ConnectorState {
	return ConnectorState(r.state.Load())
}

func (r *Room) setState(s ConnectorState) {
	r.state.Store(int32(s))
}

// RegisterHandler appends a handler to the dispatch chain. Handlers
// run sequentially in registration order for every decoded event.
func (r *Room) RegisterHandler(h EventHandler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// Send posts content to the room and returns the message id the
// service assigned. A rate-limit rejection is detectable with
// IsRateLimited so the caller can back off.
func (r *Room) Send(ctx context.Context, content string) (int64, error) {
	body, err := r.session.AuthenticatedPost(ctx,
		fmt.Sprintf("%s/chats/%d/messages/new", r.cfg.ChatURL, r.id),
		url.Values{"text": {content}}, r.id)
	if err != nil {
		return 0, err
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, WrapError(ErrorDecode, "send response", err)
	}
	return resp.ID, nil
}

// FetchHistory loads the last count events and merges the convertible
// ones into the buffer. Incoming entries win ties: any buffered
// message matching an incoming one's identity is removed before the
// batch is appended in fetch order.
func (r *Room) FetchHistory(ctx context.Context, count int) error {
	body, err := r.session.AuthenticatedPost(ctx,
		fmt.Sprintf("%s/chats/%d/events", r.cfg.ChatURL, r.id),
		url.Values{
			"mode":     {"Messages"},
			"msgCount": {strconv.Itoa(count)},
			"since":    {"0"},
		}, r.id)
	if err != nil {
		return err
	}
	var resp struct {
		Events []ChatEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return WrapError(ErrorDecode, "history response", err)
	}

	var incoming []Message
	for _, ev := range resp.Events {
		msg, err := MessageFromEvent(ev)
		if err != nil {
			// Edits and deletions in the history are not projected.
			continue
		}
		incoming = append(incoming, msg)
		if ev.RoomName != "" {
			r.setName(ev.RoomName)
		}
	}
	r.merge(incoming)
	return nil
}

// Messages returns the current buffer. An empty buffer triggers a
// one-time bootstrap fetch of the configured history depth.
func (r *Room) Messages(ctx context.Context) ([]Message, error) {
	r.mu.Lock()
	needsBootstrap := len(r.messages) == 0 && !r.bootstrapped
	if needsBootstrap {
		r.bootstrapped = true
	}
	r.mu.Unlock()

	if needsBootstrap {
		if err := r.FetchHistory(ctx, r.cfg.HistoryDepth); err != nil {
			r.mu.Lock()
			r.bootstrapped = false
			r.mu.Unlock()
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

// Leave notifies the service, cancels the connector task and waits for
// it to exit. The room is unusable afterward.
func (r *Room) Leave(ctx context.Context) error {
	r.cancel()
	_, err := r.session.AuthenticatedPost(ctx,
		fmt.Sprintf("%s/chats/leave/%d", r.cfg.ChatURL, r.id), nil, r.id)
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// applyEvent is the room's own first handler: it converts posted
// events into messages and appends them unless an entry with the same
// identity is already buffered.
func (r *Room) applyEvent(ctx context.Context, ev ChatEvent) error {
	if ev.RoomName != "" {
		r.setName(ev.RoomName)
	}
	msg, err := MessageFromEvent(ev)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages {
		if sameMessage(existing, msg) {
			return nil
		}
	}
	r.messages = append(r.messages, msg)
	return nil
}

// dispatch invokes every registered handler for the event, in
// registration order, each to completion before the next. A handler
// error is logged and does not stop later handlers.
func (r *Room) dispatch(ctx context.Context, ev ChatEvent) {
	r.mu.Lock()
	handlers := make([]EventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			if errorCode(err) == ErrorExpectedPostedEvent {
				// Routine: edits and deletions are observed and dropped.
				r.logger.Debug("event not convertible to message", map[string]any{
					"room": r.id, "event": ev.ID, "kind": ev.Kind.String(),
				})
			} else {
				r.logger.Warn("event handler failed", map[string]any{
					"room": r.id, "event": ev.ID, "error": err.Error(),
				})
			}
		}
	}
}

// merge applies a history batch: drop buffered entries whose identity
// matches any incoming one, then append the batch in fetch order. The
// batch itself is folded by identity first so the buffer never holds
// two entries for the same message.
func (r *Room) merge(incoming []Message) {
	deduped := incoming[:0]
	for _, in := range incoming {
		matched := false
		for _, seen := range deduped {
			if sameMessage(seen, in) {
				matched = true
				break
			}
		}
		if !matched {
			deduped = append(deduped, in)
		}
	}
	incoming = deduped

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.messages[:0]
	for _, existing := range r.messages {
		matched := false
		for _, in := range incoming {
			if sameMessage(existing, in) {
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, existing)
		}
	}
	r.messages = append(kept, incoming...)
}

func (r *Room) setName(name string) {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}
