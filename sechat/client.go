package sechat

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Client is the user-facing aggregate: the web session plus the map of
// joined rooms. A foreground consumer calls Login once, then joins and
// leaves rooms while each room's connector runs in the background.
type Client struct {
	cfg    Config
	logger Logger
	web    *WebSession

	mu      sync.Mutex
	rooms   map[int64]*Room
	current *Room
}

// NewClient constructs a client with the provided config. Use
// DefaultConfig() as a starting point and modify as needed.
func NewClient(cfg Config) (*Client, error) {
	web, err := NewWebSession(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		logger: noopLogger{},
		web:    web,
		rooms:  make(map[int64]*Room),
	}, nil
}

// SetLogger overrides the logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
	c.web.SetLogger(l)
}

// Session exposes the underlying web session, mainly for cookie
// import/export and identity queries.
func (c *Client) Session() *WebSession {
	return c.web
}

// Login runs the authentication handshake. It must complete before
// any room is joined.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.web.Login(ctx, email, password)
}

// JoinRoom returns the already joined room for id, or joins it:
// constructs the room (which starts its connector task) and registers
// it. The first joined room becomes the current room. Fails with a
// not_authenticated error before Login completes.
func (c *Client) JoinRoom(ctx context.Context, id int64) (*Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok := c.rooms[id]; ok {
		return room, nil
	}
	if !c.web.Authenticated() {
		return nil, NewError(ErrorNotAuthenticated, "join requires a completed login")
	}
	room := newRoom(c.web, c.cfg, c.logger, id)
	c.rooms[id] = room
	if c.current == nil {
		c.current = room
	}
	c.logger.Info("joined room", map[string]any{"room": id})
	return room, nil
}

// LeaveRoom finalizes the room: notifies the service, stops the
// connector and removes the room from the map. The current-room
// designation is cleared if it pointed here.
func (c *Client) LeaveRoom(ctx context.Context, id int64) error {
	c.mu.Lock()
	room, ok := c.rooms[id]
	if ok {
		delete(c.rooms, id)
		if c.current == room {
			c.current = nil
		}
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return room.Leave(ctx)
}

// CurrentRoom returns the designated current room, or nil.
func (c *Client) CurrentRoom() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetCurrentRoom designates a joined room as current. Unknown ids are
// ignored.
func (c *Client) SetCurrentRoom(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok := c.rooms[id]; ok {
		c.current = room
	}
}

// Rooms returns the joined rooms ordered by id.
func (c *Client) Rooms() []*Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ListRooms fetches the service's room directory.
func (c *Client) ListRooms(ctx context.Context) ([]RoomSpec, error) {
	return c.web.ListRooms(ctx)
}

// Close leaves every joined room. Safe to call on a client that never
// logged in.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	rooms := make([]*Room, 0, len(c.rooms))
	for id, room := range c.rooms {
		rooms = append(rooms, room)
		delete(c.rooms, id)
	}
	c.current = nil
	c.mu.Unlock()

	var errs []error
	for _, room := range rooms {
		if err := room.Leave(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
