package sechat

import (
	"context"
	"encoding/json"
)

// EventKind discriminates the three event payload shapes.
type EventKind int

const (
	// KindPosted is a newly posted message.
	KindPosted EventKind = iota

	// KindEdited is an edit to an existing message.
	KindEdited

	// KindDeleted is a message removal.
	KindDeleted
)

// String returns the string representation of an EventKind.
func (k EventKind) String() string {
	switch k {
	case KindPosted:
		return "posted"
	case KindEdited:
		return "edited"
	case KindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ChatEvent is one decoded event from the stream or a history fetch.
// The envelope fields are shared by all kinds; Content is set for
// KindPosted and KindEdited, EditCount only for KindEdited.
type ChatEvent struct {
	Kind      EventKind
	ID        int64
	MessageID int64
	RoomID    int64
	RoomName  string
	Timestamp int64
	UserID    int64
	Username  string
	Content   string
	EditCount int64
}

// wireEvent is the service's JSON shape. The wire carries no explicit
// discriminant for the three kinds on this path; presence of fields
// decides: message_edits => edited, content => posted, neither => deleted.
type wireEvent struct {
	ID           int64   `json:"id"`
	MessageID    int64   `json:"message_id"`
	RoomID       int64   `json:"room_id"`
	RoomName     string  `json:"room_name"`
	Timestamp    int64   `json:"time_stamp"`
	UserID       int64   `json:"user_id"`
	Username     string  `json:"user_name"`
	Content      *string `json:"content,omitempty"`
	MessageEdits *int64  `json:"message_edits,omitempty"`
}

// UnmarshalJSON decodes the wire shape, classifying the kind by field
// presence in fixed priority order: edit fields, then post fields,
// else delete.
func (e *ChatEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = ChatEvent{
		ID:        w.ID,
		MessageID: w.MessageID,
		RoomID:    w.RoomID,
		RoomName:  w.RoomName,
		Timestamp: w.Timestamp,
		UserID:    w.UserID,
		Username:  w.Username,
	}
	switch {
	case w.MessageEdits != nil:
		e.Kind = KindEdited
		e.EditCount = *w.MessageEdits
		if w.Content != nil {
			e.Content = *w.Content
		}
	case w.Content != nil:
		e.Kind = KindPosted
		e.Content = *w.Content
	default:
		e.Kind = KindDeleted
	}
	return nil
}

// MarshalJSON encodes back to the wire shape.
func (e ChatEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID,
		MessageID: e.MessageID,
		RoomID:    e.RoomID,
		RoomName:  e.RoomName,
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Username:  e.Username,
	}
	switch e.Kind {
	case KindEdited:
		content := e.Content
		edits := e.EditCount
		w.Content = &content
		w.MessageEdits = &edits
	case KindPosted:
		content := e.Content
		w.Content = &content
	}
	return json.Marshal(w)
}

// EventHandler is a callback registered against a Room. Handlers run
// sequentially in registration order; a handler's error is logged and
// does not stop later handlers.
type EventHandler func(ctx context.Context, ev ChatEvent) error
