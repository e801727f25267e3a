package sechat

import "fmt"

// Message is one entry in a room's deduplicated history buffer.
// Messages are derived from posted events only; edits and deletions
// are not projected onto the buffer.
type Message struct {
	ID        int64
	Content   string
	UserID    int64
	Username  string
	RoomID    int64
	Timestamp int64
}

// MessageFromEvent converts a posted event into a Message. Edited and
// deleted events cannot be converted and fail with an
// expected_posted_event error.
func MessageFromEvent(ev ChatEvent) (Message, error) {
	if ev.Kind != KindPosted {
		return Message{}, NewError(ErrorExpectedPostedEvent,
			fmt.Sprintf("cannot convert %s event %d to a message", ev.Kind, ev.ID))
	}
	return Message{
		ID:        ev.MessageID,
		Content:   ev.Content,
		UserID:    ev.UserID,
		Username:  ev.Username,
		RoomID:    ev.RoomID,
		Timestamp: ev.Timestamp,
	}, nil
}

// sameMessage is the dedup identity: two entries are the same message
// when their ids match, or when content and username both match. The
// second rule folds a locally optimistic "just sent" entry into the
// authoritative echo from the stream.
func sameMessage(a, b Message) bool {
	if a.ID == b.ID {
		return true
	}
	return a.Content == b.Content && a.Username == b.Username
}
