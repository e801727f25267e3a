package sechat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// newBufferRoom builds a room without a connector task, for exercising
// the buffer and dispatch logic directly.
func newBufferRoom(session *WebSession, id int64) *Room {
	cfg := DefaultConfig()
	if session != nil {
		cfg = session.cfg
	}
	r := &Room{
		id:      id,
		session: session,
		cfg:     cfg,
		logger:  noopLogger{},
		done:    make(chan struct{}),
	}
	r.handlers = []EventHandler{r.applyEvent}
	return r
}

func postedEvent(id, messageID int64, content, username string) ChatEvent {
	return ChatEvent{
		Kind: KindPosted, ID: id, MessageID: messageID, RoomID: 1,
		RoomName: "Sandbox", Timestamp: 1684029252, UserID: 526756,
		Username: username, Content: content,
	}
}

func bufferContents(r *Room) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func TestApplyEventAppendsPosted(t *testing.T) {
	room := newBufferRoom(nil, 1)
	if err := room.applyEvent(context.Background(), postedEvent(1, 100, "hi", "Seggan")); err != nil {
		t.Fatalf("applyEvent failed: %v", err)
	}
	msgs := bufferContents(room)
	if len(msgs) != 1 {
		t.Fatalf("buffer holds %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != 100 || msgs[0].Content != "hi" || msgs[0].Username != "Seggan" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
	if room.Name() != "Sandbox" {
		t.Errorf("room name = %q, want Sandbox", room.Name())
	}
}

func TestApplyEventRejectsEditAndDelete(t *testing.T) {
	room := newBufferRoom(nil, 1)
	for _, kind := range []EventKind{KindEdited, KindDeleted} {
		err := room.applyEvent(context.Background(), ChatEvent{Kind: kind, MessageID: 1})
		if errorCode(err) != ErrorExpectedPostedEvent {
			t.Fatalf("error for %s event: %v", kind, err)
		}
	}
	if msgs := bufferContents(room); len(msgs) != 0 {
		t.Fatalf("buffer gained %d messages from non-posted events", len(msgs))
	}
}

// The stream echoing a just-sent message must fold into the existing
// entry by dedup identity, not create a second one.
func TestApplyEventFoldsEcho(t *testing.T) {
	room := newBufferRoom(nil, 1)
	room.mu.Lock()
	room.messages = append(room.messages, Message{ID: 200, Content: "42", Username: "Seggan"})
	room.mu.Unlock()

	if err := room.applyEvent(context.Background(), postedEvent(2, 200, "42", "Seggan")); err != nil {
		t.Fatalf("applyEvent failed: %v", err)
	}
	// Same content and username under a different id folds as well:
	// the optimistic placeholder case.
	if err := room.applyEvent(context.Background(), postedEvent(3, 0, "42", "Seggan")); err != nil {
		t.Fatalf("applyEvent failed: %v", err)
	}
	if msgs := bufferContents(room); len(msgs) != 1 {
		t.Fatalf("buffer holds %d messages, want 1", len(msgs))
	}
}

func TestDispatchOrderAndErrorIsolation(t *testing.T) {
	room := newBufferRoom(nil, 1)
	var order []string
	room.RegisterHandler(func(ctx context.Context, ev ChatEvent) error {
		order = append(order, "first")
		return errors.New("handler exploded")
	})
	room.RegisterHandler(func(ctx context.Context, ev ChatEvent) error {
		order = append(order, "second")
		return nil
	})

	room.dispatch(context.Background(), postedEvent(1, 100, "hi", "Seggan"))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("dispatch order = %v", order)
	}
	if msgs := bufferContents(room); len(msgs) != 1 {
		t.Fatalf("buffer updater did not run: %d messages", len(msgs))
	}
}

func assertNoDuplicateIdentities(t *testing.T, msgs []Message) {
	t.Helper()
	for i := range msgs {
		for j := i + 1; j < len(msgs); j++ {
			if sameMessage(msgs[i], msgs[j]) {
				t.Fatalf("buffer holds duplicate identity: %+v and %+v", msgs[i], msgs[j])
			}
		}
	}
}

func TestMergeSequencesNeverDuplicate(t *testing.T) {
	room := newBufferRoom(nil, 1)
	batches := [][]Message{
		{{ID: 1, Content: "a", Username: "x"}, {ID: 2, Content: "b", Username: "x"}},
		{{ID: 2, Content: "b2", Username: "x"}, {ID: 3, Content: "c", Username: "y"}},
		{{ID: 4, Content: "a", Username: "x"}}, // same content+user as id 1
		{{ID: 2, Content: "b2", Username: "x"}, {ID: 2, Content: "b3", Username: "x"}},
	}
	for _, batch := range batches {
		room.merge(batch)
		assertNoDuplicateIdentities(t, bufferContents(room))
	}
}

func TestMergeHistoryWinsTies(t *testing.T) {
	room := newBufferRoom(nil, 1)
	room.merge([]Message{{ID: 1, Content: "old", Username: "x"}, {ID: 2, Content: "keep", Username: "y"}})
	room.merge([]Message{{ID: 1, Content: "new", Username: "x"}})

	msgs := bufferContents(room)
	if len(msgs) != 2 {
		t.Fatalf("buffer holds %d messages, want 2", len(msgs))
	}
	// Untouched entries keep their position; the incoming batch lands
	// at the end in fetch order.
	if msgs[0].ID != 2 || msgs[1].ID != 1 || msgs[1].Content != "new" {
		t.Fatalf("unexpected buffer: %+v", msgs)
	}
}

func TestSendReturnsAssignedID(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/1/messages/new" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		if got := r.PostForm.Get("text"); got != "42" {
			t.Errorf("text = %q, want 42", got)
		}
		fmt.Fprint(w, `{"id": 200}`)
	}))
	authenticate(session, "chat-fkey", 526756)
	room := newBufferRoom(session, 1)

	id, err := room.Send(context.Background(), "42")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if id != 200 {
		t.Fatalf("id = %d, want 200", id)
	}
}

func TestSendSurfacesRateLimit(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	authenticate(session, "chat-fkey", 526756)
	room := newBufferRoom(session, 1)

	_, err := room.Send(context.Background(), "42")
	if !IsRateLimited(err) {
		t.Fatalf("error = %v, want rate_limited", err)
	}
}

func TestFetchHistoryMergesPostedEvents(t *testing.T) {
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/1/events" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		if got := r.PostForm.Get("mode"); got != "Messages" {
			t.Errorf("mode = %q, want Messages", got)
		}
		if got := r.PostForm.Get("msgCount"); got != "100" {
			t.Errorf("msgCount = %q, want 100", got)
		}
		fmt.Fprintf(w, `{"events": [%s, %s, %s]}`, wirePosted, wireEdited, wireDeleted)
	}))
	authenticate(session, "chat-fkey", 526756)
	room := newBufferRoom(session, 1)

	if err := room.FetchHistory(context.Background(), 100); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	msgs := bufferContents(room)
	// Only the posted event converts; edits and deletions are dropped.
	if len(msgs) != 1 {
		t.Fatalf("buffer holds %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != 63567474 || msgs[0].Content != "test" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
}

func TestMessagesBootstrapsOnce(t *testing.T) {
	fetches := 0
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		fmt.Fprint(w, `{"events": []}`)
	}))
	authenticate(session, "chat-fkey", 526756)
	room := newBufferRoom(session, 1)

	for i := 0; i < 3; i++ {
		msgs, err := room.Messages(context.Background())
		if err != nil {
			t.Fatalf("messages failed: %v", err)
		}
		if len(msgs) != 0 {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
	}
	if fetches != 1 {
		t.Fatalf("bootstrap fetched %d times, want 1", fetches)
	}
}

func TestLeaveNotifiesService(t *testing.T) {
	left := false
	session := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chats/leave/1" {
			left = true
		}
		w.Write([]byte(`{}`))
	}))
	authenticate(session, "chat-fkey", 526756)
	room := newBufferRoom(session, 1)
	room.cancel = func() {}
	close(room.done)

	if err := room.Leave(context.Background()); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if !left {
		t.Fatal("leave endpoint was not called")
	}
}
