package sechat

import (
	"encoding/json"
	"reflect"
	"testing"
)

const (
	wirePosted  = `{"content":"test","id":141800943,"message_id":63567474,"room_id":1,"room_name":"Sandbox","time_stamp":1684029252,"user_id":526756,"user_name":"Seggan"}`
	wireEdited  = `{"content":"test (edit again)","id":141800944,"message_edits":1,"message_id":63567474,"room_id":1,"room_name":"Sandbox","time_stamp":1684029252,"user_id":526756,"user_name":"Seggan"}`
	wireDeleted = `{"id":141800967,"message_id":63567485,"room_id":1,"room_name":"Sandbox","time_stamp":1684029470,"user_id":526756,"user_name":"Seggan"}`
)

func TestEventDecodeKinds(t *testing.T) {
	tests := []struct {
		name string
		wire string
		want ChatEvent
	}{
		{
			name: "posted",
			wire: wirePosted,
			want: ChatEvent{
				Kind: KindPosted, ID: 141800943, MessageID: 63567474,
				RoomID: 1, RoomName: "Sandbox", Timestamp: 1684029252,
				UserID: 526756, Username: "Seggan", Content: "test",
			},
		},
		{
			name: "edited",
			wire: wireEdited,
			want: ChatEvent{
				Kind: KindEdited, ID: 141800944, MessageID: 63567474,
				RoomID: 1, RoomName: "Sandbox", Timestamp: 1684029252,
				UserID: 526756, Username: "Seggan", Content: "test (edit again)",
				EditCount: 1,
			},
		},
		{
			name: "deleted",
			wire: wireDeleted,
			want: ChatEvent{
				Kind: KindDeleted, ID: 141800967, MessageID: 63567485,
				RoomID: 1, RoomName: "Sandbox", Timestamp: 1684029470,
				UserID: 526756, Username: "Seggan",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChatEvent
			if err := json.Unmarshal([]byte(tt.wire), &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("decoded %+v, want %+v", got, tt.want)
			}
		})
	}
}

// An edit always carries message_edits, so it must classify as edited
// even though it also has content.
func TestEventDecodePriority(t *testing.T) {
	var ev ChatEvent
	if err := json.Unmarshal([]byte(wireEdited), &ev); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ev.Kind != KindEdited {
		t.Fatalf("kind = %s, want edited", ev.Kind)
	}
}

func TestEventRoundTrip(t *testing.T) {
	for _, wire := range []string{wirePosted, wireEdited, wireDeleted} {
		var ev ChatEvent
		if err := json.Unmarshal([]byte(wire), &ev); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		encoded, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		var again ChatEvent
		if err := json.Unmarshal(encoded, &again); err != nil {
			t.Fatalf("re-unmarshal failed: %v", err)
		}
		if !reflect.DeepEqual(ev, again) {
			t.Fatalf("round trip changed event: %+v != %+v", ev, again)
		}
	}
}
