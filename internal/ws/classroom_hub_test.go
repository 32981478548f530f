package ws

import (
	"encoding/json"
	"testing"
)

func TestRoomRelaysToOtherPeer(t *testing.T) {
	h := NewClassroomHub()
	r := h.GetOrCreateRoom(9)
	tutor, student := NewClient(1, "TUTOR"), NewClient(2, "CLIENT")
	r.Join(tutor)
	r.Join(student)

	r.SendToOthers(1, map[string]string{"type": "offer"})
	select {
	case msg := <-student.Send:
		var got map[string]string
		if err := json.Unmarshal(msg, &got); err != nil || got["type"] != "offer" {
			t.Fatalf("student got %s", msg)
		}
	default:
		t.Fatal("student received nothing")
	}
	if len(tutor.Send) != 0 {
		t.Fatal("sender received its own message")
	}
}

func TestReconnectReplacesOldConnection(t *testing.T) {
	h := NewClassroomHub()
	r := h.GetOrCreateRoom(9)
	first, second := NewClient(1, "TUTOR"), NewClient(1, "TUTOR")
	if r.Join(first) {
		t.Fatal("first join reported a replacement")
	}
	if !r.Join(second) {
		t.Fatal("second join did not replace")
	}
	if _, ok := <-first.Send; ok {
		t.Fatal("old connection still open")
	}
	// the stale connection leaving must not remove the new one
	if r.Leave(first) {
		t.Fatal("stale leave removed the user")
	}
	if !r.Leave(second) {
		t.Fatal("leave failed")
	}
	h.Release(r)
	if h.RoomCount() != 0 {
		t.Fatalf("rooms %d", h.RoomCount())
	}
}
