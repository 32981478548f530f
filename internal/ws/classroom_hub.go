package ws

import (
	"encoding/json"
	"sync"
)

// Room holds the connected parties of one booking's classroom.
type Room struct {
	BookingID uint
	mu        sync.RWMutex
	peers     map[uint]*Client
}

func newRoom(bookingID uint) *Room {
	return &Room{BookingID: bookingID, peers: make(map[uint]*Client)}
}

// Join adds c, replacing an older connection of the same user. It reports
// whether the user was already connected.
func (r *Room) Join(c *Client) (replaced bool) {
	r.mu.Lock()
	old, ok := r.peers[c.UserID]
	r.peers[c.UserID] = c
	r.mu.Unlock()
	if ok && old != c {
		old.Close()
	}
	return ok
}

// Leave removes c if it is still the user's current connection. It reports
// whether the user has left the room.
func (r *Room) Leave(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peers[c.UserID] != c {
		return false
	}
	delete(r.peers, c.UserID)
	return true
}

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// SendToOthers delivers payload to every peer except sender.
func (r *Room) SendToOthers(sender uint, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for uid, c := range r.peers {
		if uid != sender {
			c.deliver(data)
		}
	}
}

// ClassroomHub maps booking ids to rooms.
type ClassroomHub struct {
	mu    sync.Mutex
	rooms map[uint]*Room
}

func NewClassroomHub() *ClassroomHub {
	return &ClassroomHub{rooms: make(map[uint]*Room)}
}

func (h *ClassroomHub) GetOrCreateRoom(bookingID uint) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[bookingID]; ok {
		return r
	}
	r := newRoom(bookingID)
	h.rooms[bookingID] = r
	return r
}

// Release drops the room once nobody is connected.
func (h *ClassroomHub) Release(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r.Size() == 0 && h.rooms[r.BookingID] == r {
		delete(h.rooms, r.BookingID)
	}
}

func (h *ClassroomHub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
