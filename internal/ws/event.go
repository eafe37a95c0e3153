package ws

import "encoding/json"

// Event is the JSON envelope for every frame in both directions.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

func NewEvent(name string, data interface{}) Event {
	return Event{Name: name, Data: data}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Inbound is a client frame; Data is decoded once the event name is known.
type Inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// PresencePayload is the body of user_online and user_offline.
type PresencePayload struct {
	UserID uint `json:"user_id"`
}

// ErrorPayload is sent back to a single connection when one of its frames is rejected.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// ActiveUsersPayload is the presence snapshot a connection receives on join.
type ActiveUsersPayload struct {
	Users []uint `json:"users"`
}

// TypingPayload is relayed as user_typing and user_stop_typing.
type TypingPayload struct {
	UserID    uint `json:"user_id"`
	ProjectID uint `json:"project_id,omitempty"`
	TaskID    uint `json:"task_id,omitempty"`
}
