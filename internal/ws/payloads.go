package ws

import (
	"fmt"

	"tasksync/internal/domain"
)

// Message is the single envelope used in both directions on the notify socket.
// Ref is chosen by the client on a request and echoed on its reply.
type Message struct {
	Type    string       `json:"type"`
	Task    *domain.Task `json:"task,omitempty"`
	ID      string       `json:"id,omitempty"`
	Message string       `json:"message,omitempty"`
	Ref     string       `json:"ref,omitempty"`
}

func EventMessage(ev domain.ChangeEvent) Message {
	switch ev.Kind {
	case domain.EventAdded:
		t := ev.Task
		return Message{Type: MsgTaskAdded, Task: &t, ID: t.ID}
	case domain.EventUpdated:
		t := ev.Task
		return Message{Type: MsgTaskUpdated, Task: &t, ID: t.ID}
	default:
		return Message{Type: MsgTaskDeleted, ID: ev.ID}
	}
}

// Event converts a push message back into a change event. ok is false for
// control messages (acks, pong, errors).
func (m Message) Event() (ev domain.ChangeEvent, ok bool, err error) {
	switch m.Type {
	case MsgTaskAdded, MsgTaskUpdated:
		if m.Task == nil {
			return ev, false, fmt.Errorf("%s message without task", m.Type)
		}
		if m.Type == MsgTaskAdded {
			return domain.Added(*m.Task), true, nil
		}
		return domain.Updated(*m.Task), true, nil
	case MsgTaskDeleted:
		if m.ID == "" {
			return ev, false, fmt.Errorf("%s message without id", m.Type)
		}
		return domain.Deleted(m.ID), true, nil
	}
	return ev, false, nil
}
