package domain

// EventKind - тип изменения задачи
type EventKind string

const (
	EventAdded   EventKind = "task_added"
	EventUpdated EventKind = "task_updated"
	EventDeleted EventKind = "task_deleted"
)

// ChangeEvent describes one committed mutation. Task is set for Added and
// Updated and carries the full post-mutation record; ID is always set.
type ChangeEvent struct {
	Kind EventKind
	ID   string
	Task Task
}

func Added(t Task) ChangeEvent {
	return ChangeEvent{Kind: EventAdded, ID: t.ID, Task: t}
}

func Updated(t Task) ChangeEvent {
	return ChangeEvent{Kind: EventUpdated, ID: t.ID, Task: t}
}

func Deleted(id string) ChangeEvent {
	return ChangeEvent{Kind: EventDeleted, ID: id}
}
