package ws

const (
	// client - server
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgPing        = "ping"

	// server - client
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgPong         = "pong"
	MsgTaskAdded    = "task_added"
	MsgTaskUpdated  = "task_updated"
	MsgTaskDeleted  = "task_deleted"
	MsgError        = "error"
)
