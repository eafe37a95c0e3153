package domain

import "strconv"

// Socket event names. Clients depend on these strings exactly.
const (
	// client -> server
	EventJoin               = "join"
	EventJoinTask           = "join_task"
	EventLeaveTask          = "leave_task"
	EventJoinProject        = "join_project"
	EventLeaveProject       = "leave_project"
	EventTyping             = "typing"
	EventStopTyping         = "stop_typing"
	EventSendMessage        = "send_message"
	EventSendProjectMessage = "send_project_message"
	EventMarkRead           = "mark_read"
	EventMarkProjectRead    = "mark_project_read"

	// server -> client
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventActiveUsers       = "active_users"
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventNewProjectMessage = "new_project_message"
	EventMessageDeleted    = "message_deleted"
	EventMessagesRead      = "messages_read"
	EventUserTyping        = "user_typing"
	EventUserStopTyping    = "user_stop_typing"
	EventNewNotification   = "new_notification"
	EventError             = "error"
)

func TaskTopic(taskID uint) string {
	return "task:" + strconv.FormatUint(uint64(taskID), 10)
}

func ProjectTopic(projectID uint) string {
	return "project:" + strconv.FormatUint(uint64(projectID), 10)
}
