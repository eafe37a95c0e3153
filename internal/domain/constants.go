package domain

import "time"

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Notification types. The set is closed; anything else is rejected.
const (
	NotificationTaskAssigned   = "task_assigned"
	NotificationTaskCompleted  = "task_completed"
	NotificationTaskDueSoon    = "task_due_soon"
	NotificationTaskOverdue    = "task_overdue"
	NotificationProjectInvited = "project_invited"
	NotificationProjectUpdated = "project_updated"
	NotificationDirectMessage  = "direct_message"
	NotificationGroupMessage   = "group_message"
	NotificationMention        = "mention"
	NotificationSystem         = "system"
)

var notificationTypes = map[string]struct{}{
	NotificationTaskAssigned:   {},
	NotificationTaskCompleted:  {},
	NotificationTaskDueSoon:    {},
	NotificationTaskOverdue:    {},
	NotificationProjectInvited: {},
	NotificationProjectUpdated: {},
	NotificationDirectMessage:  {},
	NotificationGroupMessage:   {},
	NotificationMention:        {},
	NotificationSystem:         {},
}

func IsNotificationType(t string) bool {
	_, ok := notificationTypes[t]
	return ok
}

const (
	MessageKindText     = "text"
	MessageKindImage    = "image"
	MessageKindDocument = "document"
)

func IsMessageKind(k string) bool {
	return k == MessageKindText || k == MessageKindImage || k == MessageKindDocument
}

// Delivery status of a direct message. Transitions only move forward.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

const (
	Threshold24h     = "24h"
	Threshold3h      = "3h"
	Threshold1h      = "1h"
	ThresholdOverdue = "overdue"
)

// ReminderThreshold is a fixed point before a task's due date.
type ReminderThreshold struct {
	Type   string
	Before time.Duration
}

// ForwardThresholds are checked against the time left until the due date.
var ForwardThresholds = []ReminderThreshold{
	{Type: Threshold24h, Before: 24 * time.Hour},
	{Type: Threshold3h, Before: 3 * time.Hour},
	{Type: Threshold1h, Before: time.Hour},
}

const (
	DefaultReminderInterval = 15 * time.Minute
	DefaultReminderWindow   = 15 * time.Minute
)
