// Package events turns domain events published by the task and project
// services into notifications.
package events

import "time"

// DomainEvent is published on taskhub.events.<type> by the services that own
// tasks and projects. Type is one of the notification types it maps to.
type DomainEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	ActorID     uint      `json:"actor_id"`
	RecipientID uint      `json:"recipient_id,omitempty"`
	ProjectID   uint      `json:"project_id,omitempty"`
	TaskID      uint      `json:"task_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message,omitempty"`
	Link        string    `json:"link,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
