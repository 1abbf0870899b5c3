package models

import "time"

type NotificationType string

const (
	NotificationTaskAssign NotificationType = "TASK_ASSIGN"
	NotificationTaskInvite NotificationType = "TASK_INVITE"
	NotificationInfo       NotificationType = "INFO"
)

// NotificationMetadata holds weak references by bare identifier. The task or
// project behind them may already be gone; consumers look the reference up and
// tolerate absence.
type NotificationMetadata struct {
	TaskID   string `json:"taskId,omitempty"`
	SenderID string `json:"senderId,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Notification is a durable alert addressed to one user. For an offline
// recipient the stored row is the only trace of the event.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	Message   string               `json:"message"`
	Type      NotificationType     `json:"type"`
	ProjectID string               `json:"projectId,omitempty"`
	Read      bool                 `json:"read"`
	Metadata  NotificationMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}
