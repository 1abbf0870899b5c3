package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teamboard/microservices/collab-service/adapters"
	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/realtime"
)

// JobTaskAssigned is the queued fan-out job created after a task with
// assignees is persisted and the caller already has its response.
const JobTaskAssigned = "task_assigned"

// TaskAssignedJob carries everything the worker needs so it never re-reads
// the task, which may have changed or vanished by the time it runs.
type TaskAssignedJob struct {
	TaskID    string              `json:"taskId"`
	ProjectID string              `json:"projectId"`
	Title     string              `json:"title"`
	Priority  models.TaskPriority `json:"priority"`
	CreatorID string              `json:"creatorId"`
	Assignees []string            `json:"assignees"`
}

type NotificationService struct {
	notifications NotificationStore
	directory     Directory
	mailer        Mailer
	broadcaster   realtime.Broadcaster
}

func NewNotificationService(notifications NotificationStore, directory Directory, mailer Mailer, broadcaster realtime.Broadcaster) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		directory:     directory,
		mailer:        mailer,
		broadcaster:   broadcaster,
	}
}

// Notify persists a notification and pushes it to the recipient's private
// channel. The push is fire-and-forget; the stored row is the durable trace.
func (ns *NotificationService) Notify(ctx context.Context, userID, message string, ntype models.NotificationType, projectID string, meta models.NotificationMetadata) (*models.Notification, error) {
	if userID == "" || message == "" {
		return nil, Validation("userID and message are required")
	}

	notification := &models.Notification{
		UserID:    userID,
		Message:   message,
		Type:      ntype,
		ProjectID: projectID,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}

	if err := ns.notifications.Insert(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	ns.broadcaster.Emit(realtime.UserChannel(userID), realtime.EventNotificationNew, notification)
	return notification, nil
}

// NotifyMany persists one notification per recipient in a single batch, then
// pushes each individually. Push failures after the batch commit are
// acceptable: nothing is lost, merely not live-delivered.
func (ns *NotificationService) NotifyMany(ctx context.Context, userIDs []string, message func(userID string) string, ntype models.NotificationType, projectID string, meta models.NotificationMetadata) ([]models.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID:    userID,
			Message:   message(userID),
			Type:      ntype,
			ProjectID: projectID,
			Metadata:  meta,
			CreatedAt: time.Now(),
		})
	}

	if err := ns.notifications.InsertMany(ctx, notifications); err != nil {
		return nil, fmt.Errorf("failed to persist notifications: %w", err)
	}

	for i := range notifications {
		ns.broadcaster.Emit(realtime.UserChannel(notifications[i].UserID), realtime.EventNotificationNew, &notifications[i])
	}
	return notifications, nil
}

func (ns *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return ns.notifications.FindByUser(ctx, userID)
}

func (ns *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	found, err := ns.notifications.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if !found {
		return NotFound("notification not found")
	}
	return nil
}

// Get returns (nil, nil) when the notification does not exist.
func (ns *NotificationService) Get(ctx context.Context, notificationID string) (*models.Notification, error) {
	return ns.notifications.FindByID(ctx, notificationID)
}

// Remove deletes a consumed notification.
func (ns *NotificationService) Remove(ctx context.Context, n *models.Notification) error {
	return ns.notifications.Delete(ctx, n)
}

// HandleTaskAssigned is the worker handler for JobTaskAssigned. It persists
// the TASK_ASSIGN notifications, pushes them, and mails each recipient.
// Only the persistence failure is returned (and so retried); push and email
// failures are isolated per recipient and logged.
func (ns *NotificationService) HandleTaskAssigned(ctx context.Context, payload json.RawMessage) error {
	var job TaskAssignedJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logging.Logger.Errorf("Event ID: FANOUT_BAD_PAYLOAD, Description: Failed to decode task_assigned job: %v", err)
		return nil
	}
	if len(job.Assignees) == 0 {
		return nil
	}

	message := func(string) string {
		return fmt.Sprintf("You have been assigned to task: %q", job.Title)
	}
	meta := models.NotificationMetadata{TaskID: job.TaskID, SenderID: job.CreatorID}

	if _, err := ns.NotifyMany(ctx, job.Assignees, message, models.NotificationTaskAssign, job.ProjectID, meta); err != nil {
		return fmt.Errorf("task_assigned fan-out failed: %w", err)
	}

	recipients, err := ns.directory.FindByIDs(ctx, job.Assignees)
	if err != nil {
		logging.Logger.Warnf("Event ID: FANOUT_DIRECTORY_FAILED, Description: Skipping assignment emails for task %s: %v", job.TaskID, err)
		return nil
	}

	for _, member := range recipients {
		if member.Email == "" {
			logging.Logger.Warnf("Event ID: EMAIL_NO_ADDRESS, Description: User %s has no email, skipping", member.ID)
			continue
		}

		subject := fmt.Sprintf("New Task Assigned: %s", job.Title)
		body := adapters.TaskAssignmentEmail(member.DisplayName, job.Title, string(job.Priority))
		if err := ns.mailer.Send(member.Email, subject, body); err != nil {
			logging.Logger.Errorf("Event ID: EMAIL_SEND_FAILED, Description: Failed to send assignment email to %s: %v", member.Email, err)
		}
	}

	return nil
}
