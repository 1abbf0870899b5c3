package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/realtime"
)

// Invite response actions.
const (
	InviteAccept  = "ACCEPT"
	InviteDecline = "DECLINE"
)

// InviteService runs the two-party help-request handshake on top of the
// notification store. The invite notification is the handshake's only state
// and is consumed exactly once by the response.
type InviteService struct {
	tasks         TaskStore
	notifications *NotificationService
	broadcaster   realtime.Broadcaster
}

func NewInviteService(tasks TaskStore, notifications *NotificationService, broadcaster realtime.Broadcaster) *InviteService {
	return &InviteService{
		tasks:         tasks,
		notifications: notifications,
		broadcaster:   broadcaster,
	}
}

// Invite asks a non-assignee for help with a task.
func (s *InviteService) Invite(ctx context.Context, taskID primitive.ObjectID, targetUserID string, auth models.AuthContext) error {
	if targetUserID == "" {
		return Validation("targetUserId is required")
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return NotFound("task not found")
	}

	if !task.HasAssignee(auth.UserID) && !auth.IsAdmin() {
		return Forbidden("only assignees can invite others")
	}
	if task.HasAssignee(targetUserID) {
		return Conflict("user is already assigned")
	}

	message := fmt.Sprintf("Help request: please help with task %q", task.Title)
	meta := models.NotificationMetadata{TaskID: task.ID.Hex(), SenderID: auth.UserID}
	if _, err := s.notifications.Notify(ctx, targetUserID, message, models.NotificationTaskInvite, task.ProjectID, meta); err != nil {
		return fmt.Errorf("failed to send invite: %w", err)
	}
	return nil
}

// Respond consumes an invite. ACCEPT joins the task with set semantics;
// both branches reply to the sender and delete the invite notification, so a
// second response to the same id fails NotFound.
func (s *InviteService) Respond(ctx context.Context, notificationID, action string, auth models.AuthContext) error {
	if action != InviteAccept && action != InviteDecline {
		return Validation("action must be ACCEPT or DECLINE")
	}

	invite, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	// Only an invite can be consumed here; other notification kinds share the
	// store but must never grant a join or be deleted through this path.
	if invite == nil || invite.Type != models.NotificationTaskInvite {
		return NotFound("notification not found")
	}
	if invite.UserID != auth.UserID {
		return Forbidden("not authorized to respond to this invitation")
	}

	var reply string
	if action == InviteAccept {
		s.acceptInvite(ctx, invite, auth)
		reply = "Accepted: user has joined the task"
	} else {
		reply = "Declined: user cannot help with the task"
	}

	if invite.Metadata.SenderID != "" {
		if _, err := s.notifications.Notify(ctx, invite.Metadata.SenderID, reply, models.NotificationInfo, invite.ProjectID, models.NotificationMetadata{}); err != nil {
			logging.Logger.Errorf("Event ID: INVITE_REPLY_FAILED, Description: Failed to notify invite sender %s: %v", invite.Metadata.SenderID, err)
		}
	}

	if err := s.notifications.Remove(ctx, invite); err != nil {
		return fmt.Errorf("failed to consume invitation: %w", err)
	}
	return nil
}

// acceptInvite joins the responder to the task. The task reference is weak;
// a task deleted since the invite was sent just skips the assignment.
func (s *InviteService) acceptInvite(ctx context.Context, invite *models.Notification, auth models.AuthContext) {
	taskID, err := primitive.ObjectIDFromHex(invite.Metadata.TaskID)
	if err != nil {
		logging.Logger.Warnf("Event ID: INVITE_TASK_REF_INVALID, Description: Invite %s holds malformed task id %q", invite.ID, invite.Metadata.TaskID)
		return
	}

	task, err := s.tasks.AddAssignee(ctx, taskID, auth.UserID)
	if err != nil {
		logging.Logger.Errorf("Event ID: INVITE_ASSIGN_FAILED, Description: Failed to add assignee from invite %s: %v", invite.ID, err)
		return
	}
	if task == nil {
		logging.Logger.Warnf("Event ID: INVITE_TASK_GONE, Description: Task %s behind invite %s no longer exists", invite.Metadata.TaskID, invite.ID)
		return
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskUpdated, task)
}
