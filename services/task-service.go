package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/queue"
	"teamboard/microservices/collab-service/realtime"
)

// TaskService owns the task entity's lifecycle: creation, partial updates,
// the approval flow and deletion with its cascades. The primary mutation is
// authoritative; activity, notification and broadcast side effects are best
// effort and never roll it back.
type TaskService struct {
	tasks         TaskStore
	projects      ProjectStore
	activities    *ActivityService
	notifications *NotificationService
	directory     Directory
	storage       ObjectStore
	broadcaster   realtime.Broadcaster
	queue         queue.Queue
	retentionDays int
}

func NewTaskService(
	tasks TaskStore,
	projects ProjectStore,
	activities *ActivityService,
	notifications *NotificationService,
	directory Directory,
	storage ObjectStore,
	broadcaster realtime.Broadcaster,
	q queue.Queue,
	retentionDays int,
) *TaskService {
	return &TaskService{
		tasks:         tasks,
		projects:      projects,
		activities:    activities,
		notifications: notifications,
		directory:     directory,
		storage:       storage,
		broadcaster:   broadcaster,
		queue:         q,
		retentionDays: retentionDays,
	}
}

// CreateTask validates assignee availability, persists the task and
// broadcasts it. Assignment notifications and emails are enqueued for the
// fan-out worker so the caller never waits on them.
func (s *TaskService) CreateTask(ctx context.Context, task models.Task, auth models.AuthContext) (*models.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, Validation("title is required")
	}
	if task.ProjectID == "" {
		return nil, Validation("projectId is required")
	}

	if len(task.Assignees) > 0 {
		members, err := s.directory.FindByIDs(ctx, task.Assignees)
		if err != nil {
			return nil, fmt.Errorf("failed to check assignee availability: %w", err)
		}

		var onLeave []string
		for _, member := range members {
			if member.Availability == models.AvailabilityOnLeave {
				onLeave = append(onLeave, member.DisplayName)
			}
		}
		if len(onLeave) > 0 {
			return nil, Validation(fmt.Sprintf(
				"cannot assign task. The following users are currently on leave: %s",
				strings.Join(onLeave, ", ")))
		}
	}

	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	task.ID = primitive.NewObjectID()
	task.IsApproved = false
	task.ApprovedAt = nil
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt

	if err := s.tasks.Insert(ctx, &task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskCreated, &task)

	recipients := make([]string, 0, len(task.Assignees))
	for _, assignee := range task.Assignees {
		if assignee != auth.UserID {
			recipients = append(recipients, assignee)
		}
	}
	if len(recipients) > 0 {
		s.enqueueAssignmentFanout(ctx, &task, auth.UserID, recipients)
	}

	return &task, nil
}

func (s *TaskService) enqueueAssignmentFanout(ctx context.Context, task *models.Task, creatorID string, recipients []string) {
	payload, err := json.Marshal(TaskAssignedJob{
		TaskID:    task.ID.Hex(),
		ProjectID: task.ProjectID,
		Title:     task.Title,
		Priority:  task.Priority,
		CreatorID: creatorID,
		Assignees: recipients,
	})
	if err != nil {
		logging.Logger.Errorf("Event ID: FANOUT_MARSHAL_FAILED, Description: Failed to marshal assignment fan-out for task %s: %v", task.ID.Hex(), err)
		return
	}

	job := queue.Job{Type: JobTaskAssigned, Payload: payload}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logging.Logger.Errorf("Event ID: FANOUT_ENQUEUE_FAILED, Description: Failed to enqueue assignment fan-out for task %s: %v", task.ID.Hex(), err)
	}
}

// GetTaskByID enforces the viewing relationship: org admins see everything,
// everyone else only tasks they are assigned to.
func (s *TaskService) GetTaskByID(ctx context.Context, id primitive.ObjectID, auth models.AuthContext) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFound("task not found")
	}

	if !auth.IsAdmin() && !task.HasAssignee(auth.UserID) {
		return nil, Forbidden("access denied: you are not assigned to this task")
	}
	return task, nil
}

func (s *TaskService) GetTasksByProject(ctx context.Context, projectID string, auth models.AuthContext) ([]models.Task, error) {
	assignee := ""
	if !auth.IsAdmin() {
		assignee = auth.UserID
	}
	return s.tasks.FindByProject(ctx, projectID, assignee)
}

func (s *TaskService) GetUserTasks(ctx context.Context, userID string) ([]models.Task, error) {
	return s.tasks.FindByAssignee(ctx, userID)
}

// UpdateTask applies a partial update. Removed attachments are cleaned out of
// the object store and the activity log before the document is overwritten;
// after persistence the staged activity, the Done notification and the final
// task:updated broadcast run best effort.
func (s *TaskService) UpdateTask(ctx context.Context, id primitive.ObjectID, patch models.TaskPatch, auth models.AuthContext) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFound("task not found")
	}

	// One staged activity per update: a status change wins over a priority
	// change.
	var stagedType models.ActivityType
	var stagedContent string
	if patch.Status != nil && *patch.Status != task.Status {
		stagedType = models.ActivityStatusChange
		stagedContent = fmt.Sprintf("changed status from %q to %q", task.Status, *patch.Status)
	} else if patch.Priority != nil && *patch.Priority != task.Priority {
		stagedType = models.ActivityPriorityChange
		stagedContent = fmt.Sprintf("changed priority to %q", *patch.Priority)
	}

	if patch.Attachments != nil {
		removed := removedAttachments(task.Attachments, *patch.Attachments)
		if len(removed) > 0 {
			var wg sync.WaitGroup
			for _, attachment := range removed {
				wg.Add(1)
				go func(fileURL string) {
					defer wg.Done()
					if err := s.storage.DeleteByURL(ctx, fileURL); err != nil {
						logging.Logger.Errorf("Event ID: FILE_DELETE_FAILED, Description: %v", err)
					}
					if err := s.activities.RemoveAttachment(ctx, fileURL); err != nil {
						logging.Logger.Errorf("Event ID: ACTIVITY_RETYPE_FAILED, Description: Failed to retype activity for %s: %v", fileURL, err)
					}
				}(attachment.URL)
			}
			wg.Wait()
		}
	}

	applyPatch(task, patch)
	task.UpdatedAt = time.Now()

	if err := s.tasks.Replace(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if stagedType != "" {
		if _, err := s.activities.Record(ctx, id, auth, stagedType, stagedContent, models.ActivityMetadata{}); err != nil {
			logging.Logger.Errorf("Event ID: ACTIVITY_RECORD_FAILED, Description: Failed to record %s for task %s: %v", stagedType, id.Hex(), err)
		}
	}

	if patch.Status != nil && *patch.Status == models.StatusDone {
		s.notifyOwnerTaskDone(ctx, task, auth)
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskUpdated, task)
	return task, nil
}

func (s *TaskService) notifyOwnerTaskDone(ctx context.Context, task *models.Task, auth models.AuthContext) {
	projectID, err := primitive.ObjectIDFromHex(task.ProjectID)
	if err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_ID_INVALID, Description: Task %s has malformed project id %q", task.ID.Hex(), task.ProjectID)
		return
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_LOOKUP_FAILED, Description: %v", err)
		return
	}
	if project == nil || project.OwnerID == "" || project.OwnerID == auth.UserID {
		return
	}

	message := fmt.Sprintf("Task %q was marked as DONE. Please review for approval.", task.Title)
	meta := models.NotificationMetadata{TaskID: task.ID.Hex()}
	if _, err := s.notifications.Notify(ctx, project.OwnerID, message, models.NotificationInfo, task.ProjectID, meta); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFY_OWNER_FAILED, Description: Failed to notify project owner for task %s: %v", task.ID.Hex(), err)
	}
}

// DeleteTask removes the task and everything hanging off it. Files and
// activity rows go first so a crash can only leave orphans of an already
// removed task, never a live task pointing at deleted files.
func (s *TaskService) DeleteTask(ctx context.Context, id primitive.ObjectID, auth models.AuthContext) error {
	if !auth.IsAdmin() {
		return Forbidden("only admins can delete tasks")
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return NotFound("task not found")
	}

	urls, err := s.collectFileURLs(ctx, task)
	if err != nil {
		return err
	}
	s.deleteFiles(ctx, urls)

	if _, err := s.activities.DeleteForTask(ctx, id); err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskDeleted, id.Hex())
	for _, assignee := range task.Assignees {
		s.broadcaster.Emit(realtime.UserChannel(assignee), realtime.EventDashboardUpdate, nil)
	}

	return nil
}

// collectFileURLs unions the task's attachment URLs with the live URLs of its
// UPLOAD activities.
func (s *TaskService) collectFileURLs(ctx context.Context, task *models.Task) ([]string, error) {
	seen := make(map[string]bool)
	var urls []string

	for _, attachment := range task.Attachments {
		if attachment.URL != "" && !seen[attachment.URL] {
			seen[attachment.URL] = true
			urls = append(urls, attachment.URL)
		}
	}

	uploadURLs, err := s.activities.UploadURLs(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect upload activities: %w", err)
	}
	for _, fileURL := range uploadURLs {
		if !seen[fileURL] {
			seen[fileURL] = true
			urls = append(urls, fileURL)
		}
	}

	return urls, nil
}

// deleteFiles removes the files concurrently; each failure is logged and the
// rest continue.
func (s *TaskService) deleteFiles(ctx context.Context, urls []string) {
	var wg sync.WaitGroup
	for _, fileURL := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := s.storage.DeleteByURL(ctx, u); err != nil {
				logging.Logger.Errorf("Event ID: FILE_DELETE_FAILED, Description: %v", err)
			}
		}(fileURL)
	}
	wg.Wait()
}

// Approve marks the task approved, schedules it for retention deletion and
// tells every assignee. Re-approving simply resets the approval clock.
func (s *TaskService) Approve(ctx context.Context, id primitive.ObjectID, comment string, auth models.AuthContext) (*models.Task, error) {
	if !auth.IsAdmin() {
		return nil, Forbidden("only admins can approve tasks")
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFound("task not found")
	}

	now := time.Now()
	task.IsApproved = true
	task.ApprovedAt = &now

	if comment == "" {
		comment = fmt.Sprintf("Task approved. Scheduled for deletion in %d days.", s.retentionDays)
	}
	task.Comments = append(task.Comments, models.Comment{
		UserID:    auth.UserID,
		UserName:  s.actorName(ctx, auth.UserID),
		Text:      comment,
		Type:      models.CommentApproval,
		CreatedAt: now,
	})
	task.UpdatedAt = now

	if err := s.tasks.Replace(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to approve task: %w", err)
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskUpdated, task)
	s.notifyAssignees(ctx, task, fmt.Sprintf(
		"Task %q APPROVED. It will be auto-deleted in %d days.", task.Title, s.retentionDays))

	return task, nil
}

// Disapprove clears the approval and forces the task back to In Progress.
func (s *TaskService) Disapprove(ctx context.Context, id primitive.ObjectID, comment string, auth models.AuthContext) (*models.Task, error) {
	if !auth.IsAdmin() {
		return nil, Forbidden("only admins can disapprove tasks")
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFound("task not found")
	}

	now := time.Now()
	task.IsApproved = false
	task.ApprovedAt = nil
	task.Status = models.StatusInProgress

	if comment == "" {
		comment = "Task disapproved."
	}
	task.Comments = append(task.Comments, models.Comment{
		UserID:    auth.UserID,
		UserName:  s.actorName(ctx, auth.UserID),
		Text:      comment,
		Type:      models.CommentRejection,
		CreatedAt: now,
	})
	task.UpdatedAt = now

	if err := s.tasks.Replace(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to disapprove task: %w", err)
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskUpdated, task)
	s.notifyAssignees(ctx, task, fmt.Sprintf("Task %q DISAPPROVED. Please check comments.", task.Title))

	return task, nil
}

func (s *TaskService) notifyAssignees(ctx context.Context, task *models.Task, message string) {
	if len(task.Assignees) == 0 {
		return
	}

	meta := models.NotificationMetadata{TaskID: task.ID.Hex()}
	_, err := s.notifications.NotifyMany(ctx, task.Assignees,
		func(string) string { return message },
		models.NotificationInfo, task.ProjectID, meta)
	if err != nil {
		logging.Logger.Errorf("Event ID: NOTIFY_ASSIGNEES_FAILED, Description: Failed to notify assignees of task %s: %v", task.ID.Hex(), err)
	}
}

func (s *TaskService) actorName(ctx context.Context, userID string) string {
	member, err := s.directory.FindOne(ctx, userID)
	if err != nil || member == nil {
		return "Admin"
	}
	return member.DisplayName
}

func removedAttachments(current, next []models.Attachment) []models.Attachment {
	keep := make(map[string]bool, len(next))
	for _, attachment := range next {
		keep[attachment.URL] = true
	}

	var removed []models.Attachment
	for _, attachment := range current {
		if attachment.URL != "" && !keep[attachment.URL] {
			removed = append(removed, attachment)
		}
	}
	return removed
}

func applyPatch(task *models.Task, patch models.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Assignees != nil {
		task.Assignees = *patch.Assignees
	}
	if patch.Attachments != nil {
		task.Attachments = *patch.Attachments
	}
}
