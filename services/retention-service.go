package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/realtime"
)

// RetentionService deletes approved tasks once they have sat approved for the
// retention window, reusing the same cleanup sequence as a manual delete.
// Each task is swept independently; a pass that dies halfway is harmless
// because the next pass finds the remainder still matching the query.
type RetentionService struct {
	tasks         TaskStore
	projects      ProjectStore
	activities    *ActivityService
	notifications *NotificationService
	storage       ObjectStore
	broadcaster   realtime.Broadcaster
	window        time.Duration
	retentionDays int
}

func NewRetentionService(
	tasks TaskStore,
	projects ProjectStore,
	activities *ActivityService,
	notifications *NotificationService,
	storage ObjectStore,
	broadcaster realtime.Broadcaster,
	retentionDays int,
) *RetentionService {
	return &RetentionService{
		tasks:         tasks,
		projects:      projects,
		activities:    activities,
		notifications: notifications,
		storage:       storage,
		broadcaster:   broadcaster,
		window:        time.Duration(retentionDays) * 24 * time.Hour,
		retentionDays: retentionDays,
	}
}

// Run sweeps on the interval until ctx is cancelled.
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Logger.Infof("Event ID: SWEEP_SCHEDULED, Description: Retention sweep running every %s", interval)

	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info("Event ID: SWEEP_STOPPED, Description: Retention sweep stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				logging.Logger.Errorf("Event ID: SWEEP_FAILED, Description: Retention sweep pass failed: %v", err)
			}
		}
	}
}

// Sweep runs one pass. Per-task failures are logged and skipped so one bad
// task cannot starve the rest.
func (s *RetentionService) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.window)
	expired, err := s.tasks.FindApprovedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to query expired tasks: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	logging.Logger.Infof("Event ID: SWEEP_FOUND, Description: Found %d tasks to auto-delete", len(expired))

	for i := range expired {
		if err := s.sweepTask(ctx, &expired[i]); err != nil {
			logging.Logger.Errorf("Event ID: SWEEP_TASK_FAILED, Description: Failed to auto-delete task %s: %v", expired[i].ID.Hex(), err)
		}
	}
	return nil
}

func (s *RetentionService) sweepTask(ctx context.Context, task *models.Task) error {
	// The conditioned delete is the approval re-check: a disapproval that
	// raced the sweep keeps the task alive, untouched and unannounced. Only
	// once the task is gone do files, activities and signals follow, so a
	// crash mid-cleanup can orphan leftovers of a removed task but never
	// strip a live one.
	removed, err := s.tasks.DeleteApproved(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if !removed {
		logging.Logger.Warnf("Event ID: SWEEP_TASK_SKIPPED, Description: Task %s was disapproved mid-sweep, keeping it", task.ID.Hex())
		return nil
	}

	urls := make(map[string]bool)
	for _, attachment := range task.Attachments {
		if attachment.URL != "" {
			urls[attachment.URL] = true
		}
	}
	uploadURLs, err := s.activities.UploadURLs(ctx, task.ID)
	if err != nil {
		return err
	}
	for _, fileURL := range uploadURLs {
		urls[fileURL] = true
	}

	for fileURL := range urls {
		if err := s.storage.DeleteByURL(ctx, fileURL); err != nil {
			logging.Logger.Errorf("Event ID: FILE_DELETE_FAILED, Description: %v", err)
		}
	}

	if _, err := s.activities.DeleteForTask(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}

	s.notifyOwner(ctx, task)

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskDeleted, task.ID.Hex())
	return nil
}

func (s *RetentionService) notifyOwner(ctx context.Context, task *models.Task) {
	projectID, err := primitive.ObjectIDFromHex(task.ProjectID)
	if err != nil {
		return
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_LOOKUP_FAILED, Description: %v", err)
		return
	}
	if project == nil || project.OwnerID == "" {
		return
	}

	message := fmt.Sprintf("Task %q was auto-deleted (%d days post-approval).", task.Title, s.retentionDays)
	meta := models.NotificationMetadata{TaskID: task.ID.Hex()}
	if _, err := s.notifications.Notify(ctx, project.OwnerID, message, models.NotificationInfo, task.ProjectID, meta); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFY_OWNER_FAILED, Description: Failed to notify owner of auto-deleted task %s: %v", task.ID.Hex(), err)
	}
}
