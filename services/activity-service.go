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

const attachmentRemovedNotice = "Attachment was removed"

// ActivityService owns the append-only activity log of a task. Entries are
// only ever bulk-deleted together with their task; attachment removal retypes
// the matching UPLOAD entry instead of deleting it.
type ActivityService struct {
	activities  ActivityStore
	tasks       TaskStore
	directory   Directory
	broadcaster realtime.Broadcaster
}

func NewActivityService(activities ActivityStore, tasks TaskStore, directory Directory, broadcaster realtime.Broadcaster) *ActivityService {
	return &ActivityService{
		activities:  activities,
		tasks:       tasks,
		directory:   directory,
		broadcaster: broadcaster,
	}
}

// Record appends an activity for the task. An UPLOAD carrying a file
// reference also appends that file to the task's attachment list; this is the
// only path where writing an activity mutates a task.
func (s *ActivityService) Record(ctx context.Context, taskID primitive.ObjectID, auth models.AuthContext, atype models.ActivityType, content string, meta models.ActivityMetadata) (*models.Activity, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, NotFound("task not found")
	}

	userName := "User"
	userPhoto := ""
	if member, err := s.directory.FindOne(ctx, auth.UserID); err != nil {
		logging.Logger.Warnf("Event ID: DIRECTORY_LOOKUP_FAILED, Description: Falling back to anonymous actor snapshot for %s: %v", auth.UserID, err)
	} else if member != nil {
		userName = member.DisplayName
		userPhoto = member.Photo
	}

	activity := &models.Activity{
		TaskID:    taskID,
		UserID:    auth.UserID,
		UserName:  userName,
		UserPhoto: userPhoto,
		Type:      atype,
		Content:   content,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}

	if err := s.activities.Insert(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	if atype == models.ActivityUpload && meta.FileURL != "" {
		fileType := meta.FileType
		if fileType == "" {
			fileType = "IMAGE"
		}
		task.Attachments = append(task.Attachments, models.Attachment{
			Name: meta.FileName,
			URL:  meta.FileURL,
			Type: fileType,
		})
		task.UpdatedAt = time.Now()
		if err := s.tasks.Replace(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to append attachment: %w", err)
		}
	}

	s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskActivity, activity)
	if atype == models.ActivityUpload && meta.FileURL != "" {
		s.broadcaster.Emit(realtime.ProjectChannel(task.ProjectID), realtime.EventTaskUpdated, task)
	}

	return activity, nil
}

// List returns the task's activities newest first.
func (s *ActivityService) List(ctx context.Context, taskID primitive.ObjectID) ([]models.Activity, error) {
	return s.activities.FindByTask(ctx, taskID)
}

// RemoveAttachment retypes the UPLOAD activity holding the URL. No matching
// activity is a no-op: attachments can predate activity logging.
func (s *ActivityService) RemoveAttachment(ctx context.Context, fileURL string) error {
	modified, err := s.activities.RetypeUploadByURL(ctx, fileURL, attachmentRemovedNotice)
	if err != nil {
		return err
	}
	if modified == 0 {
		logging.Logger.Warnf("Event ID: ATTACHMENT_ACTIVITY_MISSING, Description: No UPLOAD activity found for removed attachment %s", fileURL)
	}
	return nil
}

// DeleteForTask removes every activity of a task. Used only by task deletion.
func (s *ActivityService) DeleteForTask(ctx context.Context, taskID primitive.ObjectID) (int64, error) {
	return s.activities.DeleteByTask(ctx, taskID)
}

// UploadURLs collects the live file URLs recorded by UPLOAD activities.
func (s *ActivityService) UploadURLs(ctx context.Context, taskID primitive.ObjectID) ([]string, error) {
	activities, err := s.activities.FindByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, activity := range activities {
		if activity.Type == models.ActivityUpload && activity.Metadata.FileURL != "" {
			urls = append(urls, activity.Metadata.FileURL)
		}
	}
	return urls, nil
}
