package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/models"
)

// Store and adapter contracts consumed by the services. The repositories and
// adapters packages provide the production implementations; tests substitute
// in-memory fakes.

type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	FindByProject(ctx context.Context, projectID, assignee string) ([]models.Task, error)
	FindByAssignee(ctx context.Context, userID string) ([]models.Task, error)
	Replace(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteApproved(ctx context.Context, id primitive.ObjectID) (bool, error)
	AddAssignee(ctx context.Context, id primitive.ObjectID, userID string) (*models.Task, error)
	FindApprovedBefore(ctx context.Context, cutoff time.Time) ([]models.Task, error)
	PullAssigneeFromProjects(ctx context.Context, projectIDs []string, userID string) (int64, error)
	DeleteByProjects(ctx context.Context, projectIDs []string) (int64, error)
}

type ActivityStore interface {
	Insert(ctx context.Context, activity *models.Activity) error
	FindByTask(ctx context.Context, taskID primitive.ObjectID) ([]models.Activity, error)
	DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error)
	RetypeUploadByURL(ctx context.Context, fileURL, content string) (int64, error)
}

type ProjectStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	FindIDsByOrg(ctx context.Context, orgID string) ([]string, error)
	PullMemberFromOrg(ctx context.Context, orgID, userID string) (int64, error)
	DeleteByOrg(ctx context.Context, orgID string) (int64, error)
}

type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	InsertMany(ctx context.Context, ns []models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	FindByUser(ctx context.Context, userID string) ([]models.Notification, error)
	// MarkRead reports false without error when no notification matches the
	// id and recipient; an error means the store itself failed.
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	Delete(ctx context.Context, n *models.Notification) error
}

// Directory is the users-service view. Lookups only; DowngradeRole is the one
// cascade-driven mutation and is best effort.
type Directory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Member, error)
	FindOne(ctx context.Context, id string) (*models.Member, error)
	DowngradeRole(ctx context.Context, id string) error
}

type ObjectStore interface {
	DeleteByURL(ctx context.Context, fileURL string) error
}

type Mailer interface {
	Send(to, subject, htmlBody string) error
}
