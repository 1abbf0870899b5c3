package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/models"
)

// NotificationRepo stores notifications in Cassandra under two denormalized
// tables: notifications_by_user serves the recipient's inbox ordered newest
// first, notifications_by_id serves point lookups when an invite is consumed.
// Writes go to both tables in one logged batch.
type NotificationRepo struct {
	session *gocql.Session
}

func NewNotificationRepo(host string) (*NotificationRepo, error) {
	cluster := gocql.NewCluster(host)
	cluster.Keyspace = "system"
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %v", err)
	}

	err = session.Query(
		`CREATE KEYSPACE IF NOT EXISTS notifications
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`).Exec()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create keyspace: %v", err)
	}
	session.Close()

	cluster.Keyspace = "notifications"
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to notifications keyspace: %v", err)
	}

	logging.Logger.Info("Event ID: CASS_CONNECTED, Description: Connected to Cassandra notifications keyspace")
	return &NotificationRepo{session: session}, nil
}

func (nr *NotificationRepo) CloseSession() {
	nr.session.Close()
	logging.Logger.Info("Event ID: CASS_SESSION_CLOSED, Description: Cassandra session closed")
}

// CreateTables bootstraps both notification tables.
func (nr *NotificationRepo) CreateTables() {
	err := nr.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications_by_user (
			user_id TEXT,
			created_at TIMESTAMP,
			id UUID,
			message TEXT,
			type TEXT,
			project_id TEXT,
			read BOOLEAN,
			task_id TEXT,
			sender_id TEXT,
			role TEXT,
			PRIMARY KEY ((user_id), created_at, id)
		) WITH CLUSTERING ORDER BY (created_at DESC, id ASC)`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_TABLE_CREATE_FAILED, Description: Failed to create notifications_by_user: %v", err)
	}

	err = nr.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications_by_id (
			id UUID PRIMARY KEY,
			user_id TEXT,
			created_at TIMESTAMP,
			message TEXT,
			type TEXT,
			project_id TEXT,
			read BOOLEAN,
			task_id TEXT,
			sender_id TEXT,
			role TEXT
		)`).Exec()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASS_TABLE_CREATE_FAILED, Description: Failed to create notifications_by_id: %v", err)
	}
}

func (nr *NotificationRepo) appendInsert(batch *gocql.Batch, n *models.Notification) {
	batch.Query(
		`INSERT INTO notifications_by_user (user_id, created_at, id, message, type, project_id, read, task_id, sender_id, role)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.CreatedAt, n.ID, n.Message, string(n.Type), n.ProjectID, n.Read,
		n.Metadata.TaskID, n.Metadata.SenderID, n.Metadata.Role,
	)
	batch.Query(
		`INSERT INTO notifications_by_id (id, user_id, created_at, message, type, project_id, read, task_id, sender_id, role)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.CreatedAt, n.Message, string(n.Type), n.ProjectID, n.Read,
		n.Metadata.TaskID, n.Metadata.SenderID, n.Metadata.Role,
	)
}

func (nr *NotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = gocql.TimeUUID().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	batch := nr.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	nr.appendInsert(batch, n)

	if err := nr.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to insert notification: %v", err)
	}
	return nil
}

func (nr *NotificationRepo) InsertMany(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	batch := nr.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for i := range ns {
		if ns[i].ID == "" {
			ns[i].ID = gocql.TimeUUID().String()
		}
		if ns[i].CreatedAt.IsZero() {
			ns[i].CreatedAt = time.Now()
		}
		nr.appendInsert(batch, &ns[i])
	}

	if err := nr.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to insert notifications: %v", err)
	}
	return nil
}

// FindByID returns (nil, nil) when no notification has the id.
func (nr *NotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	uuid, err := gocql.ParseUUID(id)
	if err != nil {
		return nil, nil
	}

	var n models.Notification
	var ntype string
	err = nr.session.Query(
		`SELECT id, user_id, created_at, message, type, project_id, read, task_id, sender_id, role
		 FROM notifications_by_id WHERE id = ?`, uuid).WithContext(ctx).
		Scan(&n.ID, &n.UserID, &n.CreatedAt, &n.Message, &ntype, &n.ProjectID, &n.Read,
			&n.Metadata.TaskID, &n.Metadata.SenderID, &n.Metadata.Role)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch notification: %v", err)
	}

	n.Type = models.NotificationType(ntype)
	return &n, nil
}

func (nr *NotificationRepo) FindByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	iter := nr.session.Query(
		`SELECT id, user_id, created_at, message, type, project_id, read, task_id, sender_id, role
		 FROM notifications_by_user WHERE user_id = ?`, userID).WithContext(ctx).Iter()

	var notifications []models.Notification
	var n models.Notification
	var ntype string

	for iter.Scan(&n.ID, &n.UserID, &n.CreatedAt, &n.Message, &ntype, &n.ProjectID, &n.Read,
		&n.Metadata.TaskID, &n.Metadata.SenderID, &n.Metadata.Role) {
		n.Type = models.NotificationType(ntype)
		notifications = append(notifications, n)
		n = models.Notification{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %v", err)
	}
	return notifications, nil
}

// MarkRead reports false when the id is unknown or belongs to another user;
// an error is only returned when Cassandra itself fails.
func (nr *NotificationRepo) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	n, err := nr.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if n == nil || n.UserID != userID {
		return false, nil
	}

	uuid, err := gocql.ParseUUID(n.ID)
	if err != nil {
		return false, nil
	}

	batch := nr.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`UPDATE notifications_by_user SET read = true WHERE user_id = ? AND created_at = ? AND id = ?`,
		n.UserID, n.CreatedAt, uuid)
	batch.Query(`UPDATE notifications_by_id SET read = true WHERE id = ?`, uuid)

	if err := nr.session.ExecuteBatch(batch); err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %v", err)
	}
	return true, nil
}

func (nr *NotificationRepo) Delete(ctx context.Context, n *models.Notification) error {
	uuid, err := gocql.ParseUUID(n.ID)
	if err != nil {
		return fmt.Errorf("invalid notification id: %v", err)
	}

	batch := nr.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM notifications_by_user WHERE user_id = ? AND created_at = ? AND id = ?`,
		n.UserID, n.CreatedAt, uuid)
	batch.Query(`DELETE FROM notifications_by_id WHERE id = ?`, uuid)

	if err := nr.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to delete notification: %v", err)
	}
	return nil
}
