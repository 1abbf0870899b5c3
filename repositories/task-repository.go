package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"teamboard/microservices/collab-service/models"
)

type TaskRepo struct {
	collection *mongo.Collection
}

func NewTaskRepo(collection *mongo.Collection) *TaskRepo {
	return &TaskRepo{collection: collection}
}

func (r *TaskRepo) Insert(ctx context.Context, task *models.Task) error {
	result, err := r.collection.InsertOne(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to insert task: %v", err)
	}
	task.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByID returns (nil, nil) when the task does not exist.
func (r *TaskRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch task: %v", err)
	}
	return &task, nil
}

// FindByProject lists the project's tasks newest first. A non-empty assignee
// narrows the result to tasks assigned to that user.
func (r *TaskRepo) FindByProject(ctx context.Context, projectID, assignee string) ([]models.Task, error) {
	filter := bson.M{"projectId": projectID}
	if assignee != "" {
		filter["assignees"] = assignee
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

func (r *TaskRepo) FindByAssignee(ctx context.Context, userID string) ([]models.Task, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"assignees": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %v", err)
	}
	return tasks, nil
}

func (r *TaskRepo) Replace(ctx context.Context, task *models.Task) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID}, task)
	if err != nil {
		return fmt.Errorf("failed to update task: %v", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("task not found for update")
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}
	return nil
}

// DeleteApproved removes the task only while it is still approved and reports
// whether a document was removed. A concurrent disapproval between the sweep's
// read and this call leaves the task alone.
func (r *TaskRepo) DeleteApproved(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "isApproved": true})
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %v", err)
	}
	return result.DeletedCount > 0, nil
}

// AddAssignee adds the user with set semantics and returns the updated task,
// or (nil, nil) when the task is gone.
func (r *TaskRepo) AddAssignee(ctx context.Context, id primitive.ObjectID, userID string) (*models.Task, error) {
	update := bson.M{
		"$addToSet": bson.M{"assignees": userID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var task models.Task
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to add assignee: %v", err)
	}
	return &task, nil
}

func (r *TaskRepo) FindApprovedBefore(ctx context.Context, cutoff time.Time) ([]models.Task, error) {
	filter := bson.M{
		"isApproved": true,
		"approvedAt": bson.M{"$lte": cutoff},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch approved tasks: %v", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode approved tasks: %v", err)
	}
	return tasks, nil
}

// PullAssigneeFromProjects removes the user from the assignee set of every
// task in the given projects. Bulk, no per-task activity entries.
func (r *TaskRepo) PullAssigneeFromProjects(ctx context.Context, projectIDs []string, userID string) (int64, error) {
	filter := bson.M{"projectId": bson.M{"$in": projectIDs}}
	update := bson.M{"$pull": bson.M{"assignees": userID}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to remove user from tasks: %v", err)
	}
	return result.ModifiedCount, nil
}

func (r *TaskRepo) DeleteByProjects(ctx context.Context, projectIDs []string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"projectId": bson.M{"$in": projectIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks by project: %v", err)
	}
	return result.DeletedCount, nil
}
