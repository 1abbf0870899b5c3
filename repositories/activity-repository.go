package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"teamboard/microservices/collab-service/models"
)

type ActivityRepo struct {
	collection *mongo.Collection
}

func NewActivityRepo(collection *mongo.Collection) *ActivityRepo {
	return &ActivityRepo{collection: collection}
}

func (r *ActivityRepo) Insert(ctx context.Context, activity *models.Activity) error {
	result, err := r.collection.InsertOne(ctx, activity)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %v", err)
	}
	activity.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// FindByTask returns the task's activities newest first.
func (r *ActivityRepo) FindByTask(ctx context.Context, taskID primitive.ObjectID) ([]models.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"taskId": taskID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %v", err)
	}
	defer cursor.Close(ctx)

	var activities []models.Activity
	if err := cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %v", err)
	}
	return activities, nil
}

func (r *ActivityRepo) DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"taskId": taskID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete activities: %v", err)
	}
	return result.DeletedCount, nil
}

// RetypeUploadByURL rewrites every UPLOAD activity holding the file URL to
// ATTACHMENT_REMOVED, clearing the URL so clients stop loading it. The
// activity row itself stays: history is relabeled, never erased.
func (r *ActivityRepo) RetypeUploadByURL(ctx context.Context, fileURL, content string) (int64, error) {
	filter := bson.M{"metadata.fileUrl": fileURL, "type": models.ActivityUpload}
	update := bson.M{"$set": bson.M{
		"type":             models.ActivityAttachmentRemoved,
		"content":          content,
		"metadata.fileUrl": "",
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to retype upload activity: %v", err)
	}
	return result.ModifiedCount, nil
}
