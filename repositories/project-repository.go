package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"teamboard/microservices/collab-service/models"
)

type ProjectRepo struct {
	collection *mongo.Collection
}

func NewProjectRepo(collection *mongo.Collection) *ProjectRepo {
	return &ProjectRepo{collection: collection}
}

// FindByID returns (nil, nil) when the project does not exist.
func (r *ProjectRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var project models.Project
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch project: %v", err)
	}
	return &project, nil
}

// FindIDsByOrg returns the hex ids of every project in the organization.
func (r *ProjectRepo) FindIDsByOrg(ctx context.Context, orgID string) ([]string, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"orgId": orgID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch org projects: %v", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var project struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&project); err != nil {
			return nil, fmt.Errorf("failed to decode project: %v", err)
		}
		ids = append(ids, project.ID.Hex())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %v", err)
	}
	return ids, nil
}

func (r *ProjectRepo) PullMemberFromOrg(ctx context.Context, orgID, userID string) (int64, error) {
	filter := bson.M{"orgId": orgID}
	update := bson.M{"$pull": bson.M{"members": userID}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to remove member from projects: %v", err)
	}
	return result.ModifiedCount, nil
}

func (r *ProjectRepo) DeleteByOrg(ctx context.Context, orgID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"orgId": orgID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete org projects: %v", err)
	}
	return result.DeletedCount, nil
}
