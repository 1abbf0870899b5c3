package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ActivityType string

const (
	ActivityComment           ActivityType = "COMMENT"
	ActivityUpload            ActivityType = "UPLOAD"
	ActivityStatusChange      ActivityType = "STATUS_CHANGE"
	ActivityPriorityChange    ActivityType = "PRIORITY_CHANGE"
	ActivityAttachmentRemoved ActivityType = "ATTACHMENT_REMOVED"
)

type ActivityMetadata struct {
	FileURL  string `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty" bson:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty" bson:"fileType,omitempty"`
}

// Activity is an append-only record of one task-affecting event. It references
// its task by id; the task holds no back-reference collection.
type Activity struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID    primitive.ObjectID `json:"taskId" bson:"taskId"`
	UserID    string             `json:"userId" bson:"userId"`
	UserName  string             `json:"userName" bson:"userName"`
	UserPhoto string             `json:"userPhoto,omitempty" bson:"userPhoto,omitempty"`
	Type      ActivityType       `json:"type" bson:"type"`
	Content   string             `json:"content" bson:"content"`
	Metadata  ActivityMetadata   `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
