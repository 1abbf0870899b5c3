package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "Todo"
	StatusInProgress TaskStatus = "In Progress"
	StatusDone       TaskStatus = "Done"
)

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "HIGH"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityLow    TaskPriority = "LOW"
)

// Comment types carried on the task itself, written by the approval flow.
const (
	CommentApproval  = "APPROVAL"
	CommentRejection = "REJECTION"
)

type Attachment struct {
	Name string `json:"name" bson:"name"`
	URL  string `json:"url" bson:"url"`
	Type string `json:"type" bson:"type"`
}

type Comment struct {
	UserID    string    `json:"userId" bson:"userId"`
	UserName  string    `json:"userName" bson:"userName"`
	Text      string    `json:"text" bson:"text"`
	Type      string    `json:"type" bson:"type"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Task struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProjectID   string             `json:"projectId" bson:"projectId"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Status      TaskStatus         `json:"status" bson:"status"`
	Priority    TaskPriority       `json:"priority" bson:"priority"`
	Assignees   []string           `json:"assignees" bson:"assignees"`
	Attachments []Attachment       `json:"attachments" bson:"attachments"`
	Comments    []Comment          `json:"comments" bson:"comments"`
	IsApproved  bool               `json:"isApproved" bson:"isApproved"`
	ApprovedAt  *time.Time         `json:"approvedAt" bson:"approvedAt"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasAssignee reports whether the user is currently on the assignee set.
func (t *Task) HasAssignee(userID string) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// TaskPatch is a partial update. A nil field is absent from the patch; a
// present field replaces the task field wholesale.
type TaskPatch struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Status      *TaskStatus   `json:"status"`
	Priority    *TaskPriority `json:"priority"`
	Assignees   *[]string     `json:"assignees"`
	Attachments *[]Attachment `json:"attachments"`
}
