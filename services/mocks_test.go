package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/queue"
)

// In-memory fakes standing in for the Mongo, Cassandra and HTTP-backed
// implementations.

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[primitive.ObjectID]models.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[primitive.ObjectID]models.Task)}
}

func (f *fakeTaskStore) Insert(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	copy := task
	return &copy, nil
}

func (f *fakeTaskStore) FindByProject(_ context.Context, projectID, assignee string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, task := range f.tasks {
		if task.ProjectID != projectID {
			continue
		}
		if assignee != "" && !task.HasAssignee(assignee) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeTaskStore) FindByAssignee(_ context.Context, userID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, task := range f.tasks {
		if task.HasAssignee(userID) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) Replace(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return fmt.Errorf("task %s not found", task.ID.Hex())
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return fmt.Errorf("task %s not found", id.Hex())
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) DeleteApproved(_ context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || !task.IsApproved {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

func (f *fakeTaskStore) AddAssignee(_ context.Context, id primitive.ObjectID, userID string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	if !task.HasAssignee(userID) {
		task.Assignees = append(task.Assignees, userID)
	}
	f.tasks[id] = task
	copy := task
	return &copy, nil
}

func (f *fakeTaskStore) FindApprovedBefore(_ context.Context, cutoff time.Time) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, task := range f.tasks {
		if task.IsApproved && task.ApprovedAt != nil && !task.ApprovedAt.After(cutoff) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) PullAssigneeFromProjects(_ context.Context, projectIDs []string, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}

	var modified int64
	for id, task := range f.tasks {
		if !wanted[task.ProjectID] || !task.HasAssignee(userID) {
			continue
		}
		var kept []string
		for _, assignee := range task.Assignees {
			if assignee != userID {
				kept = append(kept, assignee)
			}
		}
		task.Assignees = kept
		f.tasks[id] = task
		modified++
	}
	return modified, nil
}

func (f *fakeTaskStore) DeleteByProjects(_ context.Context, projectIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}

	var deleted int64
	for id, task := range f.tasks {
		if wanted[task.ProjectID] {
			delete(f.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTaskStore) get(id primitive.ObjectID) (models.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	return task, ok
}

type fakeActivityStore struct {
	mu         sync.Mutex
	activities []models.Activity
	insertErr  error
}

func (f *fakeActivityStore) Insert(_ context.Context, activity *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	activity.ID = primitive.NewObjectID()
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *fakeActivityStore) FindByTask(_ context.Context, taskID primitive.ObjectID) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Activity
	for _, activity := range f.activities {
		if activity.TaskID == taskID {
			out = append(out, activity)
		}
	}
	return out, nil
}

func (f *fakeActivityStore) DeleteByTask(_ context.Context, taskID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Activity
	var deleted int64
	for _, activity := range f.activities {
		if activity.TaskID == taskID {
			deleted++
			continue
		}
		kept = append(kept, activity)
	}
	f.activities = kept
	return deleted, nil
}

func (f *fakeActivityStore) RetypeUploadByURL(_ context.Context, fileURL, content string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var modified int64
	for i := range f.activities {
		if f.activities[i].Type == models.ActivityUpload && f.activities[i].Metadata.FileURL == fileURL {
			f.activities[i].Type = models.ActivityAttachmentRemoved
			f.activities[i].Content = content
			f.activities[i].Metadata.FileURL = ""
			modified++
		}
	}
	return modified, nil
}

type fakeProjectStore struct {
	projects map[primitive.ObjectID]models.Project
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{projects: make(map[primitive.ObjectID]models.Project)}
}

func (f *fakeProjectStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	copy := project
	return &copy, nil
}

func (f *fakeProjectStore) FindIDsByOrg(_ context.Context, orgID string) ([]string, error) {
	var out []string
	for id, project := range f.projects {
		if project.OrgID == orgID {
			out = append(out, id.Hex())
		}
	}
	return out, nil
}

func (f *fakeProjectStore) PullMemberFromOrg(_ context.Context, orgID, userID string) (int64, error) {
	var modified int64
	for id, project := range f.projects {
		if project.OrgID != orgID {
			continue
		}
		var kept []string
		removed := false
		for _, member := range project.Members {
			if member == userID {
				removed = true
				continue
			}
			kept = append(kept, member)
		}
		if removed {
			project.Members = kept
			f.projects[id] = project
			modified++
		}
	}
	return modified, nil
}

func (f *fakeProjectStore) DeleteByOrg(_ context.Context, orgID string) (int64, error) {
	var deleted int64
	for id, project := range f.projects {
		if project.OrgID == orgID {
			delete(f.projects, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	nextID        int
	insertErr     error
	markErr       error
}

func (f *fakeNotificationStore) assignID() string {
	f.nextID++
	return fmt.Sprintf("n-%d", f.nextID)
}

func (f *fakeNotificationStore) Insert(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	n.ID = f.assignID()
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeNotificationStore) InsertMany(_ context.Context, ns []models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for i := range ns {
		ns[i].ID = f.assignID()
		f.notifications = append(f.notifications, ns[i])
	}
	return nil
}

func (f *fakeNotificationStore) FindByID(_ context.Context, id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id {
			copy := n
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeNotificationStore) FindByUser(_ context.Context, userID string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkRead(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for i := range f.notifications {
		if f.notifications[i].ID == id && f.notifications[i].UserID == userID {
			f.notifications[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationStore) Delete(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == n.ID {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("notification %s not found", n.ID)
}

func (f *fakeNotificationStore) forUser(userID string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeDirectory struct {
	members    map[string]models.Member
	lookupErr  error
	downgraded []string
}

func newFakeDirectory(members ...models.Member) *fakeDirectory {
	d := &fakeDirectory{members: make(map[string]models.Member)}
	for _, member := range members {
		d.members[member.ID] = member
	}
	return d
}

func (f *fakeDirectory) FindByIDs(_ context.Context, ids []string) ([]models.Member, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []models.Member
	for _, id := range ids {
		if member, ok := f.members[id]; ok {
			out = append(out, member)
		}
	}
	return out, nil
}

func (f *fakeDirectory) FindOne(_ context.Context, id string) (*models.Member, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	member, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	return &member, nil
}

func (f *fakeDirectory) DowngradeRole(_ context.Context, id string) error {
	f.downgraded = append(f.downgraded, id)
	return nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeObjectStore) DeleteByURL(_ context.Context, fileURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fileURL)
	return nil
}

func (f *fakeObjectStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type sentEmail struct {
	To      string
	Subject string
}

type fakeMailer struct {
	sent []sentEmail
}

func (f *fakeMailer) Send(to, subject, _ string) error {
	f.sent = append(f.sent, sentEmail{To: to, Subject: subject})
	return nil
}

type broadcastEvent struct {
	Channel string
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Emit(channel, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{Channel: channel, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) has(channel, event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.Channel == channel && e.Event == event {
			return true
		}
	}
	return false
}

type memoryQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *memoryQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memoryQueue) Dequeue(_ context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &job, nil
}

func (q *memoryQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
