package services

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/realtime"
)

type membershipFixture struct {
	service     *MembershipService
	tasks       *fakeTaskStore
	projects    *fakeProjectStore
	directory   *fakeDirectory
	broadcaster *recordingBroadcaster
}

func newMembershipFixture() *membershipFixture {
	tasks := newFakeTaskStore()
	projects := newFakeProjectStore()
	directory := newFakeDirectory()
	broadcaster := &recordingBroadcaster{}
	return &membershipFixture{
		service:     NewMembershipService(tasks, projects, directory, broadcaster),
		tasks:       tasks,
		projects:    projects,
		directory:   directory,
		broadcaster: broadcaster,
	}
}

func (f *membershipFixture) seedProject(t *testing.T, orgID string, members ...string) primitive.ObjectID {
	t.Helper()
	id := primitive.NewObjectID()
	f.projects.projects[id] = models.Project{ID: id, OrgID: orgID, OwnerID: "owner-1", Members: members}
	return id
}

func (f *membershipFixture) seedTask(t *testing.T, projectID string, assignees ...string) primitive.ObjectID {
	t.Helper()
	task := models.Task{
		ID: primitive.NewObjectID(), ProjectID: projectID, Title: "T",
		Status: models.StatusTodo, Priority: models.PriorityMedium, Assignees: assignees,
	}
	if err := f.tasks.Insert(context.Background(), &task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task.ID
}

func TestMemberRemoved(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades through projects, tasks and role", func(t *testing.T) {
		f := newMembershipFixture()
		projectID := f.seedProject(t, "org-1", "u1", "u2")
		taskID := f.seedTask(t, projectID.Hex(), "u1", "u2")
		otherOrgProject := f.seedProject(t, "org-2", "u1")
		otherTaskID := f.seedTask(t, otherOrgProject.Hex(), "u1")

		if err := f.service.MemberRemoved(ctx, "org-1", "u1"); err != nil {
			t.Fatalf("MemberRemoved: %v", err)
		}

		project, _ := f.projects.FindByID(ctx, projectID)
		for _, member := range project.Members {
			if member == "u1" {
				t.Errorf("u1 still in project members: %v", project.Members)
			}
		}

		task, _ := f.tasks.get(taskID)
		if task.HasAssignee("u1") {
			t.Errorf("u1 still assigned in org-1: %v", task.Assignees)
		}
		if !task.HasAssignee("u2") {
			t.Errorf("other assignees must survive: %v", task.Assignees)
		}

		otherTask, _ := f.tasks.get(otherTaskID)
		if !otherTask.HasAssignee("u1") {
			t.Errorf("assignments outside the org must be untouched")
		}

		if len(f.directory.downgraded) != 1 || f.directory.downgraded[0] != "u1" {
			t.Errorf("expected role downgrade for u1, got %v", f.directory.downgraded)
		}
		if !f.broadcaster.has(realtime.UserChannel("u1"), realtime.EventSessionRefresh) {
			t.Errorf("expected session:refresh for the removed user")
		}
		if !f.broadcaster.has(realtime.OrgChannel("org-1"), realtime.EventTeamUpdate) {
			t.Errorf("expected team:update for the org")
		}
	})

	t.Run("requires org and user ids", func(t *testing.T) {
		f := newMembershipFixture()
		if err := f.service.MemberRemoved(ctx, "", "u1"); KindOf(err) != KindValidation {
			t.Errorf("expected validation error, got %v", err)
		}
		if err := f.service.MemberRemoved(ctx, "org-1", ""); KindOf(err) != KindValidation {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestOrganizationDeleted(t *testing.T) {
	ctx := context.Background()
	f := newMembershipFixture()

	projectID := f.seedProject(t, "org-1", "u1")
	taskID := f.seedTask(t, projectID.Hex(), "u1")
	survivorProject := f.seedProject(t, "org-2", "u2")
	survivorTask := f.seedTask(t, survivorProject.Hex(), "u2")

	if err := f.service.OrganizationDeleted(ctx, "org-1"); err != nil {
		t.Fatalf("OrganizationDeleted: %v", err)
	}

	if _, ok := f.tasks.get(taskID); ok {
		t.Errorf("org-1 task must be deleted")
	}
	if project, _ := f.projects.FindByID(ctx, projectID); project != nil {
		t.Errorf("org-1 project must be deleted")
	}
	if _, ok := f.tasks.get(survivorTask); !ok {
		t.Errorf("org-2 task must survive")
	}
	if project, _ := f.projects.FindByID(ctx, survivorProject); project == nil {
		t.Errorf("org-2 project must survive")
	}
	if !f.broadcaster.has(realtime.OrgChannel("org-1"), realtime.EventTeamUpdate) {
		t.Errorf("expected team:update broadcast")
	}
}

func TestStatusChanged(t *testing.T) {
	ctx := context.Background()
	f := newMembershipFixture()

	if err := f.service.StatusChanged(ctx, "org-1", "u1", models.AvailabilityOnLeave, "Ana"); err != nil {
		t.Fatalf("StatusChanged: %v", err)
	}
	if !f.broadcaster.has(realtime.OrgChannel("org-1"), realtime.EventUserStatusChanged) {
		t.Fatalf("expected user:status_changed on the org channel")
	}

	payload, ok := f.broadcaster.events[0].Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("payload type %T", f.broadcaster.events[0].Payload)
	}
	if payload["userId"] != "u1" || payload["status"] != models.AvailabilityOnLeave {
		t.Errorf("payload = %v", payload)
	}
}

func TestMemberChanged(t *testing.T) {
	f := newMembershipFixture()
	if err := f.service.MemberChanged(context.Background(), "org-1"); err != nil {
		t.Fatalf("MemberChanged: %v", err)
	}
	if !f.broadcaster.has(realtime.OrgChannel("org-1"), realtime.EventTeamUpdate) {
		t.Fatalf("expected team:update broadcast")
	}
}
