package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"teamboard/microservices/collab-service/models"
	"teamboard/microservices/collab-service/realtime"
)

func TestNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and pushes", func(t *testing.T) {
		store := &fakeNotificationStore{}
		broadcaster := &recordingBroadcaster{}
		ns := NewNotificationService(store, newFakeDirectory(), &fakeMailer{}, broadcaster)

		n, err := ns.Notify(ctx, "u1", "hello", models.NotificationInfo, "proj-1", models.NotificationMetadata{})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if n.ID == "" {
			t.Errorf("stored notification must carry an id")
		}
		if n.Read {
			t.Errorf("new notification must be unread")
		}
		if got := store.forUser("u1"); len(got) != 1 {
			t.Fatalf("expected 1 stored notification, got %d", len(got))
		}
		if !broadcaster.has(realtime.UserChannel("u1"), realtime.EventNotificationNew) {
			t.Errorf("expected push to the recipient's channel")
		}
	})

	t.Run("rejects empty recipient or message", func(t *testing.T) {
		ns := NewNotificationService(&fakeNotificationStore{}, newFakeDirectory(), &fakeMailer{}, &recordingBroadcaster{})

		if _, err := ns.Notify(ctx, "", "hello", models.NotificationInfo, "", models.NotificationMetadata{}); KindOf(err) != KindValidation {
			t.Errorf("expected validation error for empty user, got %v", err)
		}
		if _, err := ns.Notify(ctx, "u1", "", models.NotificationInfo, "", models.NotificationMetadata{}); KindOf(err) != KindValidation {
			t.Errorf("expected validation error for empty message, got %v", err)
		}
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	ns := NewNotificationService(store, newFakeDirectory(), &fakeMailer{}, &recordingBroadcaster{})

	n, err := ns.Notify(ctx, "u1", "hello", models.NotificationInfo, "", models.NotificationMetadata{})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	t.Run("recipient marks read", func(t *testing.T) {
		if err := ns.MarkRead(ctx, "u1", n.ID); err != nil {
			t.Fatalf("MarkRead: %v", err)
		}
		got := store.forUser("u1")
		if len(got) != 1 || !got[0].Read {
			t.Fatalf("notification should be read, got %v", got)
		}
	})

	t.Run("someone else's notification reads as missing", func(t *testing.T) {
		if err := ns.MarkRead(ctx, "u2", n.ID); KindOf(err) != KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		if err := ns.MarkRead(ctx, "u1", "n-999"); KindOf(err) != KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("store failure surfaces as internal", func(t *testing.T) {
		broken := &fakeNotificationStore{markErr: errors.New("cassandra: no hosts available")}
		ns := NewNotificationService(broken, newFakeDirectory(), &fakeMailer{}, &recordingBroadcaster{})

		err := ns.MarkRead(ctx, "u1", n.ID)
		if err == nil {
			t.Fatal("expected an error when the store fails")
		}
		if KindOf(err) != KindInternal {
			t.Fatalf("kind = %v, want KindInternal", KindOf(err))
		}
	})
}

func TestHandleTaskAssigned(t *testing.T) {
	ctx := context.Background()

	marshal := func(t *testing.T, job TaskAssignedJob) json.RawMessage {
		t.Helper()
		payload, err := json.Marshal(job)
		if err != nil {
			t.Fatalf("marshal job: %v", err)
		}
		return payload
	}

	t.Run("notifies and mails every recipient", func(t *testing.T) {
		store := &fakeNotificationStore{}
		mailer := &fakeMailer{}
		broadcaster := &recordingBroadcaster{}
		directory := newFakeDirectory(
			models.Member{ID: "u1", DisplayName: "Ana", Email: "ana@example.com"},
			models.Member{ID: "u2", DisplayName: "Marko", Email: "marko@example.com"},
		)
		ns := NewNotificationService(store, directory, mailer, broadcaster)

		payload := marshal(t, TaskAssignedJob{
			TaskID: "t1", ProjectID: "proj-1", Title: "Deploy v2",
			Priority: models.PriorityHigh, CreatorID: "admin-1",
			Assignees: []string{"u1", "u2"},
		})
		if err := ns.HandleTaskAssigned(ctx, payload); err != nil {
			t.Fatalf("HandleTaskAssigned: %v", err)
		}

		for _, userID := range []string{"u1", "u2"} {
			got := store.forUser(userID)
			if len(got) != 1 {
				t.Fatalf("expected 1 notification for %s, got %d", userID, len(got))
			}
			if got[0].Type != models.NotificationTaskAssign {
				t.Errorf("type = %q, want TASK_ASSIGN", got[0].Type)
			}
			if !strings.Contains(got[0].Message, "Deploy v2") {
				t.Errorf("message should name the task, got %q", got[0].Message)
			}
		}
		if len(mailer.sent) != 2 {
			t.Fatalf("expected 2 emails, got %d", len(mailer.sent))
		}
		if !strings.Contains(mailer.sent[0].Subject, "Deploy v2") {
			t.Errorf("email subject = %q", mailer.sent[0].Subject)
		}
	})

	t.Run("recipient without email is skipped but still notified", func(t *testing.T) {
		store := &fakeNotificationStore{}
		mailer := &fakeMailer{}
		directory := newFakeDirectory(models.Member{ID: "u1", DisplayName: "Ana"})
		ns := NewNotificationService(store, directory, mailer, &recordingBroadcaster{})

		payload := marshal(t, TaskAssignedJob{TaskID: "t1", Title: "T", Assignees: []string{"u1"}})
		if err := ns.HandleTaskAssigned(ctx, payload); err != nil {
			t.Fatalf("HandleTaskAssigned: %v", err)
		}
		if len(store.forUser("u1")) != 1 {
			t.Errorf("notification must be stored even without an email address")
		}
		if len(mailer.sent) != 0 {
			t.Errorf("no email expected, got %d", len(mailer.sent))
		}
	})

	t.Run("malformed payload is dropped without error", func(t *testing.T) {
		ns := NewNotificationService(&fakeNotificationStore{}, newFakeDirectory(), &fakeMailer{}, &recordingBroadcaster{})
		if err := ns.HandleTaskAssigned(ctx, json.RawMessage(`{broken`)); err != nil {
			t.Fatalf("bad payload must not be retried, got %v", err)
		}
	})

	t.Run("persistence failure is returned for retry", func(t *testing.T) {
		store := &fakeNotificationStore{insertErr: errors.New("cassandra down")}
		ns := NewNotificationService(store, newFakeDirectory(), &fakeMailer{}, &recordingBroadcaster{})

		payload := marshal(t, TaskAssignedJob{TaskID: "t1", Title: "T", Assignees: []string{"u1"}})
		if err := ns.HandleTaskAssigned(ctx, payload); err == nil {
			t.Fatal("expected error when the batch insert fails")
		}
	})

	t.Run("directory failure does not fail the job", func(t *testing.T) {
		store := &fakeNotificationStore{}
		directory := newFakeDirectory()
		directory.lookupErr = errors.New("users-service unavailable")
		ns := NewNotificationService(store, directory, &fakeMailer{}, &recordingBroadcaster{})

		payload := marshal(t, TaskAssignedJob{TaskID: "t1", Title: "T", Assignees: []string{"u1"}})
		if err := ns.HandleTaskAssigned(ctx, payload); err != nil {
			t.Fatalf("directory failures must only skip emails, got %v", err)
		}
		if len(store.forUser("u1")) != 1 {
			t.Errorf("notification must still be stored")
		}
	})
}
