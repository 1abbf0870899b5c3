package services

import (
	"context"
	"fmt"
	"time"

	"teamboard/microservices/collab-service/logging"
	"teamboard/microservices/collab-service/realtime"
)

// MembershipService consumes externally-sourced organization membership
// events and cascades them into project member lists and task assignee sets.
// These are privileged bulk mutations: no activity entries are written, only
// refresh signals are broadcast.
type MembershipService struct {
	tasks       TaskStore
	projects    ProjectStore
	directory   Directory
	broadcaster realtime.Broadcaster
}

func NewMembershipService(tasks TaskStore, projects ProjectStore, directory Directory, broadcaster realtime.Broadcaster) *MembershipService {
	return &MembershipService{
		tasks:       tasks,
		projects:    projects,
		directory:   directory,
		broadcaster: broadcaster,
	}
}

// MemberRemoved pulls the user out of every project and task assignment of
// the organization and downgrades their stored role to the default.
func (s *MembershipService) MemberRemoved(ctx context.Context, orgID, userID string) error {
	if orgID == "" || userID == "" {
		return Validation("orgId and userId are required")
	}

	projectsModified, err := s.projects.PullMemberFromOrg(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member from projects: %w", err)
	}

	projectIDs, err := s.projects.FindIDsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list org projects: %w", err)
	}

	var tasksModified int64
	if len(projectIDs) > 0 {
		tasksModified, err = s.tasks.PullAssigneeFromProjects(ctx, projectIDs, userID)
		if err != nil {
			return fmt.Errorf("failed to remove member from tasks: %w", err)
		}
	}

	// Role downgrade is best effort; the session:refresh push makes the
	// client re-pull its claims either way.
	if err := s.directory.DowngradeRole(ctx, userID); err != nil {
		logging.Logger.Warnf("Event ID: ROLE_DOWNGRADE_SKIPPED, Description: Could not downgrade role for %s: %v", userID, err)
	}

	s.broadcaster.Emit(realtime.UserChannel(userID), realtime.EventSessionRefresh, nil)
	s.broadcaster.Emit(realtime.OrgChannel(orgID), realtime.EventTeamUpdate, nil)

	logging.Logger.Infof("Event ID: MEMBER_REMOVED, Description: Removed user %s from %d projects and %d tasks in org %s",
		userID, projectsModified, tasksModified, orgID)
	return nil
}

// MemberChanged only signals viewers that the team roster changed.
func (s *MembershipService) MemberChanged(ctx context.Context, orgID string) error {
	if orgID == "" {
		return Validation("orgId is required")
	}
	s.broadcaster.Emit(realtime.OrgChannel(orgID), realtime.EventTeamUpdate, nil)
	return nil
}

// OrganizationDeleted deletes every task of every project in the
// organization, then the projects themselves.
func (s *MembershipService) OrganizationDeleted(ctx context.Context, orgID string) error {
	if orgID == "" {
		return Validation("orgId is required")
	}

	projectIDs, err := s.projects.FindIDsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list org projects: %w", err)
	}

	var tasksDeleted int64
	if len(projectIDs) > 0 {
		tasksDeleted, err = s.tasks.DeleteByProjects(ctx, projectIDs)
		if err != nil {
			return fmt.Errorf("failed to delete org tasks: %w", err)
		}
	}

	projectsDeleted, err := s.projects.DeleteByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete org projects: %w", err)
	}

	s.broadcaster.Emit(realtime.OrgChannel(orgID), realtime.EventTeamUpdate, nil)

	logging.Logger.Infof("Event ID: ORG_DELETED, Description: Deleted %d projects and %d tasks for org %s",
		projectsDeleted, tasksDeleted, orgID)
	return nil
}

// StatusChanged re-broadcasts a user availability change to the organization.
func (s *MembershipService) StatusChanged(ctx context.Context, orgID, userID, status, displayName string) error {
	if orgID == "" || userID == "" {
		return Validation("orgId and userId are required")
	}

	s.broadcaster.Emit(realtime.OrgChannel(orgID), realtime.EventUserStatusChanged, map[string]interface{}{
		"userId":      userID,
		"status":      status,
		"displayName": displayName,
		"timestamp":   time.Now(),
	})
	return nil
}
