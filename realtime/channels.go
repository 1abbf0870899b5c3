package realtime

import "fmt"

// Event names pushed to live clients.
const (
	EventTaskCreated       = "task:created"
	EventTaskUpdated       = "task:updated"
	EventTaskDeleted       = "task:deleted"
	EventTaskActivity      = "task:activity"
	EventNotificationNew   = "notification:new"
	EventDashboardUpdate   = "dashboard:update"
	EventTeamUpdate        = "team:update"
	EventSessionRefresh    = "session:refresh"
	EventUserStatusChanged = "user:status_changed"
)

// ProjectChannel is joined by every client currently viewing the project board.
func ProjectChannel(projectID string) string {
	return fmt.Sprintf("project_%s", projectID)
}

// UserChannel is the user's private channel.
func UserChannel(userID string) string {
	return fmt.Sprintf("user_%s", userID)
}

// OrgChannel is shared by all members of an organization.
func OrgChannel(orgID string) string {
	return fmt.Sprintf("org_%s", orgID)
}
