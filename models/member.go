package models

// Availability values reported by the users directory.
const (
	AvailabilityActive  = "active"
	AvailabilityOnLeave = "on_leave"
)

// Member is the read-only view of a user served by the users directory.
type Member struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Photo        string `json:"photo"`
	Availability string `json:"availability"`
}
