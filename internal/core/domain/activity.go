package domain

import "time"

// ActivityAction names an audited operation.
type ActivityAction string

const (
	ActionUserRegistered        ActivityAction = "user_registered"
	ActionLogin                 ActivityAction = "login"
	ActionLogout                ActivityAction = "logout"
	ActionUserUpdated           ActivityAction = "user_updated"
	ActionUserDeactivated       ActivityAction = "user_deactivated"
	ActionInviteCodeCreated     ActivityAction = "invite_code_created"
	ActionInviteCodeDeactivated ActivityAction = "invite_code_deactivated"
)

// ActivityEntry is one append-only audit record.
type ActivityEntry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"user_id,omitempty"`
	Action    ActivityAction `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityView is an activity entry joined with the acting account.
type ActivityView struct {
	ActivityEntry
	ActorName  string `json:"user_name,omitempty"`
	ActorEmail string `json:"user_email,omitempty"`
}
