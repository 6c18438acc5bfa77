package domain

import "time"

// AuditLog represents one recorded security-relevant event, such as an
// access-key regeneration or a failed tracking authentication.
type AuditLog struct {
	ID        string
	Actor     string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
