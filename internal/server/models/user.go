// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the internal account row behind an externally authenticated
// principal. Rows are created lazily on a user's first request and are
// never deleted by this service.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalSubjectId"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}
