package models

import "time"

// Session is a login session issued by the auth service.
type Session struct {
	UserID  string    `db:"user_id"`
	Expires time.Time `db:"expires"`
}
