package domain

import "time"

// Session is the authenticated-browser view of a request. A Session value
// only exists after the underlying token passed signature, expiry, and kind
// checks during the current request; nothing is cached across requests.
type Session struct {
	UserID   string
	Role     string
	IssuedAt time.Time
}
