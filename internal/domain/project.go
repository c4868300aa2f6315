package domain

import "time"

// Project groups tasks. It never takes part in authorization decisions.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
