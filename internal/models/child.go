package models

import "time"

// Child represents a child profile whose challenges are tracked
type Child struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AgeRange    string    `json:"age_range"` // e.g. "7-9"; selects the eligible challenge catalog
	ParentEmail string    `json:"parent_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
