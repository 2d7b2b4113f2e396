package models

import "time"

// User is a reviewer account for the catalog review API.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "admin" or "reviewer"
	CreatedAt    time.Time `json:"created_at"`
}
