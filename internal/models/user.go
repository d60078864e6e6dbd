package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	ProfilePic   string    `json:"profilePic,omitempty"`
	PasswordHash string    `json:"-"`
	// Online is never stored; the sidebar path fills it in from the
	// presence registry before responding.
	Online    bool      `json:"online,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
