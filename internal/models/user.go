package models

import (
	"errors"
	"strings"
	"time"
)

// User is the identity record. The credit balance lives directly on the row
// and is only ever mutated through an atomic increment in the store.
type User struct {
	ID          int64     `json:"id"`
	UID         string    `json:"uid"`
	Provider    string    `json:"provider"`
	DisplayName *string   `json:"display_name,omitempty"`
	Email       *string   `json:"email,omitempty"`
	IsAnonymous bool      `json:"is_anonymous"`
	Credits     int64     `json:"credits"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.UID) == "" {
		return errors.New("uid required")
	}
	if u.Provider == "" {
		u.Provider = "anonymous"
	}
	return nil
}
