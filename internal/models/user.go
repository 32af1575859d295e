// internal/models/user.go
package models

import "time"

const (
	UserTypeChild  = "child"
	UserTypeParent = "parent"
)

// User is a registered account. HashedPassword never leaves the server.
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	Email          string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Username       string    `json:"username" gorm:"size:100;not null"`
	UserType       string    `json:"user_type" gorm:"size:16;not null"`
	Age            *int      `json:"age,omitempty"`
	ParentID       *string   `json:"parent_id,omitempty" gorm:"size:36;index"`
	HashedPassword string    `json:"-" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	IsActive       bool      `json:"is_active"`
}

func (User) TableName() string {
	return "users"
}

// AgeOr returns the user's age, or fallback when unknown.
func (u *User) AgeOr(fallback int) int {
	if u == nil || u.Age == nil || *u.Age <= 0 {
		return fallback
	}
	return *u.Age
}
