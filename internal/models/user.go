package models

import (
	"time"
)

type UserType string

const (
	UserTypeAdmin  UserType = "admin"
	UserTypeSystem UserType = "system"
)

func (t UserType) Valid() bool {
	return t == UserTypeAdmin || t == UserTypeSystem
}

// User is a portal-wide account. Admin users manage everything; system users
// see visible dashboards and the ones that list them.
type User struct {
	ID        string    `firestore:"id" json:"id"`
	Email     string    `firestore:"email" json:"email"`
	Password  string    `firestore:"password" json:"password,omitempty"`
	Name      string    `firestore:"name" json:"name"`
	Type      UserType  `firestore:"type" json:"type"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Redacted returns a copy without the password hash.
func (u *User) Redacted() *User {
	out := *u
	out.Password = ""
	return &out
}
