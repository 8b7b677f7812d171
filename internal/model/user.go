// Package model defines the data structures used throughout the application.
package model

import "time"

// Principal is the identity contract the access gate relies on.
// There is exactly one kind of principal, *User, so this stays an
// interface rather than a type hierarchy.
type Principal interface {
	IsAuthenticated() bool
	IsActive() bool
	GetID() string
}

// User represents a registered account.
//
// db tags document the SQLite column names; the MongoDB store maps to its
// own document type so this struct carries no driver types.
//
// PasswordHash is the bcrypt output, never the plaintext. It is tagged
// json:"-" so it can't leak through an API response by accident.
type User struct {
	ID           string    `json:"id"        db:"id"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName"  db:"last_name"`
	Email        string    `json:"email"     db:"email"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

var _ Principal = (*User)(nil)

// IsAuthenticated is true for any loaded user; anonymous requests carry no User.
func (u *User) IsAuthenticated() bool { return u != nil && u.ID != "" }

// IsActive has no backing state yet; every stored account is active.
func (u *User) IsActive() bool { return u != nil }

func (u *User) GetID() string {
	if u == nil {
		return ""
	}
	return u.ID
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
