package model

import "time"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole maps a raw claim value to a known Role. ok is false for
// anything else.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// User represents an account as stored in the `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  DisplayName  – name shown next to reservations.
//  Role         – STUDENT, STAFF or ADMIN.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64
	Username     string
	PasswordHash string
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
}
