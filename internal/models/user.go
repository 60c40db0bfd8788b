package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of roles the platform recognises.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole maps a raw claims role onto the closed enumeration. Anything
// unrecognised fails closed to student, the least privileged role.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleInstructor:
		return RoleInstructor
	case RoleAdmin:
		return RoleAdmin
	case RoleStudent:
		return RoleStudent
	default:
		return RoleStudent
	}
}

// IsStaff reports whether the role may grade and inspect submissions.
func (r Role) IsStaff() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// User represents a registered platform user.
type User struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FullName  string `db:"full_name" json:"fullName"`
	Role      Role   `db:"role" json:"role"`
	Active    bool   `db:"active" json:"active"`
}

// JWTClaims represents the access-token payload verified upstream.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a Principal with a closed role.
func (c *JWTClaims) Principal() Principal {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return Principal{
		ID:    id,
		Email: c.Email,
		Name:  c.Name,
		Role:  ParseRole(c.Role),
	}
}
