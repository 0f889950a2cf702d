package domain

import (
	"strings"
	"time"
)

// Role is the normalized access level of a console user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDistributor Role = "distributor"
	RoleUser        Role = "user"
)

// RoleFromString normalizes a free-text classification into a Role.
// Matching is case-insensitive; anything unrecognized maps to RoleUser.
func RoleFromString(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "distributor":
		return RoleDistributor
	default:
		return RoleUser
	}
}

// Profile is the application-level record for an identity: role, credit
// balance, license expiry, and the two-factor requirement flag.
//
// Historical rows are keyed inconsistently: newer rows carry the identity
// provider id in AuthUserID, older rows reuse it as their primary ID. The
// resolver tries both keys; callers never branch on which one matched.
type Profile struct {
	ID               string    `json:"id"`
	AuthUserID       string    `json:"auth_user_id,omitempty"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	Classification   string    `json:"-"`
	Role             Role      `json:"role"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Credits          int64     `json:"credits"`
	ExpiryTime       time.Time `json:"expiry_time,omitempty"`
	DistributorID    string    `json:"distributor_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
