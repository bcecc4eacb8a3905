package domain

import "time"

// UserRole distinguishes regular viewers from creators and admins
type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleCreator UserRole = "creator"
	RoleAdmin   UserRole = "admin"
)

// User represents a registered viewer with a points balance
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Points        int        `json:"points"`
	Role          UserRole   `json:"role"`
	Tier          string     `json:"subscription_tier"`
	IsActive      bool       `json:"is_active"`
	TotalSessions int        `json:"total_sessions"`
	NextRegenAt   *time.Time `json:"points_next_regen,omitempty"`
	LastLoginAt   *time.Time `json:"last_login,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CanAfford reports whether the user has at least amount points
func (u *User) CanAfford(amount int) bool {
	return u.Points >= amount
}

// RegenDue reports whether the user's next regeneration time has arrived
func (u *User) RegenDue(now time.Time) bool {
	return u.NextRegenAt == nil || !u.NextRegenAt.After(now)
}
