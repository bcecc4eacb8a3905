package dto

import "time"

// SignupRequest represents a new user registration
type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse is returned after signup, login or refresh
type AuthResponse struct {
	User         *UserResponse `json:"user"`
	Token        string        `json:"token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
}

// UserResponse represents a user in API responses (no credentials)
type UserResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Points        int        `json:"points"`
	Role          string     `json:"role"`
	Tier          string     `json:"subscription_tier"`
	TotalSessions int        `json:"total_sessions"`
	NextRegenAt   *time.Time `json:"points_next_regen,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
