package models

import (
	"time"
)

// User represents a user account in the system
type User struct {
	ID             string    `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"` // Never expose in JSON
	Exp            int       `json:"exp" db:"exp"`
	Level          int       `json:"level" db:"level"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ExpPerLevel is the experience required to advance one level
const ExpPerLevel = 100

// LevelForExp returns the level reached with the given experience
func LevelForExp(exp int) int {
	if exp < 0 {
		return 1
	}
	return exp/ExpPerLevel + 1
}

// LoginRequest represents authentication request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents account creation payload
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginResponse represents authentication response with JWT token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// TokenResponse carries a refreshed JWT
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserInfo represents safe user information (without sensitive data)
type UserInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Exp       int       `json:"exp"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// ToUserInfo converts User to UserInfo (safe for API responses)
func (u *User) ToUserInfo() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Exp:       u.Exp,
		Level:     u.Level,
		CreatedAt: u.CreatedAt,
	}
}
