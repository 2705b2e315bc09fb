package users

import (
	"time"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CurrentLevel int       `db:"current_level" json:"current_level"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
