package model

import (
	"time"
)

type User struct {
	ID         int64     `json:"id" db:"id"`
	Handle     string    `json:"handle" db:"handle"`
	Email      string    `json:"email" db:"email"`
	ReferredBy *string   `json:"referred_by,omitempty" db:"referred_by"` // referrer's handle
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
