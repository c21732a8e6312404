package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a back-office account allowed to mutate the pipeline.
type Admin struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
