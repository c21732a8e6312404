package models

import (
	"time"

	"github.com/google/uuid"
)

// Workshop groups certificates and templates under one event.
type Workshop struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Description string    `json:"description,omitempty"`
	Level       string    `json:"level"` // Beginner, Intermediate, Advanced
	Instructor  string    `json:"instructor"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
