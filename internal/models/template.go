package models

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder text alignment values.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// PlaceholderSpec positions one text slot on a template image. X and Y are
// percentages of the image width/height, resolved against the image's pixel
// dimensions at render time so a template survives image re-uploads of a
// different size. FontSize is authored against a ~500px tall editor preview.
type PlaceholderSpec struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
	Alignment  string  `json:"alignment"`
	Color      string  `json:"color"` // #rrggbb
}

// CertificateTemplate is a background image plus the NAME and CODE placeholder
// specs for one workshop. One row per (workshop_id, image_url); saving again
// for the same pair updates in place.
type CertificateTemplate struct {
	ID         uuid.UUID       `json:"id"`
	WorkshopID uuid.UUID       `json:"workshop_id"`
	ImageURL   string          `json:"image_url"`
	Name       PlaceholderSpec `json:"name_placeholder"`
	Code       PlaceholderSpec `json:"code_placeholder"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DefaultNamePlaceholder returns the editor's initial NAME slot.
func DefaultNamePlaceholder() PlaceholderSpec {
	return PlaceholderSpec{X: 50, Y: 45, FontSize: 24, FontFamily: "Arial", Alignment: AlignCenter, Color: "#1a1a2e"}
}

// DefaultCodePlaceholder returns the editor's initial CODE slot.
func DefaultCodePlaceholder() PlaceholderSpec {
	return PlaceholderSpec{X: 50, Y: 70, FontSize: 16, FontFamily: "Courier New", Alignment: AlignCenter, Color: "#333333"}
}
