package models

import (
	"time"

	"github.com/google/uuid"
)

// Certificate generation status.
const (
	StatusPending   = "PENDING"
	StatusGenerated = "GENERATED"
	StatusFailed    = "FAILED"
)

// Certificate email delivery status.
const (
	EmailNotSent = "NOT_SENT"
	EmailSent    = "SENT"
	EmailFailed  = "FAILED"
)

// Certificate is one issued record binding a recipient to a workshop.
// Status moves PENDING -> GENERATED (or FAILED) via the render pipeline only;
// EmailStatus moves only via the dispatcher and only once Status is GENERATED.
type Certificate struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"` // e.g. ACM-2026-AB12CD34, unique
	RecipientName string     `json:"recipient_name"`
	Email         string     `json:"email"`
	WorkshopID    uuid.UUID  `json:"workshop_id"`
	WorkshopName  string     `json:"workshop_name"`
	IssueDate     string     `json:"issue_date"`
	Skills        []string   `json:"skills"` // insertion order preserved, duplicates allowed
	Instructor    string     `json:"instructor"`
	IsVerified    bool       `json:"is_verified"`
	Status        string     `json:"status"`
	FilePath      string     `json:"file_path,omitempty"` // relative media path, set only when GENERATED
	EmailStatus   string     `json:"email_status"`
	EmailSentAt   *time.Time `json:"email_sent_at,omitempty"`
	EmailError    string     `json:"email_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PublicCertificate is the verification projection. It never carries the
// recipient's email address or internal ID.
type PublicCertificate struct {
	Code          string   `json:"code"`
	RecipientName string   `json:"recipient_name"`
	WorkshopName  string   `json:"workshop_name"`
	IssueDate     string   `json:"issue_date"`
	Skills        []string `json:"skills"`
	Instructor    string   `json:"instructor"`
	IsVerified    bool     `json:"is_verified"`
	CertificateURL string  `json:"certificate_url,omitempty"`
}

// Public returns the verification projection of c. imageURL is the serving URL
// of the generated file, or empty when the certificate has not been generated.
func (c *Certificate) Public(imageURL string) PublicCertificate {
	return PublicCertificate{
		Code:           c.Code,
		RecipientName:  c.RecipientName,
		WorkshopName:   c.WorkshopName,
		IssueDate:      c.IssueDate,
		Skills:         c.Skills,
		Instructor:     c.Instructor,
		IsVerified:     c.IsVerified,
		CertificateURL: imageURL,
	}
}
