package certificates

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
)

type ingestStore interface {
	codeChecker
	Create(ctx context.Context, c *models.Certificate) error
}

// RowError describes why a single CSV row was rejected. Other rows are not
// affected.
type RowError struct {
	Row    int    `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// IngestResult is the outcome of a CSV batch.
type IngestResult struct {
	Created []models.Certificate `json:"created"`
	Errors  []RowError           `json:"errors"`
}

// IngestDefaults fill columns the CSV leaves blank.
type IngestDefaults struct {
	IssueDate  string
	Instructor string
}

// Ingestor turns a recipients CSV into PENDING certificates for a workshop.
type Ingestor struct {
	store      ingestStore
	codePrefix string
	logger     *zap.Logger
}

// NewIngestor creates a CSV batch ingestor.
func NewIngestor(store ingestStore, codePrefix string, logger *zap.Logger) *Ingestor {
	return &Ingestor{store: store, codePrefix: codePrefix, logger: logger}
}

// Ingest reads the CSV and creates one certificate per valid row. A missing
// name or email header fails the whole batch; anything wrong with an
// individual row is reported in IngestResult.Errors and skipped.
func (in *Ingestor) Ingest(ctx context.Context, r io.Reader, workshop *models.Workshop, defaults IngestDefaults) (*IngestResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, okName := columnIndex(cols, "name", "recipient_name", "recipient")
	emailIdx, okEmail := columnIndex(cols, "email", "email_address")
	if !okName || !okEmail {
		return nil, fmt.Errorf("csv must have name and email columns: %w", models.ErrInvalidCSV)
	}
	codeIdx, hasCode := columnIndex(cols, "code")
	skillsIdx, hasSkills := columnIndex(cols, "skills")
	dateIdx, hasDate := columnIndex(cols, "issue_date", "date")
	instructorIdx, hasInstructor := columnIndex(cols, "instructor")

	result := &IngestResult{}
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Reason: fmt.Sprintf("malformed row: %v", err)})
			continue
		}
		name := strings.TrimSpace(field(record, nameIdx))
		email := strings.TrimSpace(field(record, emailIdx))
		if name == "" {
			result.Errors = append(result.Errors, RowError{Row: row, Reason: "missing name"})
			continue
		}
		if email == "" || !strings.Contains(email, "@") {
			result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: "invalid email"})
			continue
		}

		cert := models.Certificate{
			RecipientName: name,
			Email:         email,
			WorkshopID:    workshop.ID,
			WorkshopName:  workshop.Title,
			IssueDate:     defaults.IssueDate,
			Instructor:    defaults.Instructor,
		}
		if hasSkills {
			cert.Skills = SplitSkills(field(record, skillsIdx))
		}
		if hasDate {
			if raw := strings.TrimSpace(field(record, dateIdx)); raw != "" {
				if _, err := time.Parse("2006-01-02", raw); err != nil {
					result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: fmt.Sprintf("bad issue_date %q", raw)})
					continue
				}
				cert.IssueDate = raw
			}
		}
		if hasInstructor {
			if v := strings.TrimSpace(field(record, instructorIdx)); v != "" {
				cert.Instructor = v
			}
		}

		// A row may bring its own code; a collision rejects that row instead
		// of overwriting the existing certificate.
		if hasCode {
			if raw := strings.ToUpper(strings.TrimSpace(field(record, codeIdx))); raw != "" {
				exists, err := in.store.CodeExists(ctx, raw)
				if err != nil {
					result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: "could not check code"})
					continue
				}
				if exists {
					result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: fmt.Sprintf("code %s already exists", raw)})
					continue
				}
				cert.Code = raw
			}
		}
		if cert.Code == "" {
			cert.Code, err = UniqueCode(ctx, in.store, in.codePrefix)
			if err != nil {
				result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: "could not allocate code"})
				continue
			}
		}
		if err := in.store.Create(ctx, &cert); err != nil {
			in.logger.Warn("csv row insert failed", zap.Int("row", row), zap.Error(err))
			result.Errors = append(result.Errors, RowError{Row: row, Name: name, Reason: "could not save certificate"})
			continue
		}
		result.Created = append(result.Created, cert)
	}
	return result, nil
}

// SplitSkills parses a skills cell. Semicolons win when present so commas can
// appear inside a skill name; otherwise commas delimit.
func SplitSkills(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	sep := ","
	if strings.Contains(raw, ";") {
		sep = ";"
	}
	var skills []string
	for _, s := range strings.Split(raw, sep) {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

func columnIndex(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
