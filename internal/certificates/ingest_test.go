package certificates

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
)

type fakeIngestStore struct {
	created []models.Certificate
	failOn  map[string]bool // recipient name -> force insert failure
}

func (f *fakeIngestStore) CodeExists(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeIngestStore) Create(_ context.Context, c *models.Certificate) error {
	if f.failOn[c.RecipientName] {
		return models.ErrCodeExists
	}
	c.ID = uuid.New()
	f.created = append(f.created, *c)
	return nil
}

func testWorkshop() *models.Workshop {
	return &models.Workshop{ID: uuid.New(), Title: "Intro to Go", Date: "2026-03-14"}
}

func newTestIngestor(store ingestStore) *Ingestor {
	return NewIngestor(store, "ACM", zap.NewNop())
}

func TestIngestCreatesRows(t *testing.T) {
	csv := "name,email,skills\n" +
		"Ada Lovelace,ada@example.com,Go; Concurrency\n" +
		"Alan Turing,alan@example.com,\n"
	store := &fakeIngestStore{}
	result, err := newTestIngestor(store).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{
		IssueDate:  "2026-03-14",
		Instructor: "ACM Club",
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Empty(t, result.Errors)

	ada := result.Created[0]
	require.Equal(t, "Ada Lovelace", ada.RecipientName)
	require.Equal(t, []string{"Go", "Concurrency"}, ada.Skills)
	require.Equal(t, "Intro to Go", ada.WorkshopName)
	require.Equal(t, "2026-03-14", ada.IssueDate)
	require.Equal(t, "ACM Club", ada.Instructor)
	require.NotEmpty(t, ada.Code)
}

func TestIngestHeaderCaseInsensitive(t *testing.T) {
	csv := "Name,EMAIL\nAda,ada@example.com\n"
	store := &fakeIngestStore{}
	result, err := newTestIngestor(store).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
}

func TestIngestMissingHeadersFailsWholeBatch(t *testing.T) {
	csv := "full_name,contact\nAda,ada@example.com\n"
	_, err := newTestIngestor(&fakeIngestStore{}).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.ErrorIs(t, err, models.ErrInvalidCSV)
}

func TestIngestBadRowsAreIsolated(t *testing.T) {
	csv := "name,email,issue_date\n" +
		",missing@example.com,\n" + // no name
		"No Email,,\n" + // no email
		"Bad Date,bad@example.com,14-03-2026\n" +
		"Good Row,good@example.com,2026-03-14\n"
	store := &fakeIngestStore{}
	result, err := newTestIngestor(store).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Equal(t, "Good Row", result.Created[0].RecipientName)
	require.Len(t, result.Errors, 3)
	require.Equal(t, 1, result.Errors[0].Row)
	require.Equal(t, 2, result.Errors[1].Row)
	require.Equal(t, 3, result.Errors[2].Row)
}

func TestIngestRowNumbersCountDataRowsOnly(t *testing.T) {
	csv := "name,email\n" +
		"Ada,ada@example.com\n" +
		"No Email,\n" +
		"Grace,grace@example.com\n"
	store := &fakeIngestStore{}
	result, err := newTestIngestor(store).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Len(t, result.Errors, 1)
	require.Equal(t, 2, result.Errors[0].Row)
}

func TestIngestInsertFailureIsRowError(t *testing.T) {
	csv := "name,email\nDoomed,doomed@example.com\nFine,fine@example.com\n"
	store := &fakeIngestStore{failOn: map[string]bool{"Doomed": true}}
	result, err := newTestIngestor(store).Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "Doomed", result.Errors[0].Name)
}

func TestIngestSuppliedCodes(t *testing.T) {
	csv := "name,email,code\n" +
		"Own Code,own@example.com,custom-2026-0001\n" +
		"Taken Code,taken@example.com,ACM-2026-TAKEN001\n" +
		"No Code,none@example.com,\n"
	store := &fakeIngestStore{}
	ingestor := NewIngestor(&takenCodeStore{fakeIngestStore: store}, "ACM", zap.NewNop())
	result, err := ingestor.Ingest(context.Background(), strings.NewReader(csv), testWorkshop(), IngestDefaults{})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Equal(t, "CUSTOM-2026-0001", result.Created[0].Code)
	require.NotEmpty(t, result.Created[1].Code)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "Taken Code", result.Errors[0].Name)
}

// takenCodeStore reports ACM-2026-TAKEN001 as already allocated.
type takenCodeStore struct {
	*fakeIngestStore
}

func (s *takenCodeStore) CodeExists(_ context.Context, code string) (bool, error) {
	return code == "ACM-2026-TAKEN001", nil
}

func TestSplitSkills(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Go", []string{"Go"}},
		{"Go, Docker, Linux", []string{"Go", "Docker", "Linux"}},
		{"Data Structures; Algorithms, Advanced", []string{"Data Structures", "Algorithms, Advanced"}},
		{" Go ; ; Docker ", []string{"Go", "Docker"}},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SplitSkills(tc.in), "input %q", tc.in)
	}
}
