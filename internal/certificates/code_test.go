package certificates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acm-certify/backend/internal/models"
)

func TestNewCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(fmt.Sprintf(`^ACM-%d-[0-9A-F]{8}$`, time.Now().Year()))
	for i := 0; i < 50; i++ {
		code := NewCode("ACM")
		require.Regexp(t, pattern, code)
	}
}

func TestNewCodeUppercasesPrefix(t *testing.T) {
	require.Regexp(t, `^ACM-`, NewCode("acm"))
}

type fakeCodeChecker struct {
	taken map[string]bool
	calls int
	err   error
}

func (f *fakeCodeChecker) CodeExists(_ context.Context, code string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.taken[code], nil
}

func TestUniqueCodeFirstTry(t *testing.T) {
	checker := &fakeCodeChecker{}
	code, err := UniqueCode(context.Background(), checker, "ACM")
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Equal(t, 1, checker.calls)
}

func TestUniqueCodeGivesUpAfterCollisions(t *testing.T) {
	// Every candidate reads as taken.
	alwaysTaken := &collidingChecker{}
	_, err := UniqueCode(context.Background(), alwaysTaken, "ACM")
	require.ErrorIs(t, err, models.ErrCodeExists)
	require.Equal(t, codeAttempts, alwaysTaken.calls)
}

type collidingChecker struct{ calls int }

func (c *collidingChecker) CodeExists(context.Context, string) (bool, error) {
	c.calls++
	return true, nil
}

func TestUniqueCodePropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	checker := &fakeCodeChecker{err: boom}
	_, err := UniqueCode(context.Background(), checker, "ACM")
	require.ErrorIs(t, err, boom)
}
