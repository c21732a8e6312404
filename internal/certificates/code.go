package certificates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acm-certify/backend/internal/models"
)

const codeAttempts = 5

// NewCode builds a candidate certificate code: <PREFIX>-<YEAR>-<RANDOM8>.
func NewCode(prefix string) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), time.Now().Year(), random)
}

type codeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// UniqueCode generates a code not yet present in the registry, retrying on
// collision a bounded number of times before giving up with ErrCodeExists.
func UniqueCode(ctx context.Context, store codeChecker, prefix string) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := NewCode(prefix)
		exists, err := store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("allocate certificate code: %w", models.ErrCodeExists)
}
