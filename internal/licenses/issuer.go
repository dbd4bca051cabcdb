package licenses

import (
	"context"
	"fmt"

	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/licensekey"
)

type codeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Issuer hands out license codes that are free at the time of the check.
// The store's unique constraint on code remains the final guarantee; the
// existence check here only keeps the collision window small.
type Issuer struct {
	checker  codeChecker
	attempts int
	generate func() string
}

// NewIssuer builds a code issuer with a bounded retry budget.
func NewIssuer(checker codeChecker, attempts int) (*Issuer, error) {
	if checker == nil {
		return nil, fmt.Errorf("code checker required")
	}
	if attempts <= 0 {
		return nil, fmt.Errorf("attempts must be positive")
	}
	return &Issuer{
		checker:  checker,
		attempts: attempts,
		generate: licensekey.Generate,
	}, nil
}

// IssueCode generates codes until one is unused, giving up after the
// configured attempt budget. Exhausting the budget signals a systemic
// problem (near-full code space or a broken generator) and is surfaced as
// EXHAUSTED_RETRIES rather than looping forever.
func (i *Issuer) IssueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < i.attempts; attempt++ {
		code := i.generate()
		exists, err := i.checker.CodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check code uniqueness")
		}
		if !exists {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeExhaustedRetries, fmt.Sprintf("no free license code after %d attempts", i.attempts))
}
