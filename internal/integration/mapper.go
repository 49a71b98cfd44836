package integration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// remedyPath is the endpoint that retries generation once the cause is fixed.
func remedyPath(kind journals.SourceKind, id int64) string {
	switch kind {
	case journals.SourcePurchase:
		return fmt.Sprintf("POST /accounting/journals/purchases/%d", id)
	default:
		return fmt.Sprintf("POST /accounting/journals/sales/%d", id)
	}
}

// warningFor renders a message a cashier can act on without storage details.
func warningFor(kind journals.SourceKind, err error) string {
	doc := strings.ToLower(string(kind))
	var op *shared.OpError
	switch {
	case errors.Is(err, shared.ErrMissingAccount), errors.Is(err, shared.ErrAccountNotFound):
		return fmt.Sprintf("%s saved without ledger entry: %v", doc, err)
	case errors.Is(err, shared.ErrPeriodClosed):
		return fmt.Sprintf("%s saved without ledger entry: ledger period is closed", doc)
	case errors.As(err, &op):
		return fmt.Sprintf("%s saved without ledger entry: %s failed", doc, op.Public())
	case shared.IsDomainError(err):
		return fmt.Sprintf("%s saved without ledger entry: %v", doc, err)
	default:
		return fmt.Sprintf("%s saved without ledger entry", doc)
	}
}
