package shared

import (
	"errors"
	"net/http"
)

type classification struct {
	err    error
	code   string
	status int
}

// Order matters: ErrAccountNotFound must match before ErrNotFound.
var classifications = []classification{
	{ErrAccountNotFound, "ACCOUNT_NOT_FOUND", http.StatusNotFound},
	{ErrEntryNotFound, "ENTRY_NOT_FOUND", http.StatusNotFound},
	{ErrSourceNotFound, "SOURCE_NOT_FOUND", http.StatusNotFound},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrDuplicateCode, "DUPLICATE_CODE", http.StatusConflict},
	{ErrAlreadyInitialized, "ALREADY_INITIALIZED", http.StatusConflict},
	{ErrSourceAlreadyLinked, "SOURCE_ALREADY_LINKED", http.StatusConflict},
	{ErrSourceConflict, "SOURCE_ALREADY_LINKED", http.StatusConflict},
	{ErrInvalidStatus, "INVALID_STATUS", http.StatusConflict},
	{ErrPeriodClosed, "PERIOD_CLOSED", http.StatusConflict},
	{ErrAccountReferenced, "ACCOUNT_REFERENCED", http.StatusConflict},
	{ErrInvalidParent, "INVALID_PARENT", http.StatusBadRequest},
	{ErrInvalidAccount, "INVALID_ACCOUNT", http.StatusBadRequest},
	{ErrMissingAccount, "MISSING_ACCOUNT", http.StatusUnprocessableEntity},
	{ErrAccountNotPostable, "ACCOUNT_NOT_POSTABLE", http.StatusBadRequest},
	{ErrInvalidLine, "INVALID_LINE", http.StatusBadRequest},
	{ErrTooFewLines, "TOO_FEW_LINES", http.StatusBadRequest},
	{ErrImbalancedEntry, "IMBALANCED_ENTRY", http.StatusBadRequest},
	{ErrInvalidPeriod, "INVALID_PERIOD", http.StatusBadRequest},
	{ErrMissingDateRange, "MISSING_DATE_RANGE", http.StatusBadRequest},
	{ErrInvalidDateRange, "INVALID_DATE_RANGE", http.StatusBadRequest},
}

func classify(err error) (classification, bool) {
	for _, c := range classifications {
		if errors.Is(err, c.err) {
			return c, true
		}
	}
	return classification{}, false
}

// IsDomainError reports whether err matches one of the ledger sentinels.
func IsDomainError(err error) bool {
	_, ok := classify(err)
	return ok
}

// HTTPStatus maps err to a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	if c, ok := classify(err); ok {
		return c.status
	}
	return http.StatusInternalServerError
}

// ErrorCode returns a stable machine readable code for err.
func ErrorCode(err error) string {
	if c, ok := classify(err); ok {
		return c.code
	}
	return "INTERNAL"
}

// Classify adapts the ledger error table to httpx.Classifier.
func Classify(err error) (int, string) {
	return HTTPStatus(err), ErrorCode(err)
}
