package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is the parent of every lookup miss.
	ErrNotFound = errors.New("accounting: not found")
	// ErrAccountNotFound indicates an account id or code that does not resolve.
	ErrAccountNotFound = fmt.Errorf("%w: account", ErrNotFound)
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = fmt.Errorf("%w: journal entry", ErrNotFound)
	// ErrSourceNotFound indicates a missing sale or purchase document.
	ErrSourceNotFound = fmt.Errorf("%w: source document", ErrNotFound)

	// ErrDuplicateCode indicates an account code already exists.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrInvalidParent indicates a parent that does not exist or cannot own the child.
	ErrInvalidParent = errors.New("accounting: invalid parent account")
	// ErrAlreadyInitialized indicates the chart of accounts was already seeded.
	ErrAlreadyInitialized = errors.New("accounting: chart of accounts already initialized")
	// ErrInvalidAccount indicates account attributes failed validation.
	ErrInvalidAccount = errors.New("accounting: invalid account")
	// ErrAccountReferenced indicates an account whose code is already used by entry lines.
	ErrAccountReferenced = errors.New("accounting: account already referenced by journal lines")

	// ErrMissingAccount indicates a role account required by an automatic entry is absent.
	ErrMissingAccount = errors.New("accounting: required account missing")
	// ErrAccountNotPostable indicates a line targeting a summary or inactive account.
	ErrAccountNotPostable = errors.New("accounting: account does not accept postings")
	// ErrInvalidLine indicates negative amounts or a line that is both or neither debit and credit.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrImbalancedEntry indicates debit != credit at confirmation time.
	ErrImbalancedEntry = errors.New("accounting: journal lines must balance")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrSourceAlreadyLinked indicates the sale or purchase already produced an entry.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")

	// ErrPeriodClosed indicates a posting into a closed ledger period.
	ErrPeriodClosed = errors.New("accounting: ledger period closed")
	// ErrInvalidPeriod indicates a malformed or out of range YYYY-MM period.
	ErrInvalidPeriod = errors.New("accounting: invalid period")
	// ErrMissingDateRange indicates a report requested without both date bounds.
	ErrMissingDateRange = errors.New("accounting: dateFrom and dateTo are required")
	// ErrInvalidDateRange indicates dateFrom after dateTo.
	ErrInvalidDateRange = errors.New("accounting: dateFrom must not be after dateTo")
)

// OpError carries reproduction context for failures on the posting and report paths.
type OpError struct {
	Op          string
	AccountCode string
	Period      string
	BranchID    int64
	Err         error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return e.Public()
	}
	return e.Public() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Public renders the context without the underlying storage error.
func (e *OpError) Public() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.AccountCode != "" {
		fmt.Fprintf(&b, " account=%s", e.AccountCode)
	}
	if e.Period != "" {
		fmt.Fprintf(&b, " period=%s", e.Period)
	}
	if e.BranchID != 0 {
		fmt.Fprintf(&b, " branch=%d", e.BranchID)
	}
	return b.String()
}

// Context exposes the reproduction fields as a map for structured responses.
func (e *OpError) Context() map[string]any {
	ctx := map[string]any{"op": e.Op}
	if e.AccountCode != "" {
		ctx["accountCode"] = e.AccountCode
	}
	if e.Period != "" {
		ctx["period"] = e.Period
	}
	if e.BranchID != 0 {
		ctx["branchId"] = e.BranchID
	}
	return ctx
}

// WrapOp attaches context to err unless it already is a domain sentinel.
func WrapOp(op, accountCode, period string, branchID int64, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, AccountCode: accountCode, Period: period, BranchID: branchID, Err: err}
}
