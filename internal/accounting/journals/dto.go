package journals

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// ManualLineInput describes one line of a manual entry.
type ManualLineInput struct {
	AccountID    int64           `json:"accountId" validate:"required,gt=0"`
	Memo         string          `json:"memo" validate:"max=200"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Counterparty string          `json:"counterparty" validate:"max=64"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
}

// ManualEntryInput groups the fields of a manual entry request.
type ManualEntryInput struct {
	EntryDate string            `json:"entryDate" validate:"omitempty,datetime=2006-01-02"`
	Memo      string            `json:"memo" validate:"required,max=200"`
	Operation Operation         `json:"operation" validate:"required"`
	Reference string            `json:"reference" validate:"max=64"`
	BranchID  int64             `json:"branchId" validate:"required,gt=0"`
	AuthorID  int64             `json:"-"`
	Confirm   bool              `json:"confirm"`
	Lines     []ManualLineInput `json:"lines" validate:"dive"`
}

func (in *ManualEntryInput) normalize() {
	in.EntryDate = strings.TrimSpace(in.EntryDate)
	in.Memo = strings.TrimSpace(in.Memo)
	in.Reference = strings.TrimSpace(in.Reference)
	in.Operation = Operation(strings.ToUpper(strings.TrimSpace(string(in.Operation))))
	for i := range in.Lines {
		in.Lines[i].Memo = strings.TrimSpace(in.Lines[i].Memo)
		in.Lines[i].Currency = strings.ToUpper(strings.TrimSpace(in.Lines[i].Currency))
	}
}

// Validate checks shape and amounts. Account existence is checked in the transaction.
func (in ManualEntryInput) Validate(v *validator.Validate) error {
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", shared.ErrInvalidLine, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrInvalidLine, err)
	}
	if !in.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", shared.ErrInvalidLine, in.Operation)
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	for idx, line := range in.Lines {
		if err := validateAmounts(idx, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

// validateAmounts enforces non-negative amounts with exactly one side set.
func validateAmounts(idx int, debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidLine, idx+1)
	}
	if debit.IsPositive() == credit.IsPositive() {
		return fmt.Errorf("%w: line %d must carry exactly one of debit or credit", shared.ErrInvalidLine, idx+1)
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID  int64  `json:"-"`
	AuthorID int64  `json:"-"`
	Memo     string `json:"memo"`
}

func defaultReversalMemo(memo, number string) string {
	if memo = strings.TrimSpace(memo); memo != "" {
		return memo
	}
	return "Reversal of " + number
}
