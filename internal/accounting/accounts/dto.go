package accounts

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// CreateAccountInput carries the attributes of a new account.
type CreateAccountInput struct {
	Code         string        `json:"code" validate:"required,alphanum,max=20"`
	Name         string        `json:"name" validate:"required,max=150"`
	Description  string        `json:"description" validate:"max=500"`
	Level        int           `json:"level" validate:"required,min=1,max=9"`
	ParentID     *int64        `json:"parentId" validate:"omitempty,gt=0"`
	Nature       shared.Nature `json:"nature" validate:"required,oneof=DEBIT CREDIT"`
	Category     Category      `json:"category" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE RESULT"`
	IsPostable   bool          `json:"isPostable"`
	Status       Status        `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	ExternalCode string        `json:"externalCode" validate:"max=20"`
}

func (in *CreateAccountInput) normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Nature = shared.Nature(strings.ToUpper(string(in.Nature)))
	in.Category = Category(strings.ToUpper(string(in.Category)))
	in.Status = Status(strings.ToUpper(string(in.Status)))
	if in.Status == "" {
		in.Status = StatusActive
	}
}

// UpdateAccountInput patches mutable attributes. Nil fields stay untouched.
type UpdateAccountInput struct {
	Code         *string `json:"code" validate:"omitempty,alphanum,max=20"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=150"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	ParentID     *int64  `json:"parentId" validate:"omitempty,gt=0"`
	IsPostable   *bool   `json:"isPostable"`
	Status       *Status `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	ExternalCode *string `json:"externalCode" validate:"omitempty,max=20"`
}

func (in *UpdateAccountInput) normalize() {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		in.Code = &code
	}
	if in.Status != nil {
		status := Status(strings.ToUpper(string(*in.Status)))
		in.Status = &status
	}
}

// validationError folds validator output into ErrInvalidAccount.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidAccount, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fieldErr := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", shared.ErrInvalidAccount, strings.Join(fields, "; "))
}
