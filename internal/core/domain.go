package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"

	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"

	MaxCategoryNameLength = 100
)

type (
	// Kind classifies categories and transactions as money in or money out.
	Kind string

	// Period is the declared recurrence of a budget.
	Period string

	User struct {
		ID           int64
		Username     string
		Email        string
		FirstName    string
		LastName     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Profile is the public view of a user. It never carries credentials.
	Profile struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	NewUser struct {
		Username     string
		Email        string
		PasswordHash string
		FirstName    string
		LastName     string
	}

	// Session binds an opaque client token (stored hashed) to a user.
	Session struct {
		TokenHash string
		UserID    int64
		CSRFToken string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	Category struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user"`
		Name      string    `json:"name"`
		Kind      Kind      `json:"type"`
		CreatedAt time.Time `json:"created_at"`
	}

	Transaction struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"user"`
		CategoryID   *int64    `json:"category"`
		CategoryName *string   `json:"category_name"`
		Amount       Money     `json:"amount"`
		Description  string    `json:"description"`
		Date         Date      `json:"date"`
		Kind         Kind      `json:"type"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Budget struct {
		ID           int64     `json:"id"`
		UserID       int64     `json:"user"`
		CategoryID   int64     `json:"category"`
		CategoryName string    `json:"category_name"`
		CategoryKind Kind      `json:"category_type"`
		Amount       Money     `json:"amount"`
		Period       Period    `json:"period"`
		StartDate    Date      `json:"start_date"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Label returns the display form of the period ("Monthly").
func (p Period) Label() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NullableID is a reference that may be explicitly cleared.
type NullableID struct {
	ID    int64
	Valid bool
}

// CategoryInput carries the writable category fields. Nil means "not supplied".
type CategoryInput struct {
	Name *string
	Kind *Kind
}

type TransactionInput struct {
	Category    *NullableID
	Amount      *Money
	Description *string
	Date        *Date
	Kind        *Kind
}

type BudgetInput struct {
	Category *int64
	Amount   *Money
	Period   *Period
}

// Validate checks the supplied fields. With partial unset every required
// field must be present.
func (in CategoryInput) Validate(partial bool) error {
	if in.Name == nil {
		if !partial {
			return requiredField("name")
		}
	} else {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return NewValidationError("name", "This field may not be blank.")
		}
		if utf8.RuneCountInString(name) > MaxCategoryNameLength {
			return NewValidationError("name", "Ensure this field has no more than 100 characters.")
		}
	}
	if in.Kind == nil {
		if !partial {
			return requiredField("type")
		}
	} else if !in.Kind.Valid() {
		return invalidChoice("type", string(*in.Kind))
	}
	return nil
}

func (in TransactionInput) Validate(partial bool) error {
	if in.Amount == nil {
		if !partial {
			return requiredField("amount")
		}
	} else if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Date == nil {
		if !partial {
			return requiredField("date")
		}
	} else if in.Date.IsZero() {
		return NewValidationError("date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	if in.Kind == nil {
		if !partial {
			return requiredField("type")
		}
	} else if !in.Kind.Valid() {
		return invalidChoice("type", string(*in.Kind))
	}
	return nil
}

func (in BudgetInput) Validate(partial bool) error {
	if in.Category == nil && !partial {
		return requiredField("category")
	}
	if in.Amount == nil {
		if !partial {
			return requiredField("amount")
		}
	} else if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Period != nil && !in.Period.Valid() {
		return invalidChoice("period", string(*in.Period))
	}
	return nil
}

func requiredField(field string) error {
	return NewValidationError(field, "This field is required.")
}

func invalidChoice(field, value string) error {
	return NewValidationError(field, `"`+value+`" is not a valid choice.`)
}
