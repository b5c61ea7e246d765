package cqrs

import "github.com/shopspring/decimal"

// ---------- User queries ----------

type GetUserQuery struct {
	UserID int64
}

type ListUsersQuery struct{}

// GetUserBalanceQuery fetches a user with the summed balance of every
// account they are linked to, in any role.
type GetUserBalanceQuery struct {
	UserID int64
}

// ---------- Account queries ----------

type GetAccountQuery struct {
	AccountID int64
}

type ListAccountsQuery struct{}

// ---------- Metrics queries ----------

// CountAccountsQuery counts accounts whose balance lies strictly beyond the
// given bounds. At least one bound must be set.
type CountAccountsQuery struct {
	GreaterThan *decimal.Decimal
	LessThan    *decimal.Decimal
}
