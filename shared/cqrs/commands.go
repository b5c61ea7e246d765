package cqrs

import "github.com/shopspring/decimal"

// ---------- User commands ----------

type CreateUserCommand struct {
	Name  string
	Email string
}

type UpdateUserCommand struct {
	UserID int64
	Name   string
	Email  string
}

type DeleteUserCommand struct {
	UserID int64
}

// ---------- Account commands ----------

// CreateAccountCommand opens an account owned by PrimaryUserID. A nil
// Balance opens the account at zero.
type CreateAccountCommand struct {
	AccountNumber string
	Balance       *decimal.Decimal
	PrimaryUserID int64
}

type UpdateAccountCommand struct {
	AccountID     int64
	AccountNumber string
	Balance       decimal.Decimal
}

// UpdateBalanceCommand replaces the balance; it is not a transfer.
type UpdateBalanceCommand struct {
	AccountID int64
	Balance   decimal.Decimal
}

type DeleteAccountCommand struct {
	AccountID int64
}

type AddAuthorizedUserCommand struct {
	AccountID int64
	UserID    int64
}

type RemoveAuthorizedUserCommand struct {
	AccountID int64
	UserID    int64
}
