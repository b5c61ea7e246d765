package repository

import (
	"context"
	"errors"

	"github.com/eaglebank/registry/shared/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateEmail         = errors.New("duplicate user email")
	ErrDuplicateAccountNumber = errors.New("duplicate account number")
	ErrDuplicateAssociation   = errors.New("duplicate account user association")
	ErrUnknownRole            = errors.New("unknown account user role")
)

// Store is the persistence contract seen by the rule engines. Every Store is
// bound to one unit of work; entities it returns are fresh graphs owned by
// that unit and are never shared with another.
//
// Finders hydrate one level of associations: a user comes with its
// AccountUser links and each link's Account (scalars only), an account comes
// with its links and each link's User (scalars only).
type Store interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// SaveUser inserts when ID is zero, otherwise updates. Associations are
	// persisted through SaveAccount only.
	SaveUser(ctx context.Context, u *models.User) error
	DeleteUserByID(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*models.User, error)

	FindAccountByID(ctx context.Context, id int64) (*models.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	// SaveAccount inserts or updates the account row and brings the stored
	// association set in line with a.AccountUsers.
	SaveAccount(ctx context.Context, a *models.Account) error
	// DeleteAccountByID removes the account and all of its associations.
	DeleteAccountByID(ctx context.Context, id int64) error
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	FindAssociation(ctx context.Context, accountID, userID int64) (*models.AccountUser, error)

	CountAccountsWithBalanceGreaterThan(ctx context.Context, bound decimal.Decimal) (int64, error)
	CountAccountsWithBalanceLessThan(ctx context.Context, bound decimal.Decimal) (int64, error)
	// CountAccountsWithBalanceBetween counts balances strictly inside (gt, lt).
	CountAccountsWithBalanceBetween(ctx context.Context, gt, lt decimal.Decimal) (int64, error)
}

// UnitOfWork runs fn inside a single transaction. An error from fn rolls
// every write back.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(Store) error) error
}
