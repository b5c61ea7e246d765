package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the part a user plays on an account.
type Role string

const (
	RolePrimary    Role = "PRIMARY"
	RoleAuthorized Role = "AUTHORIZED"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePrimary || r == RoleAuthorized
}

// BalanceScale is the number of fractional digits a stored balance keeps.
const BalanceScale = 2

// MaxBalance is the first value a NUMERIC(19,2) column cannot hold.
var MaxBalance = decimal.New(1, 17)

// Errors returned by ValidateBalance. Every place that accepts a balance
// value goes through the same rule.
var (
	ErrNegativeBalance = errors.New("balance must be positive or zero")
	ErrBalanceTooLarge = errors.New("balance exceeds the supported range")
)

// ValidateBalance rejects negative balances and balances that do not fit
// once rounded to BalanceScale.
func ValidateBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	if RoundBalance(balance).GreaterThanOrEqual(MaxBalance) {
		return ErrBalanceTooLarge
	}
	return nil
}

// RoundBalance rounds half away from zero to BalanceScale digits, the way
// PostgreSQL stores a NUMERIC(19,2) value.
func RoundBalance(balance decimal.Decimal) decimal.Decimal {
	return balance.Round(BalanceScale)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type User struct {
	ID           int64
	Name         string
	Email        string
	AccountUsers []*AccountUser
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewUser(name, email string) *User {
	return &User{Name: name, Email: NormalizeEmail(email)}
}

// SetEmail stores the normalized form of email.
func (u *User) SetEmail(email string) {
	u.Email = NormalizeEmail(email)
}

// BeforeSave is called by every store immediately before persisting the user.
// Direct writes to Email are allowed elsewhere, so normalization is repeated here.
func (u *User) BeforeSave() {
	u.Email = NormalizeEmail(u.Email)
}

// HasAccounts reports whether the user holds any association, in any role.
func (u *User) HasAccounts() bool {
	return len(u.AccountUsers) > 0
}

type Account struct {
	ID            int64
	AccountNumber string
	Balance       decimal.Decimal
	AccountUsers  []*AccountUser
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount builds an account together with its PRIMARY association. The
// association is linked into the account's and the user's sets in one step.
// A nil balance means zero.
func NewAccount(accountNumber string, balance *decimal.Decimal, primary *User) *Account {
	a := &Account{
		AccountNumber: accountNumber,
		Balance:       decimal.Zero,
	}
	if balance != nil {
		a.SetBalance(*balance)
	}
	link(a, primary, RolePrimary)
	return a
}

// SetBalance stores balance rounded to BalanceScale, so the zero-balance
// delete rule sees the value every store keeps.
func (a *Account) SetBalance(balance decimal.Decimal) {
	a.Balance = RoundBalance(balance)
}

// PrimaryUser returns the owner of the account. It is nil only if the
// single-PRIMARY invariant has been broken.
func (a *Account) PrimaryUser() *User {
	for _, au := range a.AccountUsers {
		if au.Role == RolePrimary {
			return au.User
		}
	}
	return nil
}

// AuthorizedUsers returns the users linked with role AUTHORIZED.
func (a *Account) AuthorizedUsers() []*User {
	users := make([]*User, 0, len(a.AccountUsers))
	for _, au := range a.AccountUsers {
		if au.Role == RoleAuthorized {
			users = append(users, au.User)
		}
	}
	return users
}

// FindAccountUser returns the association for userID, whatever its role.
func (a *Account) FindAccountUser(userID int64) *AccountUser {
	for _, au := range a.AccountUsers {
		if au.User != nil && au.User.ID == userID {
			return au
		}
	}
	return nil
}

// AddAuthorizedUser links u to the account with role AUTHORIZED. Callers
// check for an existing association first; the pair must stay unique.
func (a *Account) AddAuthorizedUser(u *User) *AccountUser {
	return link(a, u, RoleAuthorized)
}

// RemoveAuthorizedUser unlinks the AUTHORIZED association held by userID.
// PRIMARY associations are never removed. Reports whether anything changed.
func (a *Account) RemoveAuthorizedUser(userID int64) bool {
	au := a.FindAccountUser(userID)
	if au == nil || au.Role != RoleAuthorized {
		return false
	}
	unlink(au)
	return true
}

// Detach removes every association of the account from the partner users'
// sets. Used when the account is deleted.
func (a *Account) Detach() {
	for _, au := range a.AccountUsers {
		if au.User != nil {
			au.User.AccountUsers = without(au.User.AccountUsers, au)
		}
	}
	a.AccountUsers = nil
}

// AssociationKey identifies an association by its two owners.
type AssociationKey struct {
	AccountID int64
	UserID    int64
}

// AccountUser is the single association record shared by pointer between
// the account's and the user's sets.
type AccountUser struct {
	ID      int64
	Account *Account
	User    *User
	Role    Role
}

func (au *AccountUser) Key() AssociationKey {
	var k AssociationKey
	if au.Account != nil {
		k.AccountID = au.Account.ID
	}
	if au.User != nil {
		k.UserID = au.User.ID
	}
	return k
}

// Link attaches an association built by a store while hydrating both sides.
func Link(account *Account, user *User, role Role, id int64) *AccountUser {
	au := link(account, user, role)
	au.ID = id
	return au
}

func link(account *Account, user *User, role Role) *AccountUser {
	au := &AccountUser{Account: account, User: user, Role: role}
	account.AccountUsers = append(account.AccountUsers, au)
	if user != nil {
		user.AccountUsers = append(user.AccountUsers, au)
	}
	return au
}

func unlink(au *AccountUser) {
	if au.Account != nil {
		au.Account.AccountUsers = without(au.Account.AccountUsers, au)
	}
	if au.User != nil {
		au.User.AccountUsers = without(au.User.AccountUsers, au)
	}
}

func without(set []*AccountUser, target *AccountUser) []*AccountUser {
	out := make([]*AccountUser, 0, len(set))
	for _, au := range set {
		if au != target {
			out = append(out, au)
		}
	}
	return out
}
