package models

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount serialised with exactly two fractional digits.
type Money decimal.Decimal

func NewMoney(d decimal.Decimal) Money { return Money(d) }

func (m Money) Decimal() decimal.Decimal { return decimal.Decimal(m) }

func (m Money) String() string { return decimal.Decimal(m).StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

// AccountUserView is an association seen from the account: who holds it.
type AccountUserView struct {
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	Role      Role   `json:"role"`
}

// AccountSummary is an association seen from the user: which account.
type AccountSummary struct {
	AccountID     int64  `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	Balance       Money  `json:"balance"`
	Role          Role   `json:"role"`
}

// UserView is the read-optimised projection of a user.
type UserView struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Accounts []AccountSummary `json:"accounts"`
}

// AccountView is the read-optimised projection of an account.
type AccountView struct {
	ID            int64             `json:"id"`
	AccountNumber string            `json:"accountNumber"`
	Balance       Money             `json:"balance"`
	Users         []AccountUserView `json:"users"`
}

// UserBalanceView is a user's accounts together with their summed balance.
type UserBalanceView struct {
	UserID       int64            `json:"userId"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	TotalBalance Money            `json:"totalBalance"`
	Accounts     []AccountSummary `json:"accounts"`
}

// AccountMetricsView is the answer to a balance-predicate count.
type AccountMetricsView struct {
	Count     int64  `json:"count"`
	Condition string `json:"condition"`
}

// orderLinks sorts PRIMARY before AUTHORIZED, then by the other side's ID.
func orderLinks(links []*AccountUser, otherID func(*AccountUser) int64) []*AccountUser {
	sorted := make([]*AccountUser, 0, len(links))
	for _, au := range links {
		if au != nil {
			sorted = append(sorted, au)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Role == RolePrimary, sorted[j].Role == RolePrimary
		if pi != pj {
			return pi
		}
		return otherID(sorted[i]) < otherID(sorted[j])
	})
	return sorted
}

// OrderAccountUsers renders an account's associations ordered PRIMARY first,
// then by ascending user ID. Never returns nil.
func OrderAccountUsers(links []*AccountUser) []AccountUserView {
	ordered := orderLinks(links, func(au *AccountUser) int64 { return au.Key().UserID })
	out := make([]AccountUserView, 0, len(ordered))
	for _, au := range ordered {
		v := AccountUserView{Role: au.Role}
		if au.User != nil {
			v.UserID = au.User.ID
			v.UserName = au.User.Name
			v.UserEmail = au.User.Email
		}
		out = append(out, v)
	}
	return out
}

// OrderUserAccounts renders a user's associations ordered PRIMARY first,
// then by ascending account ID. Never returns nil.
func OrderUserAccounts(links []*AccountUser) []AccountSummary {
	ordered := orderLinks(links, func(au *AccountUser) int64 { return au.Key().AccountID })
	out := make([]AccountSummary, 0, len(ordered))
	for _, au := range ordered {
		s := AccountSummary{Role: au.Role}
		if au.Account != nil {
			s.AccountID = au.Account.ID
			s.AccountNumber = au.Account.AccountNumber
			s.Balance = Money(au.Account.Balance)
		}
		out = append(out, s)
	}
	return out
}

// CalculateTotalBalance sums the balance of every linked account, whatever
// the role. An empty set sums to zero.
func CalculateTotalBalance(links []*AccountUser) decimal.Decimal {
	total := decimal.Zero
	for _, au := range links {
		if au != nil && au.Account != nil {
			total = total.Add(au.Account.Balance)
		}
	}
	return total
}

func ToUserView(u *User) *UserView {
	return &UserView{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Accounts: OrderUserAccounts(u.AccountUsers),
	}
}

func ToAccountView(a *Account) *AccountView {
	return &AccountView{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Balance:       Money(a.Balance),
		Users:         OrderAccountUsers(a.AccountUsers),
	}
}

func ToUserBalanceView(u *User) *UserBalanceView {
	return &UserBalanceView{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		TotalBalance: Money(CalculateTotalBalance(u.AccountUsers)),
		Accounts:     OrderUserAccounts(u.AccountUsers),
	}
}
