package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(id int64, email string) *User {
	u := NewUser("user", email)
	u.ID = id
	return u
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A@x.com", "a@x.com"},
		{"  a@x.com ", "a@x.com"},
		{"a@x.com", "a@x.com"},
		{"\tMiXeD@Example.ORG\n", "mixed@example.org"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeEmail(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeEmail(got), "normalization must be idempotent")
		})
	}
}

func TestUserEmailNormalization(t *testing.T) {
	u := NewUser("Alice", " Alice@Example.com ")
	assert.Equal(t, "alice@example.com", u.Email)

	u.SetEmail("BOB@example.com")
	assert.Equal(t, "bob@example.com", u.Email)

	u.Email = "  Carol@Example.com"
	u.BeforeSave()
	assert.Equal(t, "carol@example.com", u.Email)
}

func TestValidateBalance(t *testing.T) {
	assert.NoError(t, ValidateBalance(decimal.Zero))
	assert.NoError(t, ValidateBalance(decimal.RequireFromString("0.01")))
	assert.ErrorIs(t, ValidateBalance(decimal.RequireFromString("-0.01")), ErrNegativeBalance)
	assert.NoError(t, ValidateBalance(decimal.RequireFromString("99999999999999999.99")))
	assert.ErrorIs(t, ValidateBalance(decimal.RequireFromString("99999999999999999.995")), ErrBalanceTooLarge)
	assert.ErrorIs(t, ValidateBalance(MaxBalance), ErrBalanceTooLarge)
}

func TestRoundBalance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.001", "0"},
		{"0.004", "0"},
		{"0.005", "0.01"},
		{"10.005", "10.01"},
		{"12.3", "12.3"},
		{"7", "7"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundBalance(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), got.String())
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RolePrimary.Valid())
	assert.True(t, RoleAuthorized.Valid())
	assert.False(t, Role("OWNER").Valid())
	assert.False(t, Role("").Valid())
}

func TestNewAccount(t *testing.T) {
	t.Run("links the primary association on both sides", func(t *testing.T) {
		owner := newTestUser(1, "owner@x.com")
		balance := decimal.RequireFromString("1000.00")

		acc := NewAccount("ACC-1", &balance, owner)

		require.Len(t, acc.AccountUsers, 1)
		require.Len(t, owner.AccountUsers, 1)
		assert.Same(t, acc.AccountUsers[0], owner.AccountUsers[0])
		assert.Equal(t, RolePrimary, acc.AccountUsers[0].Role)
		assert.Same(t, owner, acc.PrimaryUser())
		assert.True(t, acc.Balance.Equal(balance))
	})

	t.Run("balance is rounded to cents", func(t *testing.T) {
		balance := decimal.RequireFromString("0.001")
		acc := NewAccount("ACC-3", &balance, newTestUser(1, "owner@x.com"))
		assert.True(t, acc.Balance.IsZero(), acc.Balance.String())

		acc.SetBalance(decimal.RequireFromString("19.999"))
		assert.Equal(t, "20", acc.Balance.String())
	})

	t.Run("nil balance defaults to zero", func(t *testing.T) {
		acc := NewAccount("ACC-2", nil, newTestUser(1, "owner@x.com"))
		assert.True(t, acc.Balance.IsZero())
	})
}

func TestAuthorizedUsers(t *testing.T) {
	owner := newTestUser(1, "owner@x.com")
	helper := newTestUser(2, "helper@x.com")
	acc := NewAccount("ACC-1", nil, owner)
	acc.ID = 10

	au := acc.AddAuthorizedUser(helper)
	assert.Equal(t, RoleAuthorized, au.Role)
	assert.Equal(t, AssociationKey{AccountID: 10, UserID: 2}, au.Key())
	assert.Equal(t, []*User{helper}, acc.AuthorizedUsers())
	require.Len(t, helper.AccountUsers, 1)
	assert.Same(t, au, helper.AccountUsers[0])
	assert.Same(t, au, acc.FindAccountUser(2))
	assert.Nil(t, acc.FindAccountUser(99))
}

func TestRemoveAuthorizedUser(t *testing.T) {
	t.Run("removes the link from both sides", func(t *testing.T) {
		owner := newTestUser(1, "owner@x.com")
		helper := newTestUser(2, "helper@x.com")
		acc := NewAccount("ACC-1", nil, owner)
		acc.AddAuthorizedUser(helper)

		assert.True(t, acc.RemoveAuthorizedUser(2))
		assert.Empty(t, acc.AuthorizedUsers())
		assert.Empty(t, helper.AccountUsers)
		assert.Len(t, acc.AccountUsers, 1)
	})

	t.Run("missing link is a no-op, twice", func(t *testing.T) {
		acc := NewAccount("ACC-1", nil, newTestUser(1, "owner@x.com"))
		assert.False(t, acc.RemoveAuthorizedUser(2))
		assert.False(t, acc.RemoveAuthorizedUser(2))
		assert.Len(t, acc.AccountUsers, 1)
	})

	t.Run("never removes the primary link", func(t *testing.T) {
		owner := newTestUser(1, "owner@x.com")
		acc := NewAccount("ACC-1", nil, owner)

		assert.False(t, acc.RemoveAuthorizedUser(owner.ID))
		assert.Same(t, owner, acc.PrimaryUser())
		assert.Len(t, owner.AccountUsers, 1)
	})

	t.Run("primary user stays stable across add and remove", func(t *testing.T) {
		owner := newTestUser(1, "owner@x.com")
		acc := NewAccount("ACC-1", nil, owner)
		for i := int64(2); i < 6; i++ {
			acc.AddAuthorizedUser(newTestUser(i, "u@x.com"))
			assert.Same(t, owner, acc.PrimaryUser())
		}
		for i := int64(2); i < 6; i++ {
			acc.RemoveAuthorizedUser(i)
			assert.Same(t, owner, acc.PrimaryUser())
		}
	})
}

func TestDetach(t *testing.T) {
	owner := newTestUser(1, "owner@x.com")
	helper := newTestUser(2, "helper@x.com")
	other := NewAccount("ACC-OTHER", nil, owner)
	acc := NewAccount("ACC-1", nil, owner)
	acc.AddAuthorizedUser(helper)

	acc.Detach()

	assert.Empty(t, acc.AccountUsers)
	assert.Empty(t, helper.AccountUsers)
	require.Len(t, owner.AccountUsers, 1)
	assert.Same(t, other, owner.AccountUsers[0].Account)
}

func TestMoneyJSON(t *testing.T) {
	m := NewMoney(decimal.RequireFromString("2500.5"))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `"2500.50"`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Decimal().Equal(m.Decimal()))
}
