package command

import (
	"context"
	"testing"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/events"
	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	uow      *repository.MemoryUnitOfWork
	metrics  *metrics.Metrics
	users    *UserCommandService
	accounts *AccountCommandService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := metrics.New()
	uow := repository.NewMemoryUnitOfWork(m)
	deps := Deps{
		UnitOfWork: uow,
		ReadRepo:   repository.NewReadRepository(uow, nil, 0, nil, m),
		Publisher:  events.NewPublisher(nil),
		Metrics:    m,
	}
	return &fixture{
		uow:      uow,
		metrics:  m,
		users:    NewUserCommandService(deps),
		accounts: NewAccountCommandService(deps),
	}
}

func (f *fixture) createUser(t *testing.T, name, email string) *models.UserView {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), cqrs.CreateUserCommand{Name: name, Email: email})
	require.NoError(t, err)
	return u
}

func (f *fixture) createAccount(t *testing.T, number, balance string, primaryID int64) *models.AccountView {
	t.Helper()
	b := decimal.RequireFromString(balance)
	a, err := f.accounts.CreateAccount(context.Background(), cqrs.CreateAccountCommand{
		AccountNumber: number,
		Balance:       &b,
		PrimaryUserID: primaryID,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) countAccounts(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.uow.RunInTx(context.Background(), func(s repository.Store) error {
		all, err := s.ListAccounts(context.Background())
		n = len(all)
		return err
	}))
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertKind(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
	if message != "" {
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, message, appErr.Message)
	}
}
