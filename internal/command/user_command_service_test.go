package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.CreateUser(ctx, cqrs.CreateUserCommand{Name: "Alice", Email: "  Alice@Example.COM "})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Empty(t, u.Accounts)
	assert.NotNil(t, u.Accounts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UsersCreated))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{name: "identical", email: "alice@example.com"},
		{name: "different case", email: "ALICE@example.com"},
		{name: "surrounding whitespace", email: " alice@example.com\t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.createUser(t, "Alice", "alice@example.com")

			_, err := f.users.CreateUser(context.Background(), cqrs.CreateUserCommand{Name: "Other", Email: tt.email})
			assertKind(t, err, apperr.AlreadyExists, "User already exists with email: alice@example.com")
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RuleRejections.WithLabelValues("create_user", "already_exists")))
		})
	}
}

func TestBlankNameIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice", "alice@example.com")

	_, err := f.users.CreateUser(ctx, cqrs.CreateUserCommand{Name: "   ", Email: "a@x.com"})
	assertKind(t, err, apperr.InvalidArgument, "Name is required")

	_, err = f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: alice.ID, Name: "\t", Email: "alice@example.com"})
	assertKind(t, err, apperr.InvalidArgument, "Name is required")

	u, err := f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: alice.ID, Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RuleRejections.WithLabelValues("create_user", "invalid_argument"))+
		testutil.ToFloat64(f.metrics.RuleRejections.WithLabelValues("update_user", "invalid_argument")))
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "Alice", "alice@example.com")
	f.createUser(t, "Bob", "bob@example.com")

	t.Run("keeps own email in another case", func(t *testing.T) {
		u, err := f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: alice.ID, Name: "Alice B", Email: "ALICE@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Alice B", u.Name)
		assert.Equal(t, "alice@example.com", u.Email)
	})

	t.Run("changes to a free email", func(t *testing.T) {
		u, err := f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: alice.ID, Name: "Alice", Email: "Alice@New.example"})
		require.NoError(t, err)
		assert.Equal(t, "alice@new.example", u.Email)
	})

	t.Run("rejects an email held by another user", func(t *testing.T) {
		_, err := f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: alice.ID, Name: "Alice", Email: " Bob@Example.com"})
		assertKind(t, err, apperr.AlreadyExists, "User already exists with email: bob@example.com")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.users.UpdateUser(ctx, cqrs.UpdateUserCommand{UserID: 999, Name: "X", Email: "x@example.com"})
		assertKind(t, err, apperr.NotFound, "User not found with ID: 999")
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("without accounts", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "Alice", "alice@example.com")
		require.NoError(t, f.users.DeleteUser(ctx, cqrs.DeleteUserCommand{UserID: u.ID}))

		// The email is free again.
		f.createUser(t, "Alice Again", "alice@example.com")
	})

	t.Run("primary on an account", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "Alice", "alice@example.com")
		f.createAccount(t, "ACC-1", "0", u.ID)

		err := f.users.DeleteUser(ctx, cqrs.DeleteUserCommand{UserID: u.ID})
		assertKind(t, err, apperr.HasDependents, fmt.Sprintf("Cannot delete user with ID %d because they have associated accounts", u.ID))
	})

	t.Run("authorized on an account", func(t *testing.T) {
		f := newFixture(t)
		owner := f.createUser(t, "Owner", "owner@example.com")
		helper := f.createUser(t, "Helper", "helper@example.com")
		acc := f.createAccount(t, "ACC-1", "0", owner.ID)
		_, err := f.accounts.AddAuthorizedUser(ctx, cqrs.AddAuthorizedUserCommand{AccountID: acc.ID, UserID: helper.ID})
		require.NoError(t, err)

		err = f.users.DeleteUser(ctx, cqrs.DeleteUserCommand{UserID: helper.ID})
		assertKind(t, err, apperr.HasDependents, "")
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		err := f.users.DeleteUser(ctx, cqrs.DeleteUserCommand{UserID: 7})
		assertKind(t, err, apperr.NotFound, "User not found with ID: 7")
	})
}

func TestHandleAccountEventIgnoresUnknownTypes(t *testing.T) {
	f := newFixture(t)
	err := f.users.HandleAccountEvent(context.Background(), events.Event{Type: "something.else"})
	assert.NoError(t, err)
}

func TestHandleAccountEventRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	err := f.users.HandleAccountEvent(context.Background(), events.Event{
		Type: events.AccountDeleted,
		Data: map[string]any{"userIds": "not a list"},
	})
	assert.Error(t, err)
}
