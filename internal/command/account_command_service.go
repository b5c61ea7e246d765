package command

import (
	"context"
	"errors"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/events"
	"github.com/eaglebank/registry/shared/models"
	"github.com/shopspring/decimal"
)

// AccountCommandService applies the account and association rules. Checks
// run in a fixed order and the first failure rolls the unit of work back.
type AccountCommandService struct {
	support
}

func NewAccountCommandService(d Deps) *AccountCommandService {
	return &AccountCommandService{support: newSupport(d, "account-command")}
}

func numberTaken(ctx context.Context, st repository.Store, number string, exceptID int64) error {
	existing, err := st.FindAccountByNumber(ctx, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != exceptID {
		return apperr.New(apperr.AlreadyExists, apperr.MsgAccountNumberExists, number)
	}
	return nil
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.AccountView, error) {
	if err := requireText("accountNumber", cmd.AccountNumber, apperr.MsgAccountNumberRequired); err != nil {
		return nil, s.fail("create_account", err)
	}
	if cmd.Balance != nil {
		if err := validateBalance(*cmd.Balance); err != nil {
			return nil, s.fail("create_account", err)
		}
	}

	var account *models.Account
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		if err := numberTaken(ctx, st, cmd.AccountNumber, 0); err != nil {
			return err
		}
		primary, err := findUser(ctx, st, cmd.PrimaryUserID)
		if err != nil {
			return err
		}
		account = models.NewAccount(cmd.AccountNumber, cmd.Balance, primary)
		return st.SaveAccount(ctx, account)
	})
	if errors.Is(err, repository.ErrDuplicateAccountNumber) {
		err = apperr.New(apperr.AlreadyExists, apperr.MsgAccountNumberExists, cmd.AccountNumber)
	}
	if err != nil {
		return nil, s.fail("create_account", err)
	}

	s.metrics.IncrementAccountsCreated()
	s.log.Info("account created", "account_id", account.ID, "primary_user_id", cmd.PrimaryUserID)
	s.invalidateUsers(ctx, cmd.PrimaryUserID)
	s.publish(ctx, events.AccountEventsStream, events.AccountCreated, events.AccountCreatedEvent{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		PrimaryUserID: cmd.PrimaryUserID,
		Balance:       account.Balance,
	})
	return models.ToAccountView(account), nil
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	if err := requireText("accountNumber", cmd.AccountNumber, apperr.MsgAccountNumberRequired); err != nil {
		return nil, s.fail("update_account", err)
	}
	if err := validateBalance(cmd.Balance); err != nil {
		return nil, s.fail("update_account", err)
	}

	var account *models.Account
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		var err error
		if account, err = findAccount(ctx, st, cmd.AccountID); err != nil {
			return err
		}
		if cmd.AccountNumber != account.AccountNumber {
			if err := numberTaken(ctx, st, cmd.AccountNumber, account.ID); err != nil {
				return err
			}
		}
		account.AccountNumber = cmd.AccountNumber
		account.SetBalance(cmd.Balance)
		return st.SaveAccount(ctx, account)
	})
	if errors.Is(err, repository.ErrDuplicateAccountNumber) {
		err = apperr.New(apperr.AlreadyExists, apperr.MsgAccountNumberExists, cmd.AccountNumber)
	}
	if err != nil {
		return nil, s.fail("update_account", err)
	}

	userIDs := linkedUserIDs(account)
	s.invalidateAccounts(ctx, account.ID)
	s.invalidateUsers(ctx, userIDs...)
	s.publish(ctx, events.AccountEventsStream, events.AccountUpdated, events.AccountUpdatedEvent{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		UserIDs:       userIDs,
	})
	return models.ToAccountView(account), nil
}

// UpdateBalance overwrites the balance. It is a replacement, not a transfer.
func (s *AccountCommandService) UpdateBalance(ctx context.Context, cmd cqrs.UpdateBalanceCommand) (*models.AccountView, error) {
	if err := validateBalance(cmd.Balance); err != nil {
		return nil, s.fail("update_balance", err)
	}

	var (
		account  *models.Account
		previous decimal.Decimal
	)
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		var err error
		if account, err = findAccount(ctx, st, cmd.AccountID); err != nil {
			return err
		}
		previous = account.Balance
		account.SetBalance(cmd.Balance)
		return st.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, s.fail("update_balance", err)
	}

	userIDs := linkedUserIDs(account)
	s.invalidateAccounts(ctx, account.ID)
	s.invalidateUsers(ctx, userIDs...)
	s.publish(ctx, events.AccountEventsStream, events.BalanceUpdated, events.BalanceUpdatedEvent{
		AccountID:  account.ID,
		NewBalance: account.Balance,
		Change:     account.Balance.Sub(previous),
		UserIDs:    userIDs,
	})
	return models.ToAccountView(account), nil
}

// DeleteAccount requires a balance of exactly zero. Associations on both
// sides go with the account.
func (s *AccountCommandService) DeleteAccount(ctx context.Context, cmd cqrs.DeleteAccountCommand) error {
	var (
		number  string
		userIDs []int64
	)
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		account, err := findAccount(ctx, st, cmd.AccountID)
		if err != nil {
			return err
		}
		if !account.Balance.IsZero() {
			return apperr.New(apperr.BalanceNotZero, apperr.MsgAccountBalanceNotZero, account.ID)
		}
		number = account.AccountNumber
		userIDs = linkedUserIDs(account)
		account.Detach()
		return st.DeleteAccountByID(ctx, account.ID)
	})
	if err != nil {
		return s.fail("delete_account", err)
	}

	s.log.Info("account deleted", "account_id", cmd.AccountID)
	s.invalidateAccounts(ctx, cmd.AccountID)
	s.invalidateUsers(ctx, userIDs...)
	s.publish(ctx, events.AccountEventsStream, events.AccountDeleted, events.AccountDeletedEvent{
		AccountID:     cmd.AccountID,
		AccountNumber: number,
		UserIDs:       userIDs,
	})
	return nil
}

// AddAuthorizedUser links a user with role AUTHORIZED. An existing link of
// any role for the pair is reported before the account or user is looked up.
func (s *AccountCommandService) AddAuthorizedUser(ctx context.Context, cmd cqrs.AddAuthorizedUserCommand) (*models.AccountView, error) {
	alreadyAssociated := apperr.New(apperr.AlreadyAssociated, apperr.MsgUserAlreadyAssociated, cmd.UserID, cmd.AccountID)

	var account *models.Account
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		_, err := st.FindAssociation(ctx, cmd.AccountID, cmd.UserID)
		if err == nil {
			return alreadyAssociated
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if account, err = findAccount(ctx, st, cmd.AccountID); err != nil {
			return err
		}
		user, err := findUser(ctx, st, cmd.UserID)
		if err != nil {
			return err
		}
		account.AddAuthorizedUser(user)
		return st.SaveAccount(ctx, account)
	})
	if errors.Is(err, repository.ErrDuplicateAssociation) {
		err = alreadyAssociated
	}
	if err != nil {
		return nil, s.fail("add_authorized_user", err)
	}

	s.log.Info("authorized user added", "account_id", cmd.AccountID, "user_id", cmd.UserID)
	s.invalidateAccounts(ctx, cmd.AccountID)
	s.invalidateUsers(ctx, cmd.UserID)
	s.publish(ctx, events.AccountEventsStream, events.AccountUserAuthorized, events.AccountUserEvent{
		AccountID: cmd.AccountID,
		UserID:    cmd.UserID,
	})
	return models.ToAccountView(account), nil
}

// RemoveAuthorizedUser drops the AUTHORIZED link held by the user. A missing
// link, or a PRIMARY one, leaves the account unchanged and is not an error.
func (s *AccountCommandService) RemoveAuthorizedUser(ctx context.Context, cmd cqrs.RemoveAuthorizedUserCommand) (*models.AccountView, error) {
	var (
		account *models.Account
		removed bool
	)
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		var err error
		if account, err = findAccount(ctx, st, cmd.AccountID); err != nil {
			return err
		}
		if removed = account.RemoveAuthorizedUser(cmd.UserID); !removed {
			return nil
		}
		return st.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, s.fail("remove_authorized_user", err)
	}

	if removed {
		s.log.Info("authorized user removed", "account_id", cmd.AccountID, "user_id", cmd.UserID)
		s.invalidateAccounts(ctx, cmd.AccountID)
		s.invalidateUsers(ctx, cmd.UserID)
		s.publish(ctx, events.AccountEventsStream, events.AccountUserRemoved, events.AccountUserEvent{
			AccountID: cmd.AccountID,
			UserID:    cmd.UserID,
		})
	}
	return models.ToAccountView(account), nil
}

// HandleUserEvent is the Redis stream subscriber handler for user events.
// Renaming a user or changing their email changes every account view that
// lists them.
func (s *AccountCommandService) HandleUserEvent(ctx context.Context, event events.Event) error {
	s.log.Debug("received user event", "type", event.Type)
	if event.Type != events.UserUpdated {
		return nil
	}
	var data events.UserUpdatedEvent
	if err := events.Decode(event, &data); err != nil {
		return err
	}
	s.invalidateAccounts(ctx, data.AccountIDs...)
	return nil
}
