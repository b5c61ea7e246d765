package command

import (
	"context"
	"errors"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/events"
	"github.com/eaglebank/registry/shared/models"
)

// UserCommandService applies the user rules inside one unit of work per
// command, then invalidates the read model and publishes events.
type UserCommandService struct {
	support
}

func NewUserCommandService(d Deps) *UserCommandService {
	return &UserCommandService{support: newSupport(d, "user-command")}
}

// emailTaken reports an AlreadyExists error when email belongs to a user
// other than exceptID.
func emailTaken(ctx context.Context, st repository.Store, email string, exceptID int64) error {
	existing, err := st.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != exceptID {
		return apperr.New(apperr.AlreadyExists, apperr.MsgUserEmailExists, email)
	}
	return nil
}

func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.UserView, error) {
	if err := requireText("name", cmd.Name, apperr.MsgNameRequired); err != nil {
		return nil, s.fail("create_user", err)
	}
	email := models.NormalizeEmail(cmd.Email)
	var user *models.User
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		if err := emailTaken(ctx, st, email, 0); err != nil {
			return err
		}
		user = models.NewUser(cmd.Name, email)
		return st.SaveUser(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		err = apperr.New(apperr.AlreadyExists, apperr.MsgUserEmailExists, email)
	}
	if err != nil {
		return nil, s.fail("create_user", err)
	}

	s.metrics.IncrementUsersCreated()
	s.log.Info("user created", "user_id", user.ID)
	s.publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	return models.ToUserView(user), nil
}

func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.UserView, error) {
	if err := requireText("name", cmd.Name, apperr.MsgNameRequired); err != nil {
		return nil, s.fail("update_user", err)
	}
	email := models.NormalizeEmail(cmd.Email)
	var user *models.User
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		var err error
		if user, err = findUser(ctx, st, cmd.UserID); err != nil {
			return err
		}
		if email != user.Email {
			if err := emailTaken(ctx, st, email, user.ID); err != nil {
				return err
			}
		}
		user.Name = cmd.Name
		user.SetEmail(email)
		return st.SaveUser(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		err = apperr.New(apperr.AlreadyExists, apperr.MsgUserEmailExists, email)
	}
	if err != nil {
		return nil, s.fail("update_user", err)
	}

	accountIDs := linkedAccountIDs(user)
	s.invalidateUsers(ctx, user.ID)
	s.invalidateAccounts(ctx, accountIDs...)
	s.publish(ctx, events.UserEventsStream, events.UserUpdated, events.UserUpdatedEvent{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		AccountIDs: accountIDs,
	})
	return models.ToUserView(user), nil
}

// DeleteUser rejects the operation while the user holds any association,
// in any role.
func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		user, err := findUser(ctx, st, cmd.UserID)
		if err != nil {
			return err
		}
		if user.HasAccounts() {
			return apperr.New(apperr.HasDependents, apperr.MsgUserHasAccounts, user.ID)
		}
		return st.DeleteUserByID(ctx, user.ID)
	})
	if err != nil {
		return s.fail("delete_user", err)
	}

	s.log.Info("user deleted", "user_id", cmd.UserID)
	s.invalidateUsers(ctx, cmd.UserID)
	s.publish(ctx, events.UserEventsStream, events.UserDeleted, events.UserDeletedEvent{UserID: cmd.UserID})
	return nil
}

// HandleAccountEvent is the Redis stream subscriber handler for account
// events. It drops the user views that embed the changed account. Commands
// already invalidate on commit; this covers instances that crashed between
// commit and invalidation.
func (s *UserCommandService) HandleAccountEvent(ctx context.Context, event events.Event) error {
	s.log.Debug("received account event", "type", event.Type)
	switch event.Type {
	case events.AccountCreated:
		var data events.AccountCreatedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.invalidateUsers(ctx, data.PrimaryUserID)
	case events.AccountUpdated:
		var data events.AccountUpdatedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.invalidateUsers(ctx, data.UserIDs...)
	case events.BalanceUpdated:
		var data events.BalanceUpdatedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.invalidateUsers(ctx, data.UserIDs...)
	case events.AccountDeleted:
		var data events.AccountDeletedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.invalidateUsers(ctx, data.UserIDs...)
	case events.AccountUserAuthorized, events.AccountUserRemoved:
		var data events.AccountUserEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		s.invalidateUsers(ctx, data.UserID)
	}
	return nil
}
