package query

import (
	"context"
	"errors"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/models"
)

// UserQueryService reads user views from the Redis cache (with a store fallback).
// Lists and balances are always computed from the store.
type UserQueryService struct {
	uow      repository.UnitOfWork
	readRepo *repository.ReadRepository
	log      *logger.Logger
}

func NewUserQueryService(uow repository.UnitOfWork, readRepo *repository.ReadRepository, log *logger.Logger) *UserQueryService {
	if log == nil {
		log = logger.Nop()
	}
	return &UserQueryService{uow: uow, readRepo: readRepo, log: log.With("service", "user-query")}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.UserView, error) {
	view, err := s.readRepo.GetUserView(ctx, q.UserID)
	if err != nil {
		return nil, s.fail("get_user", err, apperr.MsgUserNotFound, q.UserID)
	}
	return view, nil
}

func (s *UserQueryService) ListUsers(ctx context.Context, _ cqrs.ListUsersQuery) ([]models.UserView, error) {
	var views []models.UserView
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		users, err := st.ListUsers(ctx)
		if err != nil {
			return err
		}
		views = make([]models.UserView, 0, len(users))
		for _, u := range users {
			views = append(views, *models.ToUserView(u))
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("list_users", err, "")
	}
	return views, nil
}

// GetUserBalance sums every account the user is linked to, PRIMARY and
// AUTHORIZED alike.
func (s *UserQueryService) GetUserBalance(ctx context.Context, q cqrs.GetUserBalanceQuery) (*models.UserBalanceView, error) {
	var view *models.UserBalanceView
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		u, err := st.FindUserByID(ctx, q.UserID)
		if err != nil {
			return err
		}
		view = models.ToUserBalanceView(u)
		return nil
	})
	if err != nil {
		return nil, s.fail("get_user_balance", err, apperr.MsgUserNotFound, q.UserID)
	}
	return view, nil
}

func (s *UserQueryService) fail(op string, err error, notFound string, args ...any) error {
	return translate(s.log, op, err, notFound, args...)
}

// translate maps store errors onto domain errors. notFound is the message
// used for repository.ErrNotFound; an empty message treats it as internal.
func translate(log *logger.Logger, op string, err error, notFound string, args ...any) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if notFound != "" && errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, notFound, args...)
	}
	log.Error("query failed", "operation", op, "error", err)
	return apperr.Wrap(err, apperr.Internal, apperr.MsgInternal)
}
