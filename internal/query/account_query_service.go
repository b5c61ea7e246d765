package query

import (
	"context"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/models"
)

type AccountQueryService struct {
	uow      repository.UnitOfWork
	readRepo *repository.ReadRepository
	log      *logger.Logger
}

func NewAccountQueryService(uow repository.UnitOfWork, readRepo *repository.ReadRepository, log *logger.Logger) *AccountQueryService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccountQueryService{uow: uow, readRepo: readRepo, log: log.With("service", "account-query")}
}

// GetAccount fetches a single account view with its users ordered PRIMARY first.
func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.AccountView, error) {
	view, err := s.readRepo.GetAccountView(ctx, q.AccountID)
	if err != nil {
		return nil, translate(s.log, "get_account", err, apperr.MsgAccountNotFound, q.AccountID)
	}
	return view, nil
}

func (s *AccountQueryService) ListAccounts(ctx context.Context, _ cqrs.ListAccountsQuery) ([]models.AccountView, error) {
	var views []models.AccountView
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		accounts, err := st.ListAccounts(ctx)
		if err != nil {
			return err
		}
		views = make([]models.AccountView, 0, len(accounts))
		for _, a := range accounts {
			views = append(views, *models.ToAccountView(a))
		}
		return nil
	})
	if err != nil {
		return nil, translate(s.log, "list_accounts", err, "")
	}
	return views, nil
}
