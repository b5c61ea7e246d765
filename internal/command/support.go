package command

import (
	"context"
	"errors"
	"strings"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/events"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/models"
	"github.com/shopspring/decimal"
)

// Deps are the collaborators shared by the command services. Publisher,
// Metrics and ReadRepo may be disabled (nil client, nil pointer) in tests.
type Deps struct {
	UnitOfWork repository.UnitOfWork
	ReadRepo   *repository.ReadRepository
	Publisher  *events.Publisher
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

type support struct {
	uow       repository.UnitOfWork
	readRepo  *repository.ReadRepository
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func newSupport(d Deps, service string) support {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return support{
		uow:       d.UnitOfWork,
		readRepo:  d.ReadRepo,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       log.With("service", service),
	}
}

// fail records a rejected operation. Domain errors are returned unchanged;
// anything else is logged and hidden behind an Internal error.
func (s *support) fail(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		s.metrics.IncrementRuleRejection(op, appErr.Kind.String())
		return err
	}
	s.log.Error("operation failed", "operation", op, "error", err)
	s.metrics.IncrementRuleRejection(op, apperr.Internal.String())
	return apperr.Wrap(err, apperr.Internal, apperr.MsgInternal)
}

// publish emits an event after commit. Delivery failures never fail the
// operation; the read model TTL bounds the staleness they cause.
func (s *support) publish(ctx context.Context, stream, eventType string, data any) {
	if !s.publisher.Enabled() {
		return
	}
	err := s.publisher.Publish(ctx, stream, eventType, data)
	s.metrics.IncrementEventPublished(eventType, err)
	if err != nil {
		s.log.Warn("failed to publish event", "type", eventType, "error", err)
	}
}

func (s *support) invalidateUsers(ctx context.Context, ids ...int64) {
	if s.readRepo != nil && len(ids) > 0 {
		s.readRepo.InvalidateUserViews(ctx, ids...)
	}
}

func (s *support) invalidateAccounts(ctx context.Context, ids ...int64) {
	if s.readRepo != nil && len(ids) > 0 {
		s.readRepo.InvalidateAccountViews(ctx, ids...)
	}
}

func findUser(ctx context.Context, st repository.Store, id int64) (*models.User, error) {
	u, err := st.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, apperr.MsgUserNotFound, id)
	}
	return u, err
}

func findAccount(ctx context.Context, st repository.Store, id int64) (*models.Account, error) {
	a, err := st.FindAccountByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, apperr.MsgAccountNotFound, id)
	}
	return a, err
}

func validateBalance(balance decimal.Decimal) error {
	switch err := models.ValidateBalance(balance); {
	case errors.Is(err, models.ErrBalanceTooLarge):
		return apperr.Invalid(apperr.MsgBalanceTooLarge, map[string]string{"balance": apperr.MsgBalanceTooLarge})
	case err != nil:
		return apperr.Invalid(apperr.MsgBalanceNegative, map[string]string{"balance": apperr.MsgBalanceNegative})
	}
	return nil
}

// requireText rejects empty and whitespace-only values of a required field.
func requireText(field, value, message string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Invalid(message, map[string]string{field: message})
	}
	return nil
}

// linkedUserIDs lists the users whose views embed account a.
func linkedUserIDs(a *models.Account) []int64 {
	ids := make([]int64, 0, len(a.AccountUsers))
	for _, au := range a.AccountUsers {
		ids = append(ids, au.Key().UserID)
	}
	return ids
}

// linkedAccountIDs lists the accounts whose views embed user u.
func linkedAccountIDs(u *models.User) []int64 {
	ids := make([]int64, 0, len(u.AccountUsers))
	for _, au := range u.AccountUsers {
		ids = append(ids, au.Key().AccountID)
	}
	return ids
}
