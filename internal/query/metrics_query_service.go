package query

import (
	"context"

	"github.com/eaglebank/registry/internal/repository"
	"github.com/eaglebank/registry/shared/apperr"
	"github.com/eaglebank/registry/shared/cqrs"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/models"
)

// MetricsQueryService answers balance-predicate counts. Both bounds are
// exclusive; a range whose lower bound is not below the upper one counts zero.
type MetricsQueryService struct {
	uow repository.UnitOfWork
	log *logger.Logger
}

func NewMetricsQueryService(uow repository.UnitOfWork, log *logger.Logger) *MetricsQueryService {
	if log == nil {
		log = logger.Nop()
	}
	return &MetricsQueryService{uow: uow, log: log.With("service", "metrics-query")}
}

func (s *MetricsQueryService) CountAccounts(ctx context.Context, q cqrs.CountAccountsQuery) (*models.AccountMetricsView, error) {
	gt, lt := q.GreaterThan, q.LessThan
	if gt == nil && lt == nil {
		return nil, apperr.Invalid(apperr.MsgMetricsBoundMissing, nil)
	}

	var (
		count     int64
		condition string
	)
	err := s.uow.RunInTx(ctx, func(st repository.Store) error {
		var err error
		switch {
		case gt != nil && lt != nil:
			condition = "balance > " + gt.String() + " AND balance < " + lt.String()
			count, err = st.CountAccountsWithBalanceBetween(ctx, *gt, *lt)
		case gt != nil:
			condition = "balance > " + gt.String()
			count, err = st.CountAccountsWithBalanceGreaterThan(ctx, *gt)
		default:
			condition = "balance < " + lt.String()
			count, err = st.CountAccountsWithBalanceLessThan(ctx, *lt)
		}
		return err
	})
	if err != nil {
		return nil, translate(s.log, "count_accounts", err, "")
	}
	return &models.AccountMetricsView{Count: count, Condition: condition}, nil
}
