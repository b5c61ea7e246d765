package repository

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/models"
	sharedredis "github.com/eaglebank/registry/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const (
	userViewKeyPrefix    = "registry:user:view:"
	accountViewKeyPrefix = "registry:account:view:"
)

func userViewKey(id int64) string    { return userViewKeyPrefix + strconv.FormatInt(id, 10) }
func accountViewKey(id int64) string { return accountViewKeyPrefix + strconv.FormatInt(id, 10) }

// ReadRepository serves single-entity views. Redis is tried first; on a miss
// the view is built from the store and the cache is warmed. Command services
// invalidate entries after every commit that changes what a view shows.
//
// Invalidations bump epoch before deleting keys. A warm that overlaps an
// invalidation in this process is skipped or undone, so a view read before a
// commit is never left cached after it. Other instances rely on the stream
// projectors and the TTL for the same guarantee.
type ReadRepository struct {
	uow      UnitOfWork
	users    *sharedredis.ViewCache[models.UserView]
	accounts *sharedredis.ViewCache[models.AccountView]
	metrics  *metrics.Metrics
	epoch    atomic.Uint64
}

// NewReadRepository builds a read repository. A nil client disables caching.
func NewReadRepository(uow UnitOfWork, client *goredis.Client, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *ReadRepository {
	return &ReadRepository{
		uow:      uow,
		users:    sharedredis.NewViewCache[models.UserView](client, ttl, log),
		accounts: sharedredis.NewViewCache[models.AccountView](client, ttl, log),
		metrics:  m,
	}
}

// GetUserView returns ErrNotFound when no such user exists.
func (r *ReadRepository) GetUserView(ctx context.Context, id int64) (*models.UserView, error) {
	key := userViewKey(id)
	if r.users.Enabled() {
		view, ok := r.users.Get(ctx, key)
		r.metrics.IncrementViewCache("user", ok)
		if ok {
			return view, nil
		}
	}

	started := r.epoch.Load()
	var view *models.UserView
	err := r.uow.RunInTx(ctx, func(s Store) error {
		u, err := s.FindUserByID(ctx, id)
		if err != nil {
			return err
		}
		view = models.ToUserView(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	warm(ctx, r, r.users, key, view, started)
	return view, nil
}

// GetAccountView returns ErrNotFound when no such account exists.
func (r *ReadRepository) GetAccountView(ctx context.Context, id int64) (*models.AccountView, error) {
	key := accountViewKey(id)
	if r.accounts.Enabled() {
		view, ok := r.accounts.Get(ctx, key)
		r.metrics.IncrementViewCache("account", ok)
		if ok {
			return view, nil
		}
	}

	started := r.epoch.Load()
	var view *models.AccountView
	err := r.uow.RunInTx(ctx, func(s Store) error {
		a, err := s.FindAccountByID(ctx, id)
		if err != nil {
			return err
		}
		view = models.ToAccountView(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	warm(ctx, r, r.accounts, key, view, started)
	return view, nil
}

// warm caches view unless an invalidation ran since started. One that lands
// between the check and the write is caught by the second check.
func warm[T any](ctx context.Context, r *ReadRepository, cache *sharedredis.ViewCache[T], key string, view *T, started uint64) {
	if r.epoch.Load() != started {
		return
	}
	cache.Set(ctx, key, view)
	if r.epoch.Load() != started {
		cache.Delete(ctx, key)
	}
}

func (r *ReadRepository) InvalidateUserViews(ctx context.Context, ids ...int64) {
	r.epoch.Add(1)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, userViewKey(id))
	}
	r.users.Delete(ctx, keys...)
}

func (r *ReadRepository) InvalidateAccountViews(ctx context.Context, ids ...int64) {
	r.epoch.Add(1)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, accountViewKey(id))
	}
	r.accounts.Delete(ctx, keys...)
}
