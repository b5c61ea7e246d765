package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/models"
	"github.com/shopspring/decimal"
)

type userRow struct {
	id        int64
	name      string
	email     string
	createdAt time.Time
	updatedAt time.Time
}

type accountRow struct {
	id            int64
	accountNumber string
	balance       decimal.Decimal
	createdAt     time.Time
	updatedAt     time.Time
}

type linkRow struct {
	id        int64
	accountID int64
	userID    int64
	role      models.Role
}

// memoryState holds plain rows. Entity graphs are rebuilt from it for every
// read, so no pointer escapes a unit of work.
type memoryState struct {
	users    map[int64]userRow
	accounts map[int64]accountRow
	links    map[models.AssociationKey]linkRow

	nextUserID    int64
	nextAccountID int64
	nextLinkID    int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:    make(map[int64]userRow),
		accounts: make(map[int64]accountRow),
		links:    make(map[models.AssociationKey]linkRow),
	}
}

func (s *memoryState) clone() *memoryState {
	c := *s
	c.users = maps.Clone(s.users)
	c.accounts = maps.Clone(s.accounts)
	c.links = maps.Clone(s.links)
	return &c
}

// MemoryUnitOfWork is an in-process UnitOfWork. Units of work are serialized
// by a single mutex and each one writes to a copy of the state that replaces
// the committed state only when fn succeeds.
type MemoryUnitOfWork struct {
	mu      sync.Mutex
	state   *memoryState
	metrics *metrics.Metrics
}

func NewMemoryUnitOfWork(m *metrics.Metrics) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{state: newMemoryState(), metrics: m}
}

func (u *MemoryUnitOfWork) RunInTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	defer u.metrics.ObserveTx(time.Now())

	u.mu.Lock()
	defer u.mu.Unlock()

	working := u.state.clone()
	if err := fn(&memoryStore{st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	u.state = working
	return nil
}

type memoryStore struct {
	st *memoryState
}

func userFromRow(r userRow) *models.User {
	return &models.User{ID: r.id, Name: r.name, Email: r.email, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}
}

func accountFromRow(r accountRow) *models.Account {
	return &models.Account{ID: r.id, AccountNumber: r.accountNumber, Balance: r.balance, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}
}

// linksWhere returns matching links ordered by insertion.
func (s *memoryStore) linksWhere(match func(linkRow) bool) []linkRow {
	var out []linkRow
	for _, l := range s.st.links {
		if match(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b linkRow) int { return cmp.Compare(a.id, b.id) })
	return out
}

func (s *memoryStore) hydrateUser(r userRow) *models.User {
	u := userFromRow(r)
	for _, l := range s.linksWhere(func(l linkRow) bool { return l.userID == r.id }) {
		models.Link(accountFromRow(s.st.accounts[l.accountID]), u, l.role, l.id)
	}
	return u
}

func (s *memoryStore) hydrateAccount(r accountRow) *models.Account {
	a := accountFromRow(r)
	for _, l := range s.linksWhere(func(l linkRow) bool { return l.accountID == r.id }) {
		models.Link(a, userFromRow(s.st.users[l.userID]), l.role, l.id)
	}
	return a
}

// ---------- users ----------

func (s *memoryStore) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	r, ok := s.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateUser(r), nil
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	for _, r := range s.st.users {
		if r.email == email {
			return s.hydrateUser(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) SaveUser(_ context.Context, u *models.User) error {
	u.BeforeSave()
	for _, r := range s.st.users {
		if r.email == u.Email && r.id != u.ID {
			return ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()

	if u.ID == 0 {
		s.st.nextUserID++
		u.ID = s.st.nextUserID
		u.CreatedAt = now
	} else {
		existing, ok := s.st.users[u.ID]
		if !ok {
			return ErrNotFound
		}
		u.CreatedAt = existing.createdAt
	}
	u.UpdatedAt = now
	s.st.users[u.ID] = userRow{id: u.ID, name: u.Name, email: u.Email, createdAt: u.CreatedAt, updatedAt: u.UpdatedAt}
	return nil
}

func (s *memoryStore) DeleteUserByID(_ context.Context, id int64) error {
	if _, ok := s.st.users[id]; !ok {
		return ErrNotFound
	}
	for k, l := range s.st.links {
		if l.userID == id {
			delete(s.st.links, k)
		}
	}
	delete(s.st.users, id)
	return nil
}

func (s *memoryStore) ListUsers(_ context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, len(s.st.users))
	for _, id := range slices.Sorted(maps.Keys(s.st.users)) {
		users = append(users, s.hydrateUser(s.st.users[id]))
	}
	return users, nil
}

// ---------- accounts ----------

func (s *memoryStore) FindAccountByID(_ context.Context, id int64) (*models.Account, error) {
	r, ok := s.st.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateAccount(r), nil
}

func (s *memoryStore) FindAccountByNumber(_ context.Context, accountNumber string) (*models.Account, error) {
	for _, r := range s.st.accounts {
		if r.accountNumber == accountNumber {
			return s.hydrateAccount(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) SaveAccount(_ context.Context, a *models.Account) error {
	if err := models.ValidateBalance(a.Balance); err != nil {
		return err
	}
	a.SetBalance(a.Balance)
	for _, r := range s.st.accounts {
		if r.accountNumber == a.AccountNumber && r.id != a.ID {
			return ErrDuplicateAccountNumber
		}
	}
	now := time.Now().UTC()

	if a.ID == 0 {
		s.st.nextAccountID++
		a.ID = s.st.nextAccountID
		a.CreatedAt = now
	} else {
		existing, ok := s.st.accounts[a.ID]
		if !ok {
			return ErrNotFound
		}
		a.CreatedAt = existing.createdAt
	}
	a.UpdatedAt = now
	s.st.accounts[a.ID] = accountRow{id: a.ID, accountNumber: a.AccountNumber, balance: a.Balance, createdAt: a.CreatedAt, updatedAt: a.UpdatedAt}
	return s.syncAccountLinks(a)
}

// syncAccountLinks mirrors the relational behaviour: links missing from the
// set are deleted first, then unsaved links are inserted subject to the
// same uniqueness rules the schema enforces.
func (s *memoryStore) syncAccountLinks(a *models.Account) error {
	keep := make(map[int64]bool, len(a.AccountUsers))
	for _, au := range a.AccountUsers {
		if au.ID != 0 {
			keep[au.ID] = true
		}
	}
	for k, l := range s.st.links {
		if l.accountID == a.ID && !keep[l.id] {
			delete(s.st.links, k)
		}
	}

	for _, au := range a.AccountUsers {
		if au.ID != 0 {
			continue
		}
		if au.User == nil || au.User.ID == 0 {
			return fmt.Errorf("account user for account %d has no persisted user", a.ID)
		}
		if !au.Role.Valid() {
			return fmt.Errorf("account user for account %d: %w", a.ID, ErrUnknownRole)
		}
		if _, ok := s.st.users[au.User.ID]; !ok {
			return fmt.Errorf("account user references user %d: %w", au.User.ID, ErrNotFound)
		}
		key := models.AssociationKey{AccountID: a.ID, UserID: au.User.ID}
		if _, exists := s.st.links[key]; exists {
			return ErrDuplicateAssociation
		}
		if au.Role == models.RolePrimary && len(s.linksWhere(func(l linkRow) bool {
			return l.accountID == a.ID && l.role == models.RolePrimary
		})) > 0 {
			return fmt.Errorf("account %d already has a primary user", a.ID)
		}
		s.st.nextLinkID++
		au.ID = s.st.nextLinkID
		s.st.links[key] = linkRow{id: au.ID, accountID: a.ID, userID: au.User.ID, role: au.Role}
	}
	return nil
}

func (s *memoryStore) DeleteAccountByID(_ context.Context, id int64) error {
	if _, ok := s.st.accounts[id]; !ok {
		return ErrNotFound
	}
	for k, l := range s.st.links {
		if l.accountID == id {
			delete(s.st.links, k)
		}
	}
	delete(s.st.accounts, id)
	return nil
}

func (s *memoryStore) ListAccounts(_ context.Context) ([]*models.Account, error) {
	accounts := make([]*models.Account, 0, len(s.st.accounts))
	for _, id := range slices.Sorted(maps.Keys(s.st.accounts)) {
		accounts = append(accounts, s.hydrateAccount(s.st.accounts[id]))
	}
	return accounts, nil
}

// ---------- associations ----------

func (s *memoryStore) FindAssociation(_ context.Context, accountID, userID int64) (*models.AccountUser, error) {
	l, ok := s.st.links[models.AssociationKey{AccountID: accountID, UserID: userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.AccountUser{
		ID:      l.id,
		Account: accountFromRow(s.st.accounts[l.accountID]),
		User:    userFromRow(s.st.users[l.userID]),
		Role:    l.role,
	}, nil
}

// ---------- metrics ----------

func (s *memoryStore) countWhere(match func(decimal.Decimal) bool) int64 {
	var n int64
	for _, r := range s.st.accounts {
		if match(r.balance) {
			n++
		}
	}
	return n
}

func (s *memoryStore) CountAccountsWithBalanceGreaterThan(_ context.Context, bound decimal.Decimal) (int64, error) {
	return s.countWhere(func(b decimal.Decimal) bool { return b.GreaterThan(bound) }), nil
}

func (s *memoryStore) CountAccountsWithBalanceLessThan(_ context.Context, bound decimal.Decimal) (int64, error) {
	return s.countWhere(func(b decimal.Decimal) bool { return b.LessThan(bound) }), nil
}

func (s *memoryStore) CountAccountsWithBalanceBetween(_ context.Context, gt, lt decimal.Decimal) (int64, error) {
	return s.countWhere(func(b decimal.Decimal) bool { return b.GreaterThan(gt) && b.LessThan(lt) }), nil
}
