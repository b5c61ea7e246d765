package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const defaultTxTimeout = 5 * time.Second

const (
	uniqueViolation = "23505"

	constraintUserEmail     = "uq_users_email"
	constraintAccountNumber = "uq_accounts_account_number"
	constraintAccountUser   = "uq_account_users_account_user"
)

// PostgresUnitOfWork runs each unit of work in one PostgreSQL transaction.
type PostgresUnitOfWork struct {
	db      *sql.DB
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewPostgresUnitOfWork wraps db. A zero timeout falls back to five seconds;
// m may be nil.
func NewPostgresUnitOfWork(db *sql.DB, timeout time.Duration, m *metrics.Metrics) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db, timeout: timeout, metrics: m}
}

func (u *PostgresUnitOfWork) RunInTx(ctx context.Context, fn func(Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	defer u.metrics.ObserveTx(time.Now())

	timeout := u.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&postgresStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// postgresStore is a Store bound to one transaction. Rows read by ID or by
// natural key are locked until the transaction ends so invariant checks hold
// until commit.
type postgresStore struct {
	q querier
}

// translateUniqueViolation maps a unique-constraint failure to the sentinel
// the services already return for the matching pre-check.
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case constraintUserEmail:
		return ErrDuplicateEmail
	case constraintAccountNumber:
		return ErrDuplicateAccountNumber
	case constraintAccountUser:
		return ErrDuplicateAssociation
	}
	return err
}

// ---------- users ----------

const userColumns = `id, name, email, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *postgresStore) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` FOR UPDATE`
	u, err := scanUser(s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.loadUserLinks(ctx, map[int64]*models.User{u.ID: u}); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *postgresStore) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(ctx, `id = $1`, id)
}

func (s *postgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, `email = $1`, models.NormalizeEmail(email))
}

// loadUserLinks attaches every association of the given users, each with
// its account's scalar fields.
func (s *postgresStore) loadUserLinks(ctx context.Context, users map[int64]*models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	query := `
		SELECT au.id, au.user_id, au.role,
			a.id, a.account_number, a.balance, a.created_at, a.updated_at
		FROM account_users au
		JOIN accounts a ON a.id = au.account_id
		WHERE au.user_id = ANY($1)
		ORDER BY au.id
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load user accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[int64]*models.Account)
	for rows.Next() {
		var (
			linkID, userID int64
			role           models.Role
			a              models.Account
		)
		if err := rows.Scan(&linkID, &userID, &role,
			&a.ID, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan user account: %w", err)
		}
		if !role.Valid() {
			return fmt.Errorf("account user %d has role %q: %w", linkID, role, ErrUnknownRole)
		}
		acc, ok := accounts[a.ID]
		if !ok {
			acc = &a
			accounts[a.ID] = acc
		}
		models.Link(acc, users[userID], role, linkID)
	}
	return rows.Err()
}

func (s *postgresStore) SaveUser(ctx context.Context, u *models.User) error {
	u.BeforeSave()
	now := time.Now().UTC()

	if u.ID == 0 {
		query := `
			INSERT INTO users (name, email, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id, created_at, updated_at
		`
		err := s.q.QueryRowContext(ctx, query, u.Name, u.Email, now).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", translateUniqueViolation(err))
		}
		return nil
	}

	query := `UPDATE users SET name = $2, email = $3, updated_at = $4 WHERE id = $1`
	result, err := s.q.ExecContext(ctx, query, u.ID, u.Name, u.Email, now)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateUniqueViolation(err))
	}
	if err := requireRow(result); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

func (s *postgresStore) DeleteUserByID(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRow(result)
}

func (s *postgresStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	byID := make(map[int64]*models.User)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if err := s.loadUserLinks(ctx, byID); err != nil {
		return nil, err
	}
	return users, nil
}

// ---------- accounts ----------

const accountColumns = `id, account_number, balance, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *postgresStore) findAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` FOR UPDATE`
	a, err := scanAccount(s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if err := s.loadAccountLinks(ctx, map[int64]*models.Account{a.ID: a}); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *postgresStore) FindAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.findAccount(ctx, `id = $1`, id)
}

func (s *postgresStore) FindAccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.findAccount(ctx, `account_number = $1`, accountNumber)
}

// loadAccountLinks attaches every association of the given accounts, each
// with its user's scalar fields.
func (s *postgresStore) loadAccountLinks(ctx context.Context, accounts map[int64]*models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	query := `
		SELECT au.id, au.account_id, au.role,
			u.id, u.name, u.email, u.created_at, u.updated_at
		FROM account_users au
		JOIN users u ON u.id = au.user_id
		WHERE au.account_id = ANY($1)
		ORDER BY au.id
	`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load account users: %w", err)
	}
	defer rows.Close()

	users := make(map[int64]*models.User)
	for rows.Next() {
		var (
			linkID, accountID int64
			role              models.Role
		)
		u, err := scanUser(scanPrefix{rows: rows, prefix: []any{&linkID, &accountID, &role}})
		if err != nil {
			return fmt.Errorf("failed to scan account user: %w", err)
		}
		if !role.Valid() {
			return fmt.Errorf("account user %d has role %q: %w", linkID, role, ErrUnknownRole)
		}
		if shared, ok := users[u.ID]; ok {
			u = shared
		} else {
			users[u.ID] = u
		}
		models.Link(accounts[accountID], u, role, linkID)
	}
	return rows.Err()
}

// scanPrefix lets a row scanner for a single entity read a row that carries
// extra leading columns.
type scanPrefix struct {
	rows   *sql.Rows
	prefix []any
}

func (p scanPrefix) Scan(dest ...any) error {
	return p.rows.Scan(append(p.prefix, dest...)...)
}

func (s *postgresStore) SaveAccount(ctx context.Context, a *models.Account) error {
	if err := models.ValidateBalance(a.Balance); err != nil {
		return err
	}
	a.SetBalance(a.Balance)
	now := time.Now().UTC()

	if a.ID == 0 {
		query := `
			INSERT INTO accounts (account_number, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id, created_at, updated_at
		`
		err := s.q.QueryRowContext(ctx, query, a.AccountNumber, a.Balance, now).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", translateUniqueViolation(err))
		}
	} else {
		query := `UPDATE accounts SET account_number = $2, balance = $3, updated_at = $4 WHERE id = $1`
		result, err := s.q.ExecContext(ctx, query, a.ID, a.AccountNumber, a.Balance, now)
		if err != nil {
			return fmt.Errorf("failed to update account: %w", translateUniqueViolation(err))
		}
		if err := requireRow(result); err != nil {
			return err
		}
		a.UpdatedAt = now
	}
	return s.syncAccountLinks(ctx, a)
}

// syncAccountLinks deletes stored links that are no longer in the account's
// set, then inserts links that have not been persisted yet.
func (s *postgresStore) syncAccountLinks(ctx context.Context, a *models.Account) error {
	keep := make([]int64, 0, len(a.AccountUsers))
	for _, au := range a.AccountUsers {
		if au.ID != 0 {
			keep = append(keep, au.ID)
		}
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM account_users WHERE account_id = $1 AND NOT (id = ANY($2))`,
		a.ID, pq.Array(keep),
	); err != nil {
		return fmt.Errorf("failed to remove account users: %w", err)
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
		query := `
			INSERT INTO account_users (account_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING id
		`
		if err := s.q.QueryRowContext(ctx, query, a.ID, au.User.ID, au.Role).Scan(&au.ID); err != nil {
			return fmt.Errorf("failed to add account user: %w", translateUniqueViolation(err))
		}
	}
	return nil
}

func (s *postgresStore) DeleteAccountByID(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return requireRow(result)
}

func (s *postgresStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	byID := make(map[int64]*models.Account)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if err := s.loadAccountLinks(ctx, byID); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ---------- associations ----------

func (s *postgresStore) FindAssociation(ctx context.Context, accountID, userID int64) (*models.AccountUser, error) {
	query := `
		SELECT au.id, au.role,
			a.id, a.account_number, a.balance, a.created_at, a.updated_at,
			u.id, u.name, u.email, u.created_at, u.updated_at
		FROM account_users au
		JOIN accounts a ON a.id = au.account_id
		JOIN users u ON u.id = au.user_id
		WHERE au.account_id = $1 AND au.user_id = $2
	`
	var (
		au models.AccountUser
		a  models.Account
		u  models.User
	)
	err := s.q.QueryRowContext(ctx, query, accountID, userID).Scan(
		&au.ID, &au.Role,
		&a.ID, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account user: %w", err)
	}
	if !au.Role.Valid() {
		return nil, fmt.Errorf("account user %d has role %q: %w", au.ID, au.Role, ErrUnknownRole)
	}
	au.Account = &a
	au.User = &u
	return &au, nil
}

// ---------- metrics ----------

func (s *postgresStore) count(ctx context.Context, where string, args ...any) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func (s *postgresStore) CountAccountsWithBalanceGreaterThan(ctx context.Context, bound decimal.Decimal) (int64, error) {
	return s.count(ctx, `balance > $1`, bound)
}

func (s *postgresStore) CountAccountsWithBalanceLessThan(ctx context.Context, bound decimal.Decimal) (int64, error) {
	return s.count(ctx, `balance < $1`, bound)
}

func (s *postgresStore) CountAccountsWithBalanceBetween(ctx context.Context, gt, lt decimal.Decimal) (int64, error) {
	return s.count(ctx, `balance > $1 AND balance < $2`, gt, lt)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
