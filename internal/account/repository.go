package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cash-flow/cash_flow/internal/storage"
)

// AnyVersion disables the optimistic version check on AdjustBalance.
const AnyVersion int64 = -1

var (
	// ErrNotFound occurs when no account matches the given id or phone.
	ErrNotFound = errors.New("account not found")

	// ErrPhoneTaken occurs when creating an account for an already
	// registered phone number.
	ErrPhoneTaken = errors.New("phone already registered")

	// ErrInsufficientFunds occurs when a debit would drive the balance
	// negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrVersionConflict occurs when the account changed since the version
	// passed to AdjustBalance was read.
	ErrVersionConflict = errors.New("account version conflict")
)

// Store persists accounts. AdjustBalance is the only balance mutation and is
// safe under concurrent calls against the same account: the delta either
// applies atomically against a non-negative result or fails.
type Store interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id string) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
	UpdateProfile(ctx context.Context, id, name, birthdate string) (Account, error)
	BumpTokenVersion(ctx context.Context, id string) error
	AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (int64, error)
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed account store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) q(ctx context.Context) storage.Querier {
	return storage.QuerierFrom(ctx, r.db)
}

// Create inserts a new account record.
func (r *PostgresStore) Create(ctx context.Context, acct Account) error {
	id, err := uuid.Parse(acct.ID)
	if err != nil {
		return err
	}
	_, err = r.q(ctx).Exec(ctx, `INSERT INTO accounts (id, phone, display_name, birthdate, balance, version, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, acct.Phone, acct.DisplayName, acct.Birthdate, acct.Balance, acct.Version, acct.TokenVersion, acct.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPhoneTaken
	}
	return err
}

const accountColumns = `id, phone, display_name, birthdate, balance, version, token_version, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct Account
		id   uuid.UUID
		at   time.Time
	)
	if err := row.Scan(&id, &acct.Phone, &acct.DisplayName, &acct.Birthdate, &acct.Balance, &acct.Version, &acct.TokenVersion, &at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.ID = id.String()
	acct.CreatedAt = at.UTC()
	return acct, nil
}

// Get fetches an account by identifier.
func (r *PostgresStore) Get(ctx context.Context, id string) (Account, error) {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return scanAccount(r.q(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, acctID))
}

// FindByPhone fetches an account by phone number.
func (r *PostgresStore) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return scanAccount(r.q(ctx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone))
}

// UpdateProfile sets the display name and birthdate.
func (r *PostgresStore) UpdateProfile(ctx context.Context, id, name, birthdate string) (Account, error) {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	row := r.q(ctx).QueryRow(ctx, `UPDATE accounts SET display_name = $1, birthdate = $2 WHERE id = $3
        RETURNING `+accountColumns, name, birthdate, acctID)
	return scanAccount(row)
}

// BumpTokenVersion invalidates previously issued tokens for the account.
func (r *PostgresStore) BumpTokenVersion(ctx context.Context, id string) error {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.q(ctx).Exec(ctx, `UPDATE accounts SET token_version = token_version + 1 WHERE id = $1`, acctID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustBalance applies delta atomically, refusing a negative result. When
// expectedVersion is not AnyVersion the update also requires the stored
// version to match, so a stale read cannot overwrite a concurrent change.
func (r *PostgresStore) AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (int64, error) {
	acctID, err := uuid.Parse(id)
	if err != nil {
		return 0, ErrNotFound
	}

	const stmt = `UPDATE accounts
        SET balance = balance + $1, version = version + 1
        WHERE id = $2 AND balance + $1 >= 0 AND ($3::bigint = -1 OR version = $3)
        RETURNING balance`

	var newBalance int64
	err = r.q(ctx).QueryRow(ctx, stmt, delta, acctID, expectedVersion).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// The conditional update matched nothing; distinguish why.
	var balance, version int64
	probe := r.q(ctx).QueryRow(ctx, `SELECT balance, version FROM accounts WHERE id = $1`, acctID)
	if err := probe.Scan(&balance, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if expectedVersion != AnyVersion && version != expectedVersion {
		return 0, ErrVersionConflict
	}
	return 0, ErrInsufficientFunds
}
