package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cash-flow/cash_flow/internal/storage"
)

// PostgresLedger persists entries in PostgreSQL. Ordering comes from a
// bigserial sequence column, so re-querying a page yields the same prefix
// plus whatever landed since.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) q(ctx context.Context) storage.Querier {
	return storage.QuerierFrom(ctx, l.db)
}

const insertEntry = `INSERT INTO ledger_entries
    (id, account_id, kind, entry_type, amount, transfer_id, counterparty, status, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func insertArgs(e Entry, id uuid.UUID) []any {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return []any{id, e.AccountID, string(e.Kind), string(e.Type), e.Amount, e.TransferID, e.Counterparty, string(e.Status), created.UTC()}
}

// Append writes a single entry.
func (l *PostgresLedger) Append(ctx context.Context, entry Entry) (string, error) {
	if err := validateEntry(entry); err != nil {
		return "", err
	}
	id := uuid.New()
	if _, err := l.q(ctx).Exec(ctx, insertEntry, insertArgs(entry, id)...); err != nil {
		return "", err
	}
	return id.String(), nil
}

// AppendPair writes both sides of a transfer. Inside an active TxScope the
// inserts join that transaction; standalone calls open their own so the pair
// still lands atomically.
func (l *PostgresLedger) AppendPair(ctx context.Context, debit, credit Entry) ([2]string, error) {
	if err := validatePair(debit, credit); err != nil {
		return [2]string{}, err
	}

	debitID, creditID := uuid.New(), uuid.New()

	write := func(ctx context.Context, q storage.Querier) error {
		if _, err := q.Exec(ctx, insertEntry, insertArgs(debit, debitID)...); err != nil {
			return err
		}
		_, err := q.Exec(ctx, insertEntry, insertArgs(credit, creditID)...)
		return err
	}

	if storage.InTx(ctx) {
		if err := write(ctx, l.q(ctx)); err != nil {
			return [2]string{}, err
		}
		return [2]string{debitID.String(), creditID.String()}, nil
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return [2]string{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	if err := write(ctx, tx); err != nil {
		return [2]string{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return [2]string{}, err
	}
	return [2]string{debitID.String(), creditID.String()}, nil
}

// ListByAccount pages through an account's entries newest first using the
// sequence column as a keyset cursor.
func (l *PostgresLedger) ListByAccount(ctx context.Context, accountID, cursor string, limit int) ([]Entry, string, error) {
	if limit <= 0 {
		limit = 20
	}
	var before int64
	if cursor != "" {
		parsed, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", ErrInvalidEntry
		}
		before = parsed
	}

	const query = `SELECT id, seq, account_id, kind, entry_type, amount, transfer_id, counterparty, status, created_at
        FROM ledger_entries
        WHERE account_id = $1 AND ($2::bigint = 0 OR seq < $2)
        ORDER BY seq DESC
        LIMIT $3`

	rows, err := l.q(ctx).Query(ctx, query, accountID, before, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e       Entry
			id      uuid.UUID
			created time.Time
		)
		var kind, entryType, status string
		if err := rows.Scan(&id, &e.Seq, &e.AccountID, &kind, &entryType, &e.Amount, &e.TransferID, &e.Counterparty, &status, &created); err != nil {
			return nil, "", err
		}
		e.ID = id.String()
		e.Kind = Kind(kind)
		e.Type = Type(entryType)
		e.Status = Status(status)
		e.CreatedAt = created.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", err
	}

	next := ""
	if len(entries) == limit {
		next = strconv.FormatInt(entries[len(entries)-1].Seq, 10)
	}
	return entries, next, nil
}
