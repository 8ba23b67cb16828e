package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cash-flow/cash_flow/internal/storage"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	entries []Entry
	nextSeq int64
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and local runs.
func NewInMemory() Ledger {
	return &inMemoryLedger{nextSeq: 1}
}

func (l *inMemoryLedger) append(e Entry) Entry {
	e.ID = uuid.New().String()
	e.Seq = l.nextSeq
	l.nextSeq++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	l.entries = append(l.entries, e)
	return e
}

func (l *inMemoryLedger) Append(ctx context.Context, entry Entry) (string, error) {
	if err := validateEntry(entry); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := l.append(entry)
	l.registerUndo(ctx, 1)
	return stored.ID, nil
}

func (l *inMemoryLedger) AppendPair(ctx context.Context, debit, credit Entry) ([2]string, error) {
	if err := validatePair(debit, credit); err != nil {
		return [2]string{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	d := l.append(debit)
	c := l.append(credit)
	l.registerUndo(ctx, 2)
	return [2]string{d.ID, c.ID}, nil
}

// registerUndo drops the last n entries if the surrounding scope rolls back.
// Callers hold l.mu.
func (l *inMemoryLedger) registerUndo(ctx context.Context, n int) {
	storage.OnRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.entries = l.entries[:len(l.entries)-n]
	})
}

func (l *inMemoryLedger) ListByAccount(_ context.Context, accountID, cursor string, limit int) ([]Entry, string, error) {
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

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := l.entries[i]
		if e.AccountID != accountID {
			continue
		}
		if before != 0 && e.Seq >= before {
			continue
		}
		out = append(out, e)
	}

	next := ""
	if len(out) == limit {
		next = strconv.FormatInt(out[len(out)-1].Seq, 10)
	}
	return out, next, nil
}
