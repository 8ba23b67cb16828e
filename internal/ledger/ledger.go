// Package ledger records completed balance movements as an append-only
// history. Entries are written once and never updated or deleted.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Kind marks which side of a movement an entry records.
type Kind string

const (
	KindDebit  Kind = "debit"
	KindCredit Kind = "credit"
)

// Type labels the operation that produced an entry.
type Type string

const (
	TypeTransfer Type = "transfer"
	TypeDeposit  Type = "deposit"
)

// Status is the terminal state of the movement an entry belongs to.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrInvalidEntry indicates a structurally invalid entry (missing
	// account, non-positive amount, unknown kind).
	ErrInvalidEntry = errors.New("invalid ledger entry")

	// ErrUnbalancedPair indicates the debit/credit pair passed to
	// AppendPair does not describe one transfer: mismatched transfer ids,
	// mismatched amounts, wrong kinds, or the same account on both sides.
	ErrUnbalancedPair = errors.New("unbalanced ledger pair")
)

// Entry is one immutable ledger line. Seq is assigned by the backend and
// orders entries; entries belonging to the same transfer share a TransferID.
type Entry struct {
	ID           string
	Seq          int64
	AccountID    string
	Kind         Kind
	Type         Type
	Amount       int64
	TransferID   string
	Counterparty string
	Status       Status
	CreatedAt    time.Time
}

// Ledger is the contract implemented by ledger backends. AppendPair writes
// both sides of a transfer atomically, which keeps the pairing invariant
// enforceable here rather than by caller discipline.
type Ledger interface {
	Append(ctx context.Context, entry Entry) (string, error)
	AppendPair(ctx context.Context, debit, credit Entry) ([2]string, error)
	ListByAccount(ctx context.Context, accountID, cursor string, limit int) ([]Entry, string, error)
}

func validateEntry(e Entry) error {
	if e.AccountID == "" || e.Amount <= 0 {
		return ErrInvalidEntry
	}
	switch e.Kind {
	case KindDebit, KindCredit:
	default:
		return ErrInvalidEntry
	}
	switch e.Status {
	case StatusCompleted, StatusFailed:
	default:
		return ErrInvalidEntry
	}
	return nil
}

func validatePair(debit, credit Entry) error {
	if err := validateEntry(debit); err != nil {
		return err
	}
	if err := validateEntry(credit); err != nil {
		return err
	}
	switch {
	case debit.Kind != KindDebit || credit.Kind != KindCredit:
		return ErrUnbalancedPair
	case debit.TransferID == "" || debit.TransferID != credit.TransferID:
		return ErrUnbalancedPair
	case debit.Amount != credit.Amount:
		return ErrUnbalancedPair
	case debit.AccountID == credit.AccountID:
		return ErrUnbalancedPair
	}
	return nil
}
