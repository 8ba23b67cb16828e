// Package transfer implements the funds-transfer engine: the single path
// through which value moves between accounts. A transfer either fully
// commits (both balances adjusted, debit/credit pair in the ledger) or has
// no observable effect.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/ledger"
	"github.com/cash-flow/cash_flow/internal/money"
	"github.com/cash-flow/cash_flow/internal/notification"
	"github.com/cash-flow/cash_flow/internal/storage"
)

// Reason is the stable rejection code surfaced to callers. The set is
// closed: handlers and clients branch on it exhaustively.
type Reason string

const (
	ReasonInvalidAmount     Reason = "invalid_amount"
	ReasonRecipientNotFound Reason = "recipient_not_found"
	ReasonSelfTransfer      Reason = "self_transfer"
	ReasonInsufficientFunds Reason = "insufficient_funds"
)

// RejectedError reports that a transfer was refused before committing
// anything. Rejections are never retried by the engine.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string {
	return "transfer rejected: " + string(e.Reason)
}

var (
	ErrInvalidAmount     = &RejectedError{Reason: ReasonInvalidAmount}
	ErrRecipientNotFound = &RejectedError{Reason: ReasonRecipientNotFound}
	ErrSelfTransfer      = &RejectedError{Reason: ReasonSelfTransfer}
	ErrInsufficientFunds = &RejectedError{Reason: ReasonInsufficientFunds}

	// ErrTransferFailed covers storage-layer failures. No partial state is
	// observable afterwards, so the caller may safely re-issue the call.
	ErrTransferFailed = errors.New("transfer failed")
)

// Version conflicts on the sender retry the reserve step this many times
// before the attempt is surfaced as failed.
const maxCommitAttempts = 3

// Result describes a committed movement.
type Result struct {
	TransferID  string
	NewBalance  int64
	CompletedAt time.Time
}

// Engine orchestrates validation, balance mutation and ledger writes.
type Engine struct {
	accounts  account.Store
	ledger    ledger.Ledger
	scope     storage.TxScope
	notifier  notification.Notifier
	locks     *accountLocks
	maxAmount int64
}

// NewEngine builds a transfer engine. maxAmount bounds a single movement in
// minor units; zero means unbounded.
func NewEngine(accounts account.Store, led ledger.Ledger, scope storage.TxScope, notifier notification.Notifier, maxAmount int64) *Engine {
	return &Engine{
		accounts:  accounts,
		ledger:    led,
		scope:     scope,
		notifier:  notifier,
		locks:     newAccountLocks(),
		maxAmount: maxAmount,
	}
}

// Execute moves amount from the sender to the account registered for
// recipientPhone. The amount is validated before any recipient lookup; the
// reserve-then-commit sequence runs with both account locks held, acquired
// in ascending id order.
func (e *Engine) Execute(ctx context.Context, senderID, recipientPhone string, amount int64) (Result, error) {
	if amount <= 0 || (e.maxAmount > 0 && amount > e.maxAmount) {
		return Result{}, ErrInvalidAmount
	}

	recipient, err := e.accounts.FindByPhone(ctx, recipientPhone)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Result{}, ErrRecipientNotFound
		}
		return Result{}, fmt.Errorf("%w: resolve recipient: %v", ErrTransferFailed, err)
	}
	if recipient.ID == senderID {
		return Result{}, ErrSelfTransfer
	}

	release := e.locks.Acquire(senderID, recipient.ID)
	defer release()

	transferID := uuid.New().String()

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		sender, err := e.accounts.Get(ctx, senderID)
		if err != nil {
			return Result{}, fmt.Errorf("%w: read sender: %v", ErrTransferFailed, err)
		}
		if sender.Balance < amount {
			return Result{}, ErrInsufficientFunds
		}

		now := time.Now().UTC()
		var newBalance int64
		err = e.scope.Within(ctx, func(ctx context.Context) error {
			nb, err := e.accounts.AdjustBalance(ctx, sender.ID, -amount, sender.Version)
			if err != nil {
				return err
			}
			if _, err := e.accounts.AdjustBalance(ctx, recipient.ID, amount, account.AnyVersion); err != nil {
				return err
			}
			debit := ledger.Entry{
				AccountID:    sender.ID,
				Kind:         ledger.KindDebit,
				Type:         ledger.TypeTransfer,
				Amount:       amount,
				TransferID:   transferID,
				Counterparty: recipient.Phone,
				Status:       ledger.StatusCompleted,
				CreatedAt:    now,
			}
			credit := ledger.Entry{
				AccountID:    recipient.ID,
				Kind:         ledger.KindCredit,
				Type:         ledger.TypeTransfer,
				Amount:       amount,
				TransferID:   transferID,
				Counterparty: sender.Phone,
				Status:       ledger.StatusCompleted,
				CreatedAt:    now,
			}
			if _, err := e.ledger.AppendPair(ctx, debit, credit); err != nil {
				return err
			}
			newBalance = nb
			return nil
		})

		switch {
		case err == nil:
			e.notifyReceived(ctx, sender.Phone, recipient.Phone, amount)
			return Result{TransferID: transferID, NewBalance: newBalance, CompletedAt: now}, nil
		case errors.Is(err, account.ErrVersionConflict):
			// The sender changed between reserve and commit; re-read and retry.
			continue
		case errors.Is(err, account.ErrInsufficientFunds):
			return Result{}, ErrInsufficientFunds
		default:
			return Result{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	return Result{}, ErrTransferFailed
}

// Deposit credits an account from an external funding source and records a
// single completed deposit entry.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount int64) (Result, error) {
	if amount <= 0 || (e.maxAmount > 0 && amount > e.maxAmount) {
		return Result{}, ErrInvalidAmount
	}

	release := e.locks.Acquire(accountID)
	defer release()

	depositID := uuid.New().String()
	now := time.Now().UTC()

	var newBalance int64
	err := e.scope.Within(ctx, func(ctx context.Context) error {
		nb, err := e.accounts.AdjustBalance(ctx, accountID, amount, account.AnyVersion)
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			AccountID:  accountID,
			Kind:       ledger.KindCredit,
			Type:       ledger.TypeDeposit,
			Amount:     amount,
			TransferID: depositID,
			Status:     ledger.StatusCompleted,
			CreatedAt:  now,
		}
		if _, err := e.ledger.Append(ctx, entry); err != nil {
			return err
		}
		newBalance = nb
		return nil
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: account not found", ErrTransferFailed)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	return Result{TransferID: depositID, NewBalance: newBalance, CompletedAt: now}, nil
}

func (e *Engine) notifyReceived(ctx context.Context, senderPhone, recipientPhone string, amount int64) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: recipientPhone,
		Body:        fmt.Sprintf("You received %s from %s", money.Format(amount), senderPhone),
	})
}
