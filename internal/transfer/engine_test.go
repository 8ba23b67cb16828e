package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/ledger"
	"github.com/cash-flow/cash_flow/internal/notification"
	"github.com/cash-flow/cash_flow/internal/storage"
)

type capturedNotifier struct {
	mu   sync.Mutex
	last notification.Message
}

func (n *capturedNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	return nil
}

func newTestEngine(t *testing.T) (*Engine, account.Store, ledger.Ledger, *capturedNotifier) {
	t.Helper()
	accounts := account.NewMemoryStore()
	led := ledger.NewInMemory()
	notifier := &capturedNotifier{}
	engine := NewEngine(accounts, led, storage.NewMemoryScope(), notifier, 1_000_000)
	return engine, accounts, led, notifier
}

func seedAccount(t *testing.T, accounts account.Store, phone string, balance int64) account.Account {
	t.Helper()
	acct := account.Account{
		ID:        uuid.New().String(),
		Phone:     phone,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	if err := accounts.Create(context.Background(), acct); err != nil {
		t.Fatalf("seed account %s: %v", phone, err)
	}
	return acct
}

func mustBalance(t *testing.T, accounts account.Store, id string) int64 {
	t.Helper()
	acct, err := accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.Balance
}

func TestExecuteSuccess(t *testing.T) {
	engine, accounts, led, notifier := newTestEngine(t)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 10_000)
	b := seedAccount(t, accounts, "+15550002", 0)

	res, err := engine.Execute(ctx, a.ID, b.Phone, 3_000)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.NewBalance != 7_000 {
		t.Fatalf("expected new sender balance 7000, got %d", res.NewBalance)
	}
	if res.TransferID == "" {
		t.Fatal("expected a transfer id")
	}
	if got := mustBalance(t, accounts, a.ID); got != 7_000 {
		t.Fatalf("sender balance = %d", got)
	}
	if got := mustBalance(t, accounts, b.ID); got != 3_000 {
		t.Fatalf("recipient balance = %d", got)
	}

	debits, _, err := led.ListByAccount(ctx, a.ID, "", 10)
	if err != nil {
		t.Fatalf("list sender entries: %v", err)
	}
	credits, _, err := led.ListByAccount(ctx, b.ID, "", 10)
	if err != nil {
		t.Fatalf("list recipient entries: %v", err)
	}
	if len(debits) != 1 || len(credits) != 1 {
		t.Fatalf("expected one entry per side, got %d/%d", len(debits), len(credits))
	}
	d, c := debits[0], credits[0]
	if d.Kind != ledger.KindDebit || c.Kind != ledger.KindCredit {
		t.Fatalf("unexpected kinds %s/%s", d.Kind, c.Kind)
	}
	if d.TransferID != res.TransferID || c.TransferID != res.TransferID {
		t.Fatal("entries do not share the transfer id")
	}
	if d.Amount != c.Amount || d.Amount != 3_000 {
		t.Fatalf("pair amounts %d/%d", d.Amount, c.Amount)
	}
	if d.Status != ledger.StatusCompleted || c.Status != ledger.StatusCompleted {
		t.Fatal("pair not completed")
	}

	if notifier.last.Kind != notification.KindTransferReceived || notifier.last.Destination != b.Phone {
		t.Fatalf("unexpected notification %+v", notifier.last)
	}
}

func TestExecuteInsufficientFunds(t *testing.T) {
	engine, accounts, led, _ := newTestEngine(t)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 1_000)
	b := seedAccount(t, accounts, "+15550002", 0)

	_, err := engine.Execute(ctx, a.ID, b.Phone, 3_000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	if got := mustBalance(t, accounts, a.ID); got != 1_000 {
		t.Fatalf("sender balance changed: %d", got)
	}
	if got := mustBalance(t, accounts, b.ID); got != 0 {
		t.Fatalf("recipient balance changed: %d", got)
	}
	entries, _, _ := led.ListByAccount(ctx, a.ID, "", 10)
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestExecuteRecipientNotFound(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	a := seedAccount(t, accounts, "+15550001", 1_000)

	_, err := engine.Execute(context.Background(), a.ID, "+19990000", 500)
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected recipient not found, got %v", err)
	}
	if got := mustBalance(t, accounts, a.ID); got != 1_000 {
		t.Fatalf("sender balance changed: %d", got)
	}
}

func TestExecuteSelfTransfer(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	a := seedAccount(t, accounts, "+15550001", 1_000)

	_, err := engine.Execute(context.Background(), a.ID, a.Phone, 500)
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self transfer rejection, got %v", err)
	}
}

func TestExecuteInvalidAmount(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	a := seedAccount(t, accounts, "+15550001", 1_000)

	// Rejected before any recipient lookup: the phone does not exist.
	for _, amount := range []int64{0, -500, 2_000_000} {
		_, err := engine.Execute(context.Background(), a.ID, "+19990000", amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected invalid amount, got %v", amount, err)
		}
	}
}

func TestExecuteRejectionReasons(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	a := seedAccount(t, accounts, "+15550001", 100)
	b := seedAccount(t, accounts, "+15550002", 0)

	cases := []struct {
		name   string
		phone  string
		amount int64
		reason Reason
	}{
		{"invalid", b.Phone, 0, ReasonInvalidAmount},
		{"missing", "+19990000", 50, ReasonRecipientNotFound},
		{"self", a.Phone, 50, ReasonSelfTransfer},
		{"broke", b.Phone, 500, ReasonInsufficientFunds},
	}
	for _, tc := range cases {
		_, err := engine.Execute(context.Background(), a.ID, tc.phone, tc.amount)
		var rej *RejectedError
		if !errors.As(err, &rej) {
			t.Fatalf("%s: expected rejection, got %v", tc.name, err)
		}
		if rej.Reason != tc.reason {
			t.Fatalf("%s: expected reason %s, got %s", tc.name, tc.reason, rej.Reason)
		}
	}
}

func TestExecuteConcurrentDoubleSpend(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 10_000)
	b := seedAccount(t, accounts, "+15550002", 0)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Execute(ctx, a.ID, b.Phone, 6_000)
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", succeeded, insufficient)
	}
	if got := mustBalance(t, accounts, a.ID); got != 4_000 {
		t.Fatalf("sender balance = %d, want 4000", got)
	}
	if got := mustBalance(t, accounts, b.ID); got != 6_000 {
		t.Fatalf("recipient balance = %d, want 6000", got)
	}
}

func TestExecuteConservesTotalBalance(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	ctx := context.Background()

	phones := []string{"+15550001", "+15550002", "+15550003"}
	accts := make([]account.Account, len(phones))
	const seed = int64(50_000)
	for i, phone := range phones {
		accts[i] = seedAccount(t, accounts, phone, seed)
	}

	const workers = 30
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := accts[i%len(accts)]
			to := accts[(i+1)%len(accts)]
			amount := int64(100 * (i%7 + 1))
			if _, err := engine.Execute(ctx, from.ID, to.Phone, amount); err != nil && !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("transfer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var total int64
	for _, acct := range accts {
		bal := mustBalance(t, accounts, acct.ID)
		if bal < 0 {
			t.Fatalf("account %s went negative: %d", acct.Phone, bal)
		}
		total += bal
	}
	if want := seed * int64(len(accts)); total != want {
		t.Fatalf("total balance %d, want %d", total, want)
	}
}

// Transfers on disjoint and overlapping pairs issued in both directions must
// all complete; the ascending lock order prevents deadlock.
func TestExecuteOpposingPairsComplete(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 100_000)
	b := seedAccount(t, accounts, "+15550002", 100_000)

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := engine.Execute(ctx, a.ID, b.Phone, 10); err != nil {
				t.Errorf("a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := engine.Execute(ctx, b.ID, a.Phone, 10); err != nil {
				t.Errorf("b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mustBalance(t, accounts, a.ID) + mustBalance(t, accounts, b.ID); got != 200_000 {
		t.Fatalf("total balance %d, want 200000", got)
	}
}

type failingLedger struct {
	ledger.Ledger
}

func (failingLedger) AppendPair(context.Context, ledger.Entry, ledger.Entry) ([2]string, error) {
	return [2]string{}, fmt.Errorf("ledger unavailable")
}

func TestExecuteRollsBackWhenLedgerFails(t *testing.T) {
	accounts := account.NewMemoryStore()
	led := failingLedger{ledger.NewInMemory()}
	engine := NewEngine(accounts, led, storage.NewMemoryScope(), nil, 0)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 10_000)
	b := seedAccount(t, accounts, "+15550002", 0)

	_, err := engine.Execute(ctx, a.ID, b.Phone, 3_000)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failed, got %v", err)
	}

	if got := mustBalance(t, accounts, a.ID); got != 10_000 {
		t.Fatalf("sender balance not rolled back: %d", got)
	}
	if got := mustBalance(t, accounts, b.ID); got != 0 {
		t.Fatalf("recipient balance not rolled back: %d", got)
	}
	entries, _, _ := led.ListByAccount(ctx, a.ID, "", 10)
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(entries))
	}
}

func TestDeposit(t *testing.T) {
	engine, accounts, led, _ := newTestEngine(t)
	ctx := context.Background()

	a := seedAccount(t, accounts, "+15550001", 500)

	res, err := engine.Deposit(ctx, a.ID, 2_500)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.NewBalance != 3_000 {
		t.Fatalf("expected balance 3000, got %d", res.NewBalance)
	}

	entries, _, err := led.ListByAccount(ctx, a.ID, "", 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != ledger.KindCredit || e.Type != ledger.TypeDeposit || e.Amount != 2_500 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestDepositInvalidAmount(t *testing.T) {
	engine, accounts, _, _ := newTestEngine(t)
	a := seedAccount(t, accounts, "+15550001", 0)

	for _, amount := range []int64{0, -10} {
		if _, err := engine.Deposit(context.Background(), a.ID, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected invalid amount, got %v", amount, err)
		}
	}
}
