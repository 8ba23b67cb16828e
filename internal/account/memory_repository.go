package account

import (
	"context"
	"sync"

	"github.com/cash-flow/cash_flow/internal/storage"
)

type memoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byPhone map[string]string
}

// NewMemoryStore builds an in-memory account store for tests and local runs.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:    make(map[string]Account),
		byPhone: make(map[string]string),
	}
}

func (r *memoryStore) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPhone[acct.Phone]; exists {
		return ErrPhoneTaken
	}
	r.byID[acct.ID] = acct
	r.byPhone[acct.Phone] = acct.ID
	return nil
}

func (r *memoryStore) Get(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryStore) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryStore) UpdateProfile(_ context.Context, id, name, birthdate string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	acct.DisplayName = name
	acct.Birthdate = birthdate
	r.byID[id] = acct
	return acct, nil
}

func (r *memoryStore) BumpTokenVersion(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	acct.TokenVersion++
	r.byID[id] = acct
	return nil
}

func (r *memoryStore) AdjustBalance(ctx context.Context, id string, delta int64, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	if expectedVersion != AnyVersion && acct.Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	if acct.Balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}

	prev := acct
	acct.Balance += delta
	acct.Version++
	r.byID[id] = acct

	storage.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byID[id] = prev
	})

	return acct.Balance, nil
}
