package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service exposes account lifecycle and read operations. Balance mutations
// stay with the transfer engine; this service only creates accounts, serves
// reads, and applies profile updates.
type Service struct {
	store Store
}

// NewService builds an account service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureForPhone returns the account registered for phone, creating a fresh
// zero-balance account on first verification.
func (s *Service) EnsureForPhone(ctx context.Context, phone string) (Account, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Account{}, errors.New("phone is required")
	}

	acct, err := s.store.FindByPhone(ctx, phone)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	acct = Account{
		ID:        uuid.New().String(),
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrPhoneTaken) {
			// Lost a creation race; the existing account wins.
			return s.store.FindByPhone(ctx, phone)
		}
		return Account{}, err
	}
	return acct, nil
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.store.Get(ctx, id)
}

// Lookup resolves a phone number to the public part of an account, used by
// the send-payment screen to confirm the recipient before transferring.
func (s *Service) Lookup(ctx context.Context, phone string) (Account, error) {
	return s.store.FindByPhone(ctx, strings.TrimSpace(phone))
}

// Balance returns the current spendable funds for the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	acct, err := s.store.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{AccountID: acct.ID, Amount: acct.Balance, AsOf: time.Now().UTC()}, nil
}

// UpdateProfile completes or edits the display name and birthdate.
func (s *Service) UpdateProfile(ctx context.Context, id, name, birthdate string) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, errors.New("name is required")
	}
	if birthdate != "" {
		if _, err := time.Parse("2006-01-02", birthdate); err != nil {
			return Account{}, errors.New("birthdate must be YYYY-MM-DD")
		}
	}
	return s.store.UpdateProfile(ctx, id, name, birthdate)
}
