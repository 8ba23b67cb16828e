// Package otp implements phone verification: a short-lived code is delivered
// over SMS, and a successful verification is the only way an account comes
// into existence.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/auth"
	"github.com/cash-flow/cash_flow/internal/notification"
)

var (
	// ErrCodeMismatch indicates the submitted code does not match the
	// outstanding one.
	ErrCodeMismatch = errors.New("invalid verification code")

	// ErrBadPhone indicates a missing or malformed phone number.
	ErrBadPhone = errors.New("phone is required")
)

// Service drives the send/verify cycle.
type Service struct {
	store    CodeStore
	accounts *account.Service
	tokens   *auth.Service
	notifier notification.Notifier
	ttl      time.Duration
}

// NewService builds an OTP service.
func NewService(store CodeStore, accounts *account.Service, tokens *auth.Service, notifier notification.Notifier, ttl time.Duration) *Service {
	return &Service{store: store, accounts: accounts, tokens: tokens, notifier: notifier, ttl: ttl}
}

// generateCode returns a uniformly random six-digit code.
func generateCode() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:]) % 900000
	return fmt.Sprintf("%06d", 100000+n), nil
}

// Send issues a fresh code for the phone and delivers it via the notifier.
// Re-sending replaces any outstanding code.
func (s *Service) Send(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrBadPhone
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, phone, hash, s.ttl); err != nil {
		return err
	}

	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindOTPCode,
		Destination: phone,
		Body:        fmt.Sprintf("Your verification code is: %s", code),
	})
}

// Verify checks the submitted code, consumes it, and returns the account
// (created on first verification) together with a signed token pair.
func (s *Service) Verify(ctx context.Context, phone, code string) (account.Account, auth.TokenPair, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return account.Account{}, auth.TokenPair{}, ErrBadPhone
	}

	hash, err := s.store.Get(ctx, phone)
	if err != nil {
		return account.Account{}, auth.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return account.Account{}, auth.TokenPair{}, ErrCodeMismatch
	}

	// The code is single-use regardless of what happens next.
	if err := s.store.Delete(ctx, phone); err != nil {
		return account.Account{}, auth.TokenPair{}, err
	}

	acct, err := s.accounts.EnsureForPhone(ctx, phone)
	if err != nil {
		return account.Account{}, auth.TokenPair{}, err
	}
	pair, err := s.tokens.Issue(acct)
	if err != nil {
		return account.Account{}, auth.TokenPair{}, err
	}
	return acct, pair, nil
}
