// Package auth issues and verifies the bearer credentials the rest of the
// API trusts: every protected operation resolves its token to an account id
// here before touching any balance.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cash-flow/cash_flow/internal/account"
	"github.com/cash-flow/cash_flow/internal/config"
)

// ErrUnauthenticated indicates a missing, malformed, expired or revoked
// credential. The gate fails closed: any doubt resolves to this error.
var ErrUnauthenticated = errors.New("unauthenticated")

// Service signs and resolves access/refresh token pairs.
type Service struct {
	cfg      config.Config
	accounts account.Store
}

// NewService builds the token service.
func NewService(cfg config.Config, accounts account.Store) *Service {
	return &Service{cfg: cfg, accounts: accounts}
}

// TokenPair bundles the credentials returned after OTP verification.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Issue signs a fresh access/refresh pair for the account.
func (s *Service) Issue(acct account.Account) (TokenPair, error) {
	access, err := s.sign(acct, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(acct, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) sign(acct account.Account, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   acct.ID,
		"phone": acct.Phone,
		"ver":   acct.TokenVersion,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

func (s *Service) resolveClaims(ctx context.Context, claims jwt.MapClaims) (account.Account, error) {
	sub, _ := claims["sub"].(string)
	verFloat, _ := claims["ver"].(float64)

	acct, err := s.accounts.Get(ctx, sub)
	if err != nil {
		return account.Account{}, ErrUnauthenticated
	}
	if acct.TokenVersion != int(verFloat) {
		return account.Account{}, ErrUnauthenticated
	}
	return acct, nil
}

// Resolve maps an access token to the account it authenticates, rejecting
// tokens whose version has been invalidated by logout.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (account.Account, error) {
	claims, err := parse(tokenStr, s.cfg.JWTSecret)
	if err != nil {
		return account.Account{}, err
	}
	return s.resolveClaims(ctx, claims)
}

// Refresh verifies the refresh token and returns a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return "", 0, err
	}
	acct, err := s.resolveClaims(ctx, claims)
	if err != nil {
		return "", 0, err
	}
	access, err := s.sign(acct, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout bumps the account token version so outstanding tokens stop
// resolving.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	return s.accounts.BumpTokenVersion(ctx, accountID)
}
