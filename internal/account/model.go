package account

import "time"

// Account is a wallet holder identified by phone number. Balance is held in
// minor units and must never go negative; it is mutated only through
// AdjustBalance.
type Account struct {
	ID           string
	Phone        string
	DisplayName  string
	Birthdate    string
	Balance      int64
	Version      int64
	TokenVersion int
	CreatedAt    time.Time
}

// Balance is a point-in-time view of available funds.
type Balance struct {
	AccountID string
	Amount    int64
	AsOf      time.Time
}
