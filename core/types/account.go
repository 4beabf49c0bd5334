package types

import "math/big"

// Account is a custodial balance record held by the platform ledger. Every
// participant the router can debit or credit (buyers, creators, the platform
// fee account) is an Account; amounts are lamports.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate without aliasing state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return clone
}
