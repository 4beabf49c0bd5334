package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"curiochain/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *uint256.Int
}

func accountStateKey(addr []byte) []byte {
	return ethcrypto.Keccak256(addr)
}

func ensureAccountDefaults(account *types.Account) {
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
}

// GetAccount reconstructs the account stored under the provided address. A
// missing account resolves to a zero-balance account rather than an error so
// credit paths never need a separate creation step.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	data, err := m.rawGet(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if len(data) == 0 {
		return account, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance = stored.Balance.ToBig()
	}
	ensureAccountDefaults(account)
	return account, nil
}

// PutAccount persists the provided account state under the supplied address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("nil account")
	}
	ensureAccountDefaults(account)
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	balance, overflow := uint256.FromBig(account.Balance)
	if overflow {
		return fmt.Errorf("balance overflow")
	}
	stored := &storedAccount{
		Nonce:   account.Nonce,
		Balance: balance,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	m.rawPut(accountStateKey(addr), encoded)
	return nil
}
