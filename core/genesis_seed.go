package core

import (
	"fmt"
	"math/big"

	"curiochain/core/types"
)

const genesisAppliedKey = "genesis/applied"

// GenesisAccount seeds a custody account with an opening balance.
type GenesisAccount struct {
	Address [20]byte
	Balance *big.Int
}

// Genesis lists the role holders and accounts seeded on first start. A ledger
// that has already applied genesis ignores it; later role changes go through
// GrantRole and RevokeRole.
type Genesis struct {
	Admins     [][20]byte
	Treasurers [][20]byte
	Minters    [][20]byte
	Accounts   []GenesisAccount
}

func (n *Node) applyGenesis() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var applied bool
	ok, err := n.manager.KVGet([]byte(genesisAppliedKey), &applied)
	if err != nil {
		return fmt.Errorf("core: genesis marker: %w", err)
	}
	if ok && applied {
		return nil
	}

	seed := func(role string, addrs [][20]byte) (int, error) {
		granted := 0
		for _, addr := range addrs {
			var zero [20]byte
			if addr == zero {
				return granted, fmt.Errorf("core: genesis %s entry is the zero address", role)
			}
			if err := n.manager.SetRole(role, addr[:]); err != nil {
				return granted, err
			}
			granted++
		}
		return granted, nil
	}

	roles := 0
	for _, grant := range []struct {
		role  string
		addrs [][20]byte
	}{
		{RoleAdmin, n.cfg.Genesis.Admins},
		{RoleTreasurer, n.cfg.Genesis.Treasurers},
		{RoleMinter, n.cfg.Genesis.Minters},
	} {
		granted, err := seed(grant.role, grant.addrs)
		if err != nil {
			n.manager.Discard()
			return err
		}
		roles += granted
	}

	for _, entry := range n.cfg.Genesis.Accounts {
		account, err := n.manager.GetAccount(entry.Address[:])
		if err != nil {
			n.manager.Discard()
			return err
		}
		if entry.Balance != nil {
			account.Balance = new(big.Int).Set(entry.Balance)
		}
		if err := n.manager.PutAccount(entry.Address[:], account); err != nil {
			n.manager.Discard()
			return err
		}
	}

	if err := n.manager.KVPut([]byte(genesisAppliedKey), true); err != nil {
		n.manager.Discard()
		return err
	}
	if err := n.manager.Commit(); err != nil {
		n.manager.Discard()
		return err
	}
	n.publish([]*types.Event{GenesisAppliedEvent(roles, len(n.cfg.Genesis.Accounts))})
	return nil
}
