package core

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"curiochain/core/types"
)

const (
	// EventTypeAccountFunded is emitted when a treasurer credits custody funds.
	EventTypeAccountFunded = "node.account.funded"
	// EventTypeGenesisApplied is emitted once when a fresh ledger seeds its
	// roles and accounts.
	EventTypeGenesisApplied = "node.genesis.applied"
	// EventTypeRoleChanged is emitted when an admin grants or revokes a role.
	EventTypeRoleChanged = "node.role.changed"
)

// AccountFundedEvent announces a custody deposit landing on the ledger.
func AccountFundedEvent(target [20]byte, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeAccountFunded,
		Attributes: map[string]string{
			"account": "0x" + hex.EncodeToString(target[:]),
			"amount":  amount.String(),
			"balance": balance.String(),
		},
	}
}

// GenesisAppliedEvent announces first-start seeding.
func GenesisAppliedEvent(roles, accounts int) *types.Event {
	return &types.Event{
		Type: EventTypeGenesisApplied,
		Attributes: map[string]string{
			"roles":    strconv.Itoa(roles),
			"accounts": strconv.Itoa(accounts),
		},
	}
}

// RoleChangedEvent announces a role grant or revocation.
func RoleChangedEvent(role string, member [20]byte, granted bool) *types.Event {
	return &types.Event{
		Type: EventTypeRoleChanged,
		Attributes: map[string]string{
			"role":    role,
			"member":  "0x" + hex.EncodeToString(member[:]),
			"granted": strconv.FormatBool(granted),
		},
	}
}
