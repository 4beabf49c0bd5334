package config

import (
	"fmt"
	"math/big"
	"strings"

	"curiochain/core"
	"curiochain/native/registry"
	"curiochain/native/router"
)

func parseLamports(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal lamport amount: %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("lamport amount must not be negative: %q", value)
	}
	return amount, nil
}

// NodeConfig converts the parsed file into the runtime policy the ledger node
// consumes: bech32 strings become raw addresses, balances become big
// integers, and the tables map onto their engine types.
func (c *Config) NodeConfig() (core.NodeConfig, error) {
	out := core.NodeConfig{
		EpochDurationSeconds:    c.Epoch.DurationSeconds,
		SweepGlobalBps:          c.Epoch.SweepGlobalBps,
		TreasuryReserveLamports: c.Epoch.TreasuryReserveLamports,
		MintSplit: router.Split{
			CreatorBps:   c.Splits.Mint.CreatorBps,
			HolderBps:    c.Splits.Mint.HolderBps,
			PlatformBps:  c.Splits.Mint.PlatformBps,
			EcosystemBps: c.Splits.Mint.EcosystemBps,
		},
		RentalSplit: router.Split{
			CreatorBps:   c.Splits.Rental.CreatorBps,
			HolderBps:    c.Splits.Rental.HolderBps,
			PlatformBps:  c.Splits.Rental.PlatformBps,
			EcosystemBps: c.Splits.Rental.EcosystemBps,
		},
		WeightTable: registry.WeightTable{
			Common:    c.Rarity.Weights.Common,
			Uncommon:  c.Rarity.Weights.Uncommon,
			Rare:      c.Rarity.Weights.Rare,
			Epic:      c.Rarity.Weights.Epic,
			Legendary: c.Rarity.Weights.Legendary,
		},
		RollTable: registry.RollTable{
			CommonBps:    c.Rarity.Rolls.CommonBps,
			UncommonBps:  c.Rarity.Rolls.UncommonBps,
			RareBps:      c.Rarity.Rolls.RareBps,
			EpicBps:      c.Rarity.Rolls.EpicBps,
			LegendaryBps: c.Rarity.Rolls.LegendaryBps,
		},
	}

	if strings.TrimSpace(c.PlatformAccount) == "" {
		return out, fmt.Errorf("config: PlatformAccount is required to settle payments")
	}
	platform, err := decodeCurioAddress(c.PlatformAccount)
	if err != nil {
		return out, fmt.Errorf("config: PlatformAccount: %w", err)
	}
	out.PlatformAccount = platform

	decodeAll := func(name string, addrs []string) ([][20]byte, error) {
		decoded := make([][20]byte, 0, len(addrs))
		for _, addr := range addrs {
			raw, err := decodeCurioAddress(addr)
			if err != nil {
				return nil, fmt.Errorf("config: %s: %w", name, err)
			}
			decoded = append(decoded, raw)
		}
		return decoded, nil
	}
	if out.Genesis.Admins, err = decodeAll("Genesis.Admins", c.Genesis.Admins); err != nil {
		return out, err
	}
	if out.Genesis.Treasurers, err = decodeAll("Genesis.Treasurers", c.Genesis.Treasurers); err != nil {
		return out, err
	}
	if out.Genesis.Minters, err = decodeAll("Genesis.Minters", c.Genesis.Minters); err != nil {
		return out, err
	}

	for i, account := range c.Genesis.Accounts {
		addr, err := decodeCurioAddress(account.Address)
		if err != nil {
			return out, fmt.Errorf("config: Genesis.Accounts[%d].Address: %w", i, err)
		}
		balance, err := parseLamports(account.Balance)
		if err != nil {
			return out, fmt.Errorf("config: Genesis.Accounts[%d].Balance: %w", i, err)
		}
		out.Genesis.Accounts = append(out.Genesis.Accounts, core.GenesisAccount{
			Address: addr,
			Balance: balance,
		})
	}
	return out, nil
}
