package config

import (
	"fmt"
	"strings"

	"curiochain/crypto"
)

const bpsDenominator = 10_000

// Validate checks the structural validity of the configuration: split and
// roll tables must cover exactly 10,000 bps, weights must be positive and non
// decreasing by tier, and every address must be a curio bech32 string.
func (c *Config) Validate() error {
	if c.Epoch.DurationSeconds <= 0 {
		return fmt.Errorf("config: Epoch.DurationSeconds must be positive")
	}
	if c.Epoch.SweepGlobalBps > bpsDenominator {
		return fmt.Errorf("config: Epoch.SweepGlobalBps exceeds %d", bpsDenominator)
	}
	if err := validateSplit("Splits.Mint", c.Splits.Mint); err != nil {
		return err
	}
	if err := validateSplit("Splits.Rental", c.Splits.Rental); err != nil {
		return err
	}
	if c.Splits.Rental.HolderBps != 0 {
		return fmt.Errorf("config: Splits.Rental.HolderBps must be zero, rentals carry no holder share")
	}
	if err := validateWeights(c.Rarity.Weights); err != nil {
		return err
	}
	if err := validateRolls(c.Rarity.Rolls); err != nil {
		return err
	}
	if strings.TrimSpace(c.PlatformAccount) != "" {
		if _, err := decodeCurioAddress(c.PlatformAccount); err != nil {
			return fmt.Errorf("config: PlatformAccount: %w", err)
		}
	}
	for _, group := range []struct {
		name  string
		addrs []string
	}{
		{"Genesis.Admins", c.Genesis.Admins},
		{"Genesis.Treasurers", c.Genesis.Treasurers},
		{"Genesis.Minters", c.Genesis.Minters},
	} {
		for _, addr := range group.addrs {
			if _, err := decodeCurioAddress(addr); err != nil {
				return fmt.Errorf("config: %s: %w", group.name, err)
			}
		}
	}
	for i, account := range c.Genesis.Accounts {
		if _, err := decodeCurioAddress(account.Address); err != nil {
			return fmt.Errorf("config: Genesis.Accounts[%d].Address: %w", i, err)
		}
		if _, err := parseLamports(account.Balance); err != nil {
			return fmt.Errorf("config: Genesis.Accounts[%d].Balance: %w", i, err)
		}
	}
	return nil
}

func validateSplit(name string, split SplitBps) error {
	sum := uint64(split.CreatorBps) + uint64(split.HolderBps) + uint64(split.PlatformBps) + uint64(split.EcosystemBps)
	if sum != bpsDenominator {
		return fmt.Errorf("config: %s shares sum to %d bps, want %d", name, sum, bpsDenominator)
	}
	return nil
}

func validateWeights(w RarityWeights) error {
	tiers := []uint64{w.Common, w.Uncommon, w.Rare, w.Epic, w.Legendary}
	previous := uint64(0)
	for _, weight := range tiers {
		if weight == 0 {
			return fmt.Errorf("config: Rarity.Weights must all be positive")
		}
		if weight < previous {
			return fmt.Errorf("config: Rarity.Weights must not decrease by tier")
		}
		previous = weight
	}
	return nil
}

func validateRolls(r RarityRolls) error {
	sum := uint64(r.CommonBps) + uint64(r.UncommonBps) + uint64(r.RareBps) + uint64(r.EpicBps) + uint64(r.LegendaryBps)
	if sum != bpsDenominator {
		return fmt.Errorf("config: Rarity.Rolls buckets sum to %d bps, want %d", sum, bpsDenominator)
	}
	return nil
}

func decodeCurioAddress(addr string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.CurioPrefix {
		return out, fmt.Errorf("address prefix %q, want %q", decoded.Prefix(), crypto.CurioPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}
