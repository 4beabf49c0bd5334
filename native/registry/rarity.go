package registry

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Rarity is the tier a minted unit drew. The draw itself happens off-ledger;
// the registry maps the result onto an immutable reward weight.
type Rarity uint8

const (
	RarityCommon Rarity = iota + 1
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var errUnknownRarity = errors.New("registry: unknown rarity")

func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityLegendary
}

func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityUncommon:
		return "uncommon"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

// ParseRarity converts a tier name into a Rarity.
func ParseRarity(name string) (Rarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "common":
		return RarityCommon, nil
	case "uncommon":
		return RarityUncommon, nil
	case "rare":
		return RarityRare, nil
	case "epic":
		return RarityEpic, nil
	case "legendary":
		return RarityLegendary, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownRarity, name)
	}
}

// WeightTable maps rarity tiers onto reward weights. Weights are fixed at
// mint and never change afterwards.
type WeightTable struct {
	Common    uint64
	Uncommon  uint64
	Rare      uint64
	Epic      uint64
	Legendary uint64
}

// DefaultWeightTable doubles the weight per tier starting from one.
func DefaultWeightTable() WeightTable {
	return WeightTable{Common: 1, Uncommon: 2, Rare: 4, Epic: 8, Legendary: 16}
}

// Validate checks that every tier carries a usable weight.
func (t WeightTable) Validate() error {
	for _, entry := range []struct {
		name   string
		weight uint64
	}{
		{"common", t.Common},
		{"uncommon", t.Uncommon},
		{"rare", t.Rare},
		{"epic", t.Epic},
		{"legendary", t.Legendary},
	} {
		if entry.weight == 0 {
			return fmt.Errorf("registry: %s weight must be at least 1", entry.name)
		}
	}
	return nil
}

// WeightOf returns the configured weight for the given rarity.
func (t WeightTable) WeightOf(r Rarity) (*big.Int, error) {
	switch r {
	case RarityCommon:
		return new(big.Int).SetUint64(t.Common), nil
	case RarityUncommon:
		return new(big.Int).SetUint64(t.Uncommon), nil
	case RarityRare:
		return new(big.Int).SetUint64(t.Rare), nil
	case RarityEpic:
		return new(big.Int).SetUint64(t.Epic), nil
	case RarityLegendary:
		return new(big.Int).SetUint64(t.Legendary), nil
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownRarity, r)
	}
}

const rollDenominator = 10_000

// RollTable maps raw 32-bit randomness onto rarity tiers via basis-point
// buckets, walked from common to legendary.
type RollTable struct {
	CommonBps    uint32
	UncommonBps  uint32
	RareBps      uint32
	EpicBps      uint32
	LegendaryBps uint32
}

// DefaultRollTable returns the platform's default tier odds.
func DefaultRollTable() RollTable {
	return RollTable{CommonBps: 6_000, UncommonBps: 2_500, RareBps: 1_000, EpicBps: 400, LegendaryBps: 100}
}

// Validate checks that the buckets cover the roll space exactly.
func (t RollTable) Validate() error {
	sum := uint64(t.CommonBps) + uint64(t.UncommonBps) + uint64(t.RareBps) + uint64(t.EpicBps) + uint64(t.LegendaryBps)
	if sum != rollDenominator {
		return fmt.Errorf("registry: roll table must sum to %d bps, got %d", rollDenominator, sum)
	}
	return nil
}

// TierForRoll maps a raw 32-bit roll onto a tier. The roll is scaled into the
// basis-point space first so the full uint32 range stays uniform.
func (t RollTable) TierForRoll(roll uint32) Rarity {
	bucket := uint32((uint64(roll) * rollDenominator) >> 32)
	for _, entry := range []struct {
		tier Rarity
		bps  uint32
	}{
		{RarityCommon, t.CommonBps},
		{RarityUncommon, t.UncommonBps},
		{RarityRare, t.RareBps},
		{RarityEpic, t.EpicBps},
	} {
		if bucket < entry.bps {
			return entry.tier
		}
		bucket -= entry.bps
	}
	return RarityLegendary
}
