package config

// Epoch controls the treasury sweep schedule.
type Epoch struct {
	DurationSeconds         int64  `toml:"DurationSeconds"`
	SweepGlobalBps          uint32 `toml:"SweepGlobalBps"`
	TreasuryReserveLamports uint64 `toml:"TreasuryReserveLamports"`
}

func (e Epoch) isZero() bool {
	return e == Epoch{}
}

// DefaultEpoch returns the daily sweep schedule with the rent-exempt reserve.
func DefaultEpoch() Epoch {
	return Epoch{
		DurationSeconds:         86_400,
		SweepGlobalBps:          5_000,
		TreasuryReserveLamports: 890_880,
	}
}

// SplitBps is one revenue split in basis points. The four shares must sum to
// exactly 10,000.
type SplitBps struct {
	CreatorBps   uint32 `toml:"CreatorBps"`
	HolderBps    uint32 `toml:"HolderBps"`
	PlatformBps  uint32 `toml:"PlatformBps"`
	EcosystemBps uint32 `toml:"EcosystemBps"`
}

func (s SplitBps) isZero() bool {
	return s == SplitBps{}
}

// Splits groups the mint and rental revenue splits.
type Splits struct {
	Mint   SplitBps `toml:"Mint"`
	Rental SplitBps `toml:"Rental"`
}

// DefaultMintSplit returns the 80/12/5/3 mint split.
func DefaultMintSplit() SplitBps {
	return SplitBps{CreatorBps: 8_000, HolderBps: 1_200, PlatformBps: 500, EcosystemBps: 300}
}

// DefaultRentalSplit returns the 92/0/5/3 rental split.
func DefaultRentalSplit() SplitBps {
	return SplitBps{CreatorBps: 9_200, HolderBps: 0, PlatformBps: 500, EcosystemBps: 300}
}

// RarityWeights maps rarity tiers onto reward weights.
type RarityWeights struct {
	Common    uint64 `toml:"Common"`
	Uncommon  uint64 `toml:"Uncommon"`
	Rare      uint64 `toml:"Rare"`
	Epic      uint64 `toml:"Epic"`
	Legendary uint64 `toml:"Legendary"`
}

func (w RarityWeights) isZero() bool {
	return w == RarityWeights{}
}

// DefaultRarityWeights doubles per tier starting from one.
func DefaultRarityWeights() RarityWeights {
	return RarityWeights{Common: 1, Uncommon: 2, Rare: 4, Epic: 8, Legendary: 16}
}

// RarityRolls sets the tier odds in basis points. The five buckets must sum
// to exactly 10,000.
type RarityRolls struct {
	CommonBps    uint32 `toml:"CommonBps"`
	UncommonBps  uint32 `toml:"UncommonBps"`
	RareBps      uint32 `toml:"RareBps"`
	EpicBps      uint32 `toml:"EpicBps"`
	LegendaryBps uint32 `toml:"LegendaryBps"`
}

func (r RarityRolls) isZero() bool {
	return r == RarityRolls{}
}

// DefaultRarityRolls returns the platform's default tier odds.
func DefaultRarityRolls() RarityRolls {
	return RarityRolls{CommonBps: 6_000, UncommonBps: 2_500, RareBps: 1_000, EpicBps: 400, LegendaryBps: 100}
}

// Rarity groups the mint rarity tables.
type Rarity struct {
	Weights RarityWeights `toml:"Weights"`
	Rolls   RarityRolls   `toml:"Rolls"`
}

// GenesisAccount seeds one custody account. Balance is a decimal lamport
// string since TOML integers cannot carry the full range.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// GenesisSpec lists the bech32 role holders and accounts seeded on first
// start.
type GenesisSpec struct {
	Admins     []string         `toml:"Admins"`
	Treasurers []string         `toml:"Treasurers"`
	Minters    []string         `toml:"Minters"`
	Accounts   []GenesisAccount `toml:"Accounts"`
}
