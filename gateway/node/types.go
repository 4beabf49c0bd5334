package node

// Request payloads forwarded to the node. Field names match the node's
// parameter objects; amounts are decimal lamport strings.

type PublishContentRequest struct {
	Caller      string `json:"caller"`
	Creator     string `json:"creator"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
	MintPrice   string `json:"mintPrice"`
	RentalFee   string `json:"rentalFee,omitempty"`
}

type CreateBundleRequest struct {
	Caller    string   `json:"caller"`
	Creator   string   `json:"creator"`
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Members   []string `json:"members"`
	MintPrice string   `json:"mintPrice"`
}

type MintRequest struct {
	Caller    string  `json:"caller"`
	Payer     string  `json:"payer"`
	UnitID    string  `json:"unitId"`
	ContentID string  `json:"contentId,omitempty"`
	BundleID  string  `json:"bundleId,omitempty"`
	Rarity    string  `json:"rarity,omitempty"`
	Roll      *uint32 `json:"roll,omitempty"`
}

type RentRequest struct {
	Caller          string `json:"caller"`
	Renter          string `json:"renter"`
	ContentID       string `json:"contentId"`
	DurationSeconds int64  `json:"durationSeconds"`
}

type TickRequest struct {
	Caller  string `json:"caller"`
	Payer   string `json:"payer"`
	Creator string `json:"creator,omitempty"`
	Amount  string `json:"amount"`
}

// Result shapes mirror the JSON returned by the node RPC.

type Content struct {
	ID          string `json:"id"`
	Creator     string `json:"creator"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
	MintPrice   string `json:"mintPrice"`
	RentalFee   string `json:"rentalFee"`
	PublishedAt int64  `json:"publishedAt"`
	Minted      uint64 `json:"minted"`
}

type Bundle struct {
	ID          string   `json:"id"`
	Creator     string   `json:"creator"`
	Title       string   `json:"title"`
	Members     []string `json:"members"`
	MintPrice   string   `json:"mintPrice"`
	PublishedAt int64    `json:"publishedAt"`
	Minted      uint64   `json:"minted"`
}

type PendingRewards struct {
	Holder string `json:"holder"`
	Patron string `json:"patron"`
	Global string `json:"global"`
	Total  string `json:"total"`
}

type Unit struct {
	ID           string          `json:"id"`
	ContentID    string          `json:"contentId,omitempty"`
	BundleID     string          `json:"bundleId,omitempty"`
	Creator      string          `json:"creator"`
	Owner        string          `json:"owner"`
	Rarity       string          `json:"rarity"`
	Weight       string          `json:"weight"`
	MintedAt     int64           `json:"mintedAt"`
	TotalClaimed string          `json:"totalClaimed"`
	Pending      *PendingRewards `json:"pending,omitempty"`
}

type Pool struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	TotalWeight    string `json:"totalWeight"`
	TotalDeposited string `json:"totalDeposited"`
	TotalClaimed   string `json:"totalClaimed"`
	RewardPerShare string `json:"rewardPerShare"`
	Undistributed  string `json:"undistributed"`
	Balance        string `json:"balance"`
}

type CreatorStats struct {
	Creator      string `json:"creator"`
	TotalWeight  string `json:"totalWeight"`
	Accrued      string `json:"accrued"`
	TotalClaimed string `json:"totalClaimed"`
	Pending      string `json:"pending"`
}

type Treasury struct {
	ID                 string `json:"id"`
	Creator            string `json:"creator,omitempty"`
	Balance            string `json:"balance"`
	Reserve            string `json:"reserve"`
	TotalInflow        string `json:"totalInflow"`
	TotalSwept         string `json:"totalSwept"`
	Epochs             uint64 `json:"epochs"`
	LastDistributionAt int64  `json:"lastDistributionAt"`
	NextDistributionAt int64  `json:"nextDistributionAt"`
	Due                bool   `json:"due"`
	Drainable          string `json:"drainable"`
}

type Settlement struct {
	Treasury      string `json:"treasury"`
	Sequence      uint64 `json:"sequence"`
	SettledAt     int64  `json:"settledAt"`
	Swept         string `json:"swept"`
	ToGlobal      string `json:"toGlobal"`
	ToCreatorDist string `json:"toCreatorDist"`
	ToPatron      string `json:"toPatron"`
}

type Rental struct {
	ContentID string `json:"contentId"`
	Renter    string `json:"renter"`
	Fee       string `json:"fee"`
	StartedAt int64  `json:"startedAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Active    bool   `json:"active"`
}

type Balance struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type Event struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type MintReceipt struct {
	Price           string `json:"price"`
	CreatorPaid     string `json:"creatorPaid"`
	HolderDeposited string `json:"holderDeposited,omitempty"`
	BundleDeposited string `json:"bundleDeposited,omitempty"`
	PlatformFee     string `json:"platformFee"`
	EcosystemFee    string `json:"ecosystemFee"`
}

type MintOutcome struct {
	Unit    Unit        `json:"unit"`
	Receipt MintReceipt `json:"receipt"`
}

type RentOutcome struct {
	Rental       Rental `json:"rental"`
	Fee          string `json:"fee"`
	CreatorPaid  string `json:"creatorPaid"`
	PlatformFee  string `json:"platformFee"`
	EcosystemFee string `json:"ecosystemFee"`
}

type Claim struct {
	Scope  string `json:"scope"`
	UnitID string `json:"unitId,omitempty"`
	Payee  string `json:"payee,omitempty"`
	Amount string `json:"amount"`
}

type EpochStatus struct {
	DurationSeconds int64 `json:"durationSeconds"`
}
