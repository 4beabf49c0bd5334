package state

const (
	rolePrefix = "roles/"
)

var (
	rewardPoolPrefix      = []byte("rewards/pool/")
	rewardUnitPrefix      = []byte("rewards/unit/")
	rewardCreatorPrefix   = []byte("rewards/creator/")
	rewardTreasuryPrefix  = []byte("rewards/treasury/")
	rewardEpochConfigKey  = []byte("rewards/epoch/config")
	rewardSettlementsKey  = []byte("rewards/epoch/settlements")
	registryContentPrefix = []byte("registry/content/")
	registryBundlePrefix  = []byte("registry/bundle/")
	registryUnitPrefix    = []byte("registry/unit/")
	registryRentalPrefix  = []byte("registry/rental/")
)
