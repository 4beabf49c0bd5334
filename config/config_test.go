package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"curiochain/crypto"
)

func testAddress(b byte) string {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.CurioPrefix, raw).String()
}

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	operator := testAddress(0x01)
	payer := testAddress(0x02)
	contents := fmt.Sprintf(`ListenRPC = "0.0.0.0:9545"
DataDir = "./ledger-data"
LogLevel = "debug"
RPCToken = "s3cret"
MaxRPCConns = 64
PlatformAccount = "%s"

[Epoch]
DurationSeconds = 3600
SweepGlobalBps = 4000
TreasuryReserveLamports = 1000

[Splits.Mint]
CreatorBps = 7000
HolderBps = 2000
PlatformBps = 600
EcosystemBps = 400

[Splits.Rental]
CreatorBps = 9000
HolderBps = 0
PlatformBps = 700
EcosystemBps = 300

[Rarity.Weights]
Common = 1
Uncommon = 3
Rare = 9
Epic = 27
Legendary = 81

[Rarity.Rolls]
CommonBps = 5000
UncommonBps = 3000
RareBps = 1500
EpicBps = 400
LegendaryBps = 100

[Genesis]
Admins = ["%s"]
Treasurers = ["%s"]
Minters = ["%s"]

[[Genesis.Accounts]]
Address = "%s"
Balance = "123456789012345"
`, operator, operator, operator, operator, payer)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenRPC != "0.0.0.0:9545" || cfg.RPCToken != "s3cret" {
		t.Fatalf("unexpected rpc settings: %+v", cfg)
	}
	if cfg.MaxRPCConns != 64 {
		t.Fatalf("unexpected MaxRPCConns: %d", cfg.MaxRPCConns)
	}
	if cfg.Epoch.DurationSeconds != 3600 || cfg.Epoch.SweepGlobalBps != 4000 {
		t.Fatalf("unexpected epoch: %+v", cfg.Epoch)
	}
	if cfg.Splits.Mint.HolderBps != 2000 || cfg.Splits.Rental.PlatformBps != 700 {
		t.Fatalf("unexpected splits: %+v", cfg.Splits)
	}
	if cfg.Rarity.Weights.Legendary != 81 || cfg.Rarity.Rolls.RareBps != 1500 {
		t.Fatalf("unexpected rarity tables: %+v", cfg.Rarity)
	}

	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		t.Fatalf("node config: %v", err)
	}
	if nodeCfg.MintSplit.CreatorBps != 7000 {
		t.Fatalf("mint split not mapped: %+v", nodeCfg.MintSplit)
	}
	if len(nodeCfg.Genesis.Minters) != 1 {
		t.Fatalf("minters not mapped: %+v", nodeCfg.Genesis.Minters)
	}
	if len(nodeCfg.Genesis.Accounts) != 1 {
		t.Fatalf("accounts not mapped: %+v", nodeCfg.Genesis.Accounts)
	}
	if nodeCfg.Genesis.Accounts[0].Balance.String() != "123456789012345" {
		t.Fatalf("balance not parsed: %s", nodeCfg.Genesis.Accounts[0].Balance)
	}
}

func TestLoadCreatesDefaultWithOperatorKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := os.Stat(cfg.OperatorKeystorePath); err != nil {
		t.Fatalf("keystore not written: %v", err)
	}

	decoded, err := crypto.DecodeAddress(cfg.PlatformAccount)
	if err != nil {
		t.Fatalf("platform account not bech32: %v", err)
	}
	if decoded.Prefix() != crypto.CurioPrefix {
		t.Fatalf("platform account prefix = %s", decoded.Prefix())
	}
	if len(cfg.Genesis.Admins) != 1 || cfg.Genesis.Admins[0] != cfg.PlatformAccount {
		t.Fatalf("default genesis should seed the operator as admin: %+v", cfg.Genesis)
	}

	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, "")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if key.PubKey().Address().String() != cfg.PlatformAccount {
		t.Fatal("keystore key does not match platform account")
	}

	// A second load parses the persisted file instead of regenerating.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.PlatformAccount != cfg.PlatformAccount {
		t.Fatal("reload changed the operator address")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf("PlatformAccount = %q\n", testAddress(0x01))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenRPC != ":8545" {
		t.Fatalf("default ListenRPC = %q", cfg.ListenRPC)
	}
	if cfg.Epoch.DurationSeconds != 86_400 {
		t.Fatalf("default epoch duration = %d", cfg.Epoch.DurationSeconds)
	}
	if cfg.Splits.Mint != DefaultMintSplit() {
		t.Fatalf("default mint split = %+v", cfg.Splits.Mint)
	}
	if cfg.Rarity.Rolls != DefaultRarityRolls() {
		t.Fatalf("default rolls = %+v", cfg.Rarity.Rolls)
	}
	if cfg.RPCReadTimeout != 20 || cfg.MaxRPCConns != 256 {
		t.Fatalf("default rpc limits: read=%d conns=%d", cfg.RPCReadTimeout, cfg.MaxRPCConns)
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	base := func() *Config {
		cfg := &Config{PlatformAccount: testAddress(0x01)}
		cfg.applyDefaults()
		return cfg
	}

	cfg := base()
	cfg.Splits.Mint.HolderBps = 1_300
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted mint split summing past 10000")
	}

	cfg = base()
	cfg.Splits.Rental = SplitBps{CreatorBps: 9_100, HolderBps: 100, PlatformBps: 500, EcosystemBps: 300}
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted rental split with holder share")
	}

	cfg = base()
	cfg.Rarity.Weights.Rare = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted zero rarity weight")
	}

	cfg = base()
	cfg.Rarity.Weights = RarityWeights{Common: 4, Uncommon: 2, Rare: 8, Epic: 16, Legendary: 32}
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted decreasing rarity weights")
	}

	cfg = base()
	cfg.Rarity.Rolls.LegendaryBps = 200
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted roll buckets summing past 10000")
	}

	cfg = base()
	cfg.Genesis.Minters = []string{"nhb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted a foreign address prefix")
	}

	cfg = base()
	cfg.Genesis.Accounts = []GenesisAccount{{Address: testAddress(0x02), Balance: "12x4"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("accepted a malformed balance")
	}
}

func TestNodeConfigRequiresPlatformAccount(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if _, err := cfg.NodeConfig(); err == nil {
		t.Fatal("expected missing platform account error")
	}
}
