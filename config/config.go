package config

import (
	"os"
	"path/filepath"
	"strings"

	"curiochain/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk daemon configuration. First start writes a default
// file with a freshly generated operator key acting as platform account,
// admin, treasurer and minter, so a local ledger is usable immediately.
type Config struct {
	ListenRPC            string `toml:"ListenRPC"`
	DataDir              string `toml:"DataDir"`
	LogPath              string `toml:"LogPath"`
	LogLevel             string `toml:"LogLevel"`
	RPCToken             string `toml:"RPCToken"`
	RPCReadHeaderTimeout int    `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout       int    `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int    `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int    `toml:"RPCIdleTimeout"`
	MaxRPCConns          int    `toml:"MaxRPCConns"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`
	PlatformAccount      string `toml:"PlatformAccount"`

	Epoch   Epoch       `toml:"Epoch"`
	Splits  Splits      `toml:"Splits"`
	Rarity  Rarity      `toml:"Rarity"`
	Genesis GenesisSpec `toml:"Genesis"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenRPC) == "" {
		c.ListenRPC = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./curio-data"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if c.RPCReadHeaderTimeout <= 0 {
		c.RPCReadHeaderTimeout = 5
	}
	if c.RPCReadTimeout <= 0 {
		c.RPCReadTimeout = 20
	}
	if c.RPCWriteTimeout <= 0 {
		c.RPCWriteTimeout = 20
	}
	if c.RPCIdleTimeout <= 0 {
		c.RPCIdleTimeout = 120
	}
	if c.MaxRPCConns <= 0 {
		c.MaxRPCConns = 256
	}
	if c.Epoch.isZero() {
		c.Epoch = DefaultEpoch()
	}
	if c.Splits.Mint.isZero() {
		c.Splits.Mint = DefaultMintSplit()
	}
	if c.Splits.Rental.isZero() {
		c.Splits.Rental = DefaultRentalSplit()
	}
	if c.Rarity.Weights.isZero() {
		c.Rarity.Weights = DefaultRarityWeights()
	}
	if c.Rarity.Rolls.isZero() {
		c.Rarity.Rolls = DefaultRarityRolls()
	}
}

// createDefault generates an operator key, stores it in a keystore beside the
// config file and writes a single-operator configuration around its address.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}
	operator := key.PubKey().Address().String()

	cfg := &Config{
		ListenRPC:            ":8545",
		DataDir:              "./curio-data",
		LogLevel:             "info",
		OperatorKeystorePath: keystorePath,
		PlatformAccount:      operator,
		Epoch:                DefaultEpoch(),
		Splits: Splits{
			Mint:   DefaultMintSplit(),
			Rental: DefaultRentalSplit(),
		},
		Rarity: Rarity{
			Weights: DefaultRarityWeights(),
			Rolls:   DefaultRarityRolls(),
		},
		Genesis: GenesisSpec{
			Admins:     []string{operator},
			Treasurers: []string{operator},
			Minters:    []string{operator},
		},
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
