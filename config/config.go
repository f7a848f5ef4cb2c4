package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"lendpool/crypto"
	"lendpool/lending"
	"lendpool/oracle"
)

const envAdminSecret = "LENDPOOL_ADMIN_SECRET"

// Config captures the runtime configuration for the pool daemon.
type Config struct {
	Environment   string        `toml:"Environment"`
	ListenAddress string        `toml:"ListenAddress"`
	OwnerAddress  string        `toml:"OwnerAddress"`
	PoolAddress   string        `toml:"PoolAddress"`
	AdminSecret   string        `toml:"AdminSecret"`
	Storage       StorageConfig `toml:"storage"`
	Risk          RiskConfig    `toml:"risk"`
	Oracle        OracleConfig  `toml:"oracle"`
	Assets        []AssetConfig `toml:"assets"`
	Log           LogConfig     `toml:"log"`
}

// StorageConfig selects the key-value backend backing the ledger.
type StorageConfig struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}

// RiskConfig holds the pool safety limits.
type RiskConfig struct {
	MaxBorrowRatioPct       uint64 `toml:"MaxBorrowRatioPct"`
	LiquidationThresholdPct uint64 `toml:"LiquidationThresholdPct"`
	RestitutionAsset        string `toml:"RestitutionAsset"`
}

// OracleConfig fixes the price routes served by the oracle router.
type OracleConfig struct {
	Deterministic bool     `toml:"Deterministic"`
	Stables       []string `toml:"Stables"`
	Base          string   `toml:"Base"`
	BasePair      string   `toml:"BasePair"`
	QuoteStable   string   `toml:"QuoteStable"`
	Reward        string   `toml:"Reward"`
	RewardPair    string   `toml:"RewardPair"`
}

// AssetConfig describes an asset registered at startup.
type AssetConfig struct {
	Address string `toml:"Address"`
	Weight  uint64 `toml:"Weight"`
}

// LogConfig enables optional rotated file logging.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load reads the TOML configuration, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8645",
		Storage:       StorageConfig{Backend: "leveldb", Path: "./lendpool-data"},
		Risk: RiskConfig{
			MaxBorrowRatioPct:       80,
			LiquidationThresholdPct: 80,
		},
	}
	if strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if secret := strings.TrimSpace(os.Getenv(envAdminSecret)); secret != "" {
		cfg.AdminSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (cfg Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Risk.MaxBorrowRatioPct == 0 || cfg.Risk.MaxBorrowRatioPct > 100 {
		return fmt.Errorf("config: MaxBorrowRatioPct must be in (0,100]")
	}
	if cfg.Risk.LiquidationThresholdPct == 0 || cfg.Risk.LiquidationThresholdPct > 100 {
		return fmt.Errorf("config: LiquidationThresholdPct must be in (0,100]")
	}
	for _, asset := range cfg.Assets {
		if asset.Weight == 0 || asset.Weight > 100 {
			return fmt.Errorf("config: asset %s weight must be in (0,100]", asset.Address)
		}
		if _, err := crypto.DecodeAddress(asset.Address); err != nil {
			return fmt.Errorf("config: asset address %q: %w", asset.Address, err)
		}
	}
	return nil
}

// RiskParameters decodes the risk section into engine parameters.
func (cfg Config) RiskParameters() (lending.RiskParameters, error) {
	params := lending.RiskParameters{
		MaxBorrowRatioPct:       cfg.Risk.MaxBorrowRatioPct,
		LiquidationThresholdPct: cfg.Risk.LiquidationThresholdPct,
	}
	if strings.TrimSpace(cfg.Risk.RestitutionAsset) != "" {
		addr, err := crypto.DecodeAddress(cfg.Risk.RestitutionAsset)
		if err != nil {
			return lending.RiskParameters{}, fmt.Errorf("config: restitution asset: %w", err)
		}
		params.RestitutionAsset = addr
	}
	return params, nil
}

// OracleRouterConfig decodes the oracle section into router routes.
func (cfg Config) OracleRouterConfig() (oracle.Config, error) {
	out := oracle.Config{Deterministic: cfg.Oracle.Deterministic}
	for _, raw := range cfg.Oracle.Stables {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return oracle.Config{}, fmt.Errorf("config: stable asset %q: %w", raw, err)
		}
		out.Stables = append(out.Stables, addr)
	}
	decode := func(raw string, target *crypto.Address, name string) error {
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return fmt.Errorf("config: oracle %s %q: %w", name, raw, err)
		}
		*target = addr
		return nil
	}
	if err := decode(cfg.Oracle.Base, &out.Base, "base"); err != nil {
		return oracle.Config{}, err
	}
	if err := decode(cfg.Oracle.BasePair, &out.BasePair, "base pair"); err != nil {
		return oracle.Config{}, err
	}
	if err := decode(cfg.Oracle.QuoteStable, &out.QuoteStable, "quote stable"); err != nil {
		return oracle.Config{}, err
	}
	if err := decode(cfg.Oracle.Reward, &out.Reward, "reward"); err != nil {
		return oracle.Config{}, err
	}
	if err := decode(cfg.Oracle.RewardPair, &out.RewardPair, "reward pair"); err != nil {
		return oracle.Config{}, err
	}
	return out, nil
}

// Owner decodes the configured owner address; a zero address disables the
// owner-gated operations.
func (cfg Config) Owner() (crypto.Address, error) {
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(cfg.OwnerAddress)
}

// Pool decodes the custody account the in-process bank settles against.
func (cfg Config) Pool() (crypto.Address, error) {
	if strings.TrimSpace(cfg.PoolAddress) == "" {
		return crypto.Address{}, fmt.Errorf("config: PoolAddress required")
	}
	return crypto.DecodeAddress(cfg.PoolAddress)
}
