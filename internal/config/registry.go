package config

import (
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/registry"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RegistryFile is the deployment description of the engine: its own
// address (custody of deposited collateral), the DSC token, and the
// collateral tokens with their price feeds.
type RegistryFile struct {
	Engine     string            `yaml:"engine"`
	Dsc        string            `yaml:"dsc"`
	Collateral []CollateralEntry `yaml:"collateral"`
}

type CollateralEntry struct {
	Symbol    string `yaml:"symbol"`
	Token     string `yaml:"token"`
	PriceFeed string `yaml:"price_feed"`
	// StaticPrice is a USD price such as "2000", used when no RPC endpoint
	// is configured.
	StaticPrice string `yaml:"static_price"`
}

// LoadRegistryFile reads and validates the registry file at path.
func LoadRegistryFile(path string) (RegistryFile, error) {
	if path == "" {
		return RegistryFile{}, fmt.Errorf("registry file path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return RegistryFile{}, fmt.Errorf("open registry file: %w", err)
	}
	defer file.Close()

	var rf RegistryFile
	if err := yaml.NewDecoder(file).Decode(&rf); err != nil {
		return RegistryFile{}, fmt.Errorf("decode registry file: %w", err)
	}
	rf.normalize()
	if err := rf.validate(); err != nil {
		return RegistryFile{}, err
	}
	return rf, nil
}

// ParseRegistryFile is LoadRegistryFile for in-memory YAML.
func ParseRegistryFile(data []byte) (RegistryFile, error) {
	var rf RegistryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return RegistryFile{}, fmt.Errorf("decode registry file: %w", err)
	}
	rf.normalize()
	if err := rf.validate(); err != nil {
		return RegistryFile{}, err
	}
	return rf, nil
}

func (rf *RegistryFile) normalize() {
	rf.Engine = strings.TrimSpace(rf.Engine)
	rf.Dsc = strings.TrimSpace(rf.Dsc)
	for i := range rf.Collateral {
		c := &rf.Collateral[i]
		c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
		c.Token = strings.TrimSpace(c.Token)
		c.PriceFeed = strings.TrimSpace(c.PriceFeed)
		c.StaticPrice = strings.TrimSpace(c.StaticPrice)
	}
}

// validate checks field syntax. A missing price feed is left for the
// registry constructor, which rejects mismatched token and feed lists.
func (rf RegistryFile) validate() error {
	if !common.IsHexAddress(rf.Engine) {
		return fmt.Errorf("engine: invalid address %q", rf.Engine)
	}
	if !common.IsHexAddress(rf.Dsc) {
		return fmt.Errorf("dsc: invalid address %q", rf.Dsc)
	}
	if len(rf.Collateral) == 0 {
		return fmt.Errorf("collateral: at least one token is required")
	}

	symbols := make(map[string]struct{}, len(rf.Collateral))
	for i, c := range rf.Collateral {
		if c.Symbol != "" {
			if _, dup := symbols[c.Symbol]; dup {
				return fmt.Errorf("collateral[%d]: duplicate symbol %s", i, c.Symbol)
			}
			symbols[c.Symbol] = struct{}{}
		}
		if !common.IsHexAddress(c.Token) {
			return fmt.Errorf("collateral[%d]: invalid token address %q", i, c.Token)
		}
		if c.PriceFeed != "" && !common.IsHexAddress(c.PriceFeed) {
			return fmt.Errorf("collateral[%d]: invalid price_feed address %q", i, c.PriceFeed)
		}
		if c.StaticPrice != "" {
			d, err := decimal.NewFromString(c.StaticPrice)
			if err != nil {
				return fmt.Errorf("collateral[%d]: static_price: %w", i, err)
			}
			if !d.IsPositive() {
				return fmt.Errorf("collateral[%d]: static_price must be positive", i)
			}
		}
	}
	return nil
}

// EngineAddress is the custody account for deposited collateral.
func (rf RegistryFile) EngineAddress() common.Address {
	return common.HexToAddress(rf.Engine)
}

// Build constructs the asset registry. Tokens and feeds are collected
// separately, exactly as the contract constructor receives them.
func (rf RegistryFile) Build() (*registry.Registry, error) {
	tokens := make([]common.Address, 0, len(rf.Collateral))
	feeds := make([]common.Address, 0, len(rf.Collateral))
	for _, c := range rf.Collateral {
		tokens = append(tokens, common.HexToAddress(c.Token))
		if c.PriceFeed != "" {
			feeds = append(feeds, common.HexToAddress(c.PriceFeed))
		}
	}
	return registry.New(tokens, feeds, common.HexToAddress(rf.Dsc))
}

// StaticPrices maps price feed to configured USD price, skipping entries
// without one.
func (rf RegistryFile) StaticPrices() map[common.Address]string {
	out := make(map[common.Address]string)
	for _, c := range rf.Collateral {
		if c.StaticPrice != "" && c.PriceFeed != "" {
			out[common.HexToAddress(c.PriceFeed)] = c.StaticPrice
		}
	}
	return out
}

// ApplyStaticPrices loads every configured static price into src.
func (rf RegistryFile) ApplyStaticPrices(src *oracle.StaticSource) error {
	for feed, usd := range rf.StaticPrices() {
		if err := src.SetUSD(feed, usd); err != nil {
			return fmt.Errorf("feed %s: %w", feed.Hex(), err)
		}
	}
	return nil
}

// Symbols maps token address to symbol, for logs and the CLI.
func (rf RegistryFile) Symbols() map[common.Address]string {
	out := make(map[common.Address]string)
	for _, c := range rf.Collateral {
		if c.Symbol != "" {
			out[common.HexToAddress(c.Token)] = c.Symbol
		}
	}
	return out
}
