package config_test

import (
	"DSCEngine/internal/config"
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/oracle"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const registryYAML = `
engine: " 0x00000000000000000000000000000000000e4e11 "
dsc: "0x0000000000000000000000000000000000000d5c"
collateral:
  - symbol: " weth "
    token: "0x00000000000000000000000000000000000000e1"
    price_feed: "0x00000000000000000000000000000000000000f1"
    static_price: "2000"
  - symbol: wbtc
    token: "0x00000000000000000000000000000000000000e2"
    price_feed: "0x00000000000000000000000000000000000000f2"
`

func writeRegistry(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}

// ============================================================================
// Test: registry file
// ============================================================================

func TestLoadRegistryFile_BuildsRegistry(t *testing.T) {
	rf, err := config.LoadRegistryFile(writeRegistry(t, registryYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got, want := rf.EngineAddress(), common.HexToAddress("0x00000000000000000000000000000000000e4e11"); got != want {
		t.Errorf("engine: got %s, want %s", got.Hex(), want.Hex())
	}
	if rf.Collateral[0].Symbol != "WETH" {
		t.Errorf("symbol: got %q, want WETH", rf.Collateral[0].Symbol)
	}

	reg, err := rf.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("got %d tokens, want 2", reg.Len())
	}
	wbtc := common.HexToAddress("0x00000000000000000000000000000000000000e2")
	if got := reg.PriceFeed(wbtc); got != common.HexToAddress("0x00000000000000000000000000000000000000f2") {
		t.Errorf("wbtc feed: got %s", got.Hex())
	}
	if reg.CollateralTokens()[0] != common.HexToAddress("0x00000000000000000000000000000000000000e1") {
		t.Errorf("registration order not preserved: %v", reg.CollateralTokens())
	}
}

func TestRegistryFile_MissingFeedIsLengthMismatch(t *testing.T) {
	rf, err := config.ParseRegistryFile([]byte(`
engine: "0x00000000000000000000000000000000000e4e11"
dsc: "0x0000000000000000000000000000000000000d5c"
collateral:
  - token: "0x00000000000000000000000000000000000000e1"
    price_feed: "0x00000000000000000000000000000000000000f1"
  - token: "0x00000000000000000000000000000000000000e2"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = rf.Build()
	if !errors.Is(err, dscerr.ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch) {
		t.Fatalf("got %v, want length mismatch", err)
	}
}

func TestRegistryFile_Validation(t *testing.T) {
	cases := map[string]string{
		"bad engine": `
engine: "nope"
dsc: "0x0000000000000000000000000000000000000d5c"
collateral:
  - token: "0x00000000000000000000000000000000000000e1"
`,
		"no collateral": `
engine: "0x00000000000000000000000000000000000e4e11"
dsc: "0x0000000000000000000000000000000000000d5c"
`,
		"duplicate symbol": `
engine: "0x00000000000000000000000000000000000e4e11"
dsc: "0x0000000000000000000000000000000000000d5c"
collateral:
  - symbol: weth
    token: "0x00000000000000000000000000000000000000e1"
  - symbol: WETH
    token: "0x00000000000000000000000000000000000000e2"
`,
		"negative price": `
engine: "0x00000000000000000000000000000000000e4e11"
dsc: "0x0000000000000000000000000000000000000d5c"
collateral:
  - token: "0x00000000000000000000000000000000000000e1"
    price_feed: "0x00000000000000000000000000000000000000f1"
    static_price: "-1"
`,
	}
	for name, doc := range cases {
		if _, err := config.ParseRegistryFile([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadRegistryFile_MissingPath(t *testing.T) {
	if _, err := config.LoadRegistryFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyStaticPrices(t *testing.T) {
	rf, err := config.ParseRegistryFile([]byte(registryYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	src := oracle.NewStaticSource()
	if err := rf.ApplyStaticPrices(src); err != nil {
		t.Fatalf("apply: %v", err)
	}

	p, err := src.Price(common.HexToAddress("0x00000000000000000000000000000000000000f1"))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	// 2000 with 8 feed decimals
	if p.Answer.Uint64() != 200_000_000_000 {
		t.Errorf("answer: got %d, want 200000000000", p.Answer.Uint64())
	}
	if _, err := src.Price(common.HexToAddress("0x00000000000000000000000000000000000000f2")); err == nil {
		t.Error("wbtc has no static price and should be unavailable")
	}
}

// ============================================================================
// Test: environment
// ============================================================================

func TestFromEnv_Defaults(t *testing.T) {
	cfg := config.FromEnv()
	if cfg.GRPCAddr != ":9090" || cfg.HTTPAddr != ":8080" {
		t.Errorf("addrs: got %s %s", cfg.GRPCAddr, cfg.HTTPAddr)
	}
	if cfg.PersistBatchSize != 50 {
		t.Errorf("batch: got %d, want 50", cfg.PersistBatchSize)
	}
	if cfg.DevMode {
		t.Error("dev mode should default to off")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DSC_GRPC_PORT", "7000")
	t.Setenv("DSC_PERSIST_BATCH", "200")
	t.Setenv("DSC_PRICE_POLL_INTERVAL", "30")
	t.Setenv("DSC_PERSIST_FLUSH_TIMEOUT", "25ms")
	t.Setenv("DSC_DEV_MODE", "true")
	t.Setenv("DSC_SNAPSHOT_INTERVAL", "not-a-number")

	cfg := config.FromEnv()
	if cfg.GRPCAddr != ":7000" {
		t.Errorf("grpc: got %s", cfg.GRPCAddr)
	}
	if cfg.PersistBatchSize != 200 {
		t.Errorf("batch: got %d", cfg.PersistBatchSize)
	}
	if cfg.PricePollInterval != 30*time.Second {
		t.Errorf("poll: got %s", cfg.PricePollInterval)
	}
	if cfg.PersistFlushTimeout != 25*time.Millisecond {
		t.Errorf("flush: got %s", cfg.PersistFlushTimeout)
	}
	if !cfg.DevMode {
		t.Error("dev mode: got false")
	}
	if cfg.SnapshotInterval != 10_000 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.SnapshotInterval)
	}
}
