package oracle_test

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/registry"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	weth    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	wbtc    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	ethFeed = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	btcFeed = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	dsc     = common.HexToAddress("0x00000000000000000000000000000000000000d5")
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), math.U(math.Precision))
}

func mustAdapter(t *testing.T) (*oracle.Adapter, *oracle.StaticSource) {
	t.Helper()
	reg, err := registry.New([]common.Address{weth, wbtc}, []common.Address{ethFeed, btcFeed}, dsc)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	prices := oracle.NewStaticSource()
	if err := prices.SetUSD(ethFeed, "2000"); err != nil {
		t.Fatalf("set eth: %v", err)
	}
	if err := prices.SetUSD(btcFeed, "1000"); err != nil {
		t.Fatalf("set btc: %v", err)
	}
	return oracle.NewAdapter(reg, prices), prices
}

// ============================================================================
// Test: Adapter
// ============================================================================

func TestGetUsdValue(t *testing.T) {
	a, _ := mustAdapter(t)

	// 15 ETH * $2000 = $30,000
	got, err := a.GetUsdValue(weth, ether(15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Eq(ether(30_000)) {
		t.Errorf("got %s, want %s", got.Dec(), ether(30_000).Dec())
	}
}

func TestGetTokenAmountFromUsd(t *testing.T) {
	a, _ := mustAdapter(t)

	// $100 / $2000 per ETH = 0.05 ETH
	got, err := a.GetTokenAmountFromUsd(weth, ether(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := uint256.NewInt(50_000_000_000_000_000)
	if !got.Eq(want) {
		t.Errorf("got %s, want %s", got.Dec(), want.Dec())
	}
}

func TestGetTokenAmountFromUsd_Floors(t *testing.T) {
	a, prices := mustAdapter(t)
	if err := prices.SetUSD(ethFeed, "3"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// 1 wei of USD at $3 is 0.333.. wei of token, floored to 0.
	got, err := a.GetTokenAmountFromUsd(weth, uint256.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got.Dec())
	}
}

func TestAdapter_UnregisteredToken(t *testing.T) {
	a, _ := mustAdapter(t)

	_, err := a.GetUsdValue(dsc, ether(1))
	var notAllowed *dscerr.TokenNotAllowedError
	if !errors.As(err, &notAllowed) || notAllowed.Token != dsc {
		t.Errorf("got %v, want TokenNotAllowed(%s)", err, dsc.Hex())
	}
}

func TestAdapter_Overflow(t *testing.T) {
	a, _ := mustAdapter(t)

	if _, err := a.GetUsdValue(weth, math.Max()); !errors.Is(err, dscerr.ErrAmountOverflow) {
		t.Errorf("got %v, want ErrAmountOverflow", err)
	}
}

func TestStaticSource_SetUSDRejectsNonPositive(t *testing.T) {
	s := oracle.NewStaticSource()
	if err := s.SetUSD(ethFeed, "0"); err == nil {
		t.Error("zero price should be rejected")
	}
	if err := s.SetUSD(ethFeed, "0.000000001"); err == nil {
		t.Error("price below feed resolution should be rejected")
	}
}

// ============================================================================
// Test: Cache
// ============================================================================

type flakySource struct {
	inner *oracle.StaticSource
	fail  map[common.Address]bool
}

func (f *flakySource) Latest(ctx context.Context, feed common.Address) (oracle.Price, error) {
	if f.fail[feed] {
		return oracle.Price{}, errors.New("rpc down")
	}
	return f.inner.Latest(ctx, feed)
}

func TestCache_KeepsLastGoodAnswer(t *testing.T) {
	static := oracle.NewStaticSource()
	static.SetUSD(ethFeed, "2000")
	static.SetUSD(btcFeed, "30000")
	src := &flakySource{inner: static, fail: map[common.Address]bool{}}

	cache := oracle.NewCache(src, []common.Address{ethFeed, btcFeed},
		observability.NewMetrics(prometheus.NewRegistry()), observability.NopLogger())

	if cache.Loaded() {
		t.Fatal("cache should start empty")
	}
	if _, err := cache.Price(ethFeed); !errors.Is(err, dscerr.ErrPriceUnavailable) {
		t.Fatalf("got %v, want ErrPriceUnavailable", err)
	}
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !cache.Loaded() {
		t.Fatal("cache should be loaded after refresh")
	}

	static.SetUSD(ethFeed, "1000")
	src.fail[ethFeed] = true
	if err := cache.Refresh(context.Background()); err == nil {
		t.Fatal("refresh should report the failing feed")
	}

	p, err := cache.Price(ethFeed)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if p.Answer.Uint64() != 2000_0000_0000 {
		t.Errorf("got %d, want previous answer 200000000000", p.Answer.Uint64())
	}
}

// ============================================================================
// Test: ChainlinkSource
// ============================================================================

type fakeCaller struct {
	abi       abi.ABI
	decimals  uint8
	answer    *big.Int
	updatedAt *big.Int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(f.decimals)
	default:
		return method.Outputs.Pack(big.NewInt(7), f.answer, big.NewInt(1), f.updatedAt, big.NewInt(7))
	}
}

func mustFakeCaller(t *testing.T, decimals uint8, answer int64, updatedAt int64) *fakeCaller {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(`[
		{"inputs":[],"name":"latestRoundData","outputs":[
			{"name":"roundId","type":"uint80"},{"name":"answer","type":"int256"},
			{"name":"startedAt","type":"uint256"},{"name":"updatedAt","type":"uint256"},
			{"name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
	]`))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return &fakeCaller{abi: parsed, decimals: decimals, answer: big.NewInt(answer), updatedAt: big.NewInt(updatedAt)}
}

func TestChainlinkSource_RescalesAnswer(t *testing.T) {
	caller := mustFakeCaller(t, 10, 20_000_000_000_000, 1_700_000_000)
	src, err := oracle.NewChainlinkSource(caller)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	p, err := src.Latest(context.Background(), ethFeed)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if p.Answer.Uint64() != 2000_0000_0000 {
		t.Errorf("answer: got %d, want 200000000000", p.Answer.Uint64())
	}
	if p.RoundID != 7 {
		t.Errorf("round: got %d, want 7", p.RoundID)
	}
	if p.UpdatedAt.Unix() != 1_700_000_000 {
		t.Errorf("updatedAt: got %d, want 1700000000", p.UpdatedAt.Unix())
	}
}

func TestChainlinkSource_RejectsBadRounds(t *testing.T) {
	cases := []struct {
		name      string
		answer    int64
		updatedAt int64
	}{
		{"negative answer", -1, 1_700_000_000},
		{"zero answer", 0, 1_700_000_000},
		{"incomplete round", 2000_0000_0000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := oracle.NewChainlinkSource(mustFakeCaller(t, 8, tc.answer, tc.updatedAt))
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if _, err := src.Latest(context.Background(), ethFeed); !errors.Is(err, dscerr.ErrPriceUnavailable) {
				t.Errorf("got %v, want ErrPriceUnavailable", err)
			}
		})
	}
}
