package contract_test

import (
	"DSCEngine/internal/contract"
	"DSCEngine/internal/core"
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/event"
	"DSCEngine/internal/math"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/registry"
	"DSCEngine/internal/token"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	alice    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	custody  = common.HexToAddress("0x00000000000000000000000000000000000e4e11")
	weth     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	wethFeed = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	dscAddr  = common.HexToAddress("0x0000000000000000000000000000000000000d5c")
	unlisted = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

func ether(n uint64) *big.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), math.U(math.Precision)).ToBig()
}

func newDispatcher(t *testing.T) *contract.Dispatcher {
	t.Helper()

	reg, err := registry.New([]common.Address{weth}, []common.Address{wethFeed}, dscAddr)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	prices := oracle.NewStaticSource()
	if err := prices.SetUSD(wethFeed, "2000"); err != nil {
		t.Fatalf("price: %v", err)
	}
	vault := token.NewVault()
	if err := vault.Fund(weth, alice, new(uint256.Int).Mul(uint256.NewInt(100), math.U(math.Precision))); err != nil {
		t.Fatalf("fund: %v", err)
	}

	engine := core.NewEngine(core.Config{
		Registry:   reg,
		Prices:     prices,
		Collateral: vault,
		Debt:       token.NewDSC(),
		Custody:    custody,
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		Logger:     observability.NopLogger(),
	})
	return contract.NewDispatcher(engine)
}

func mustPack(t *testing.T, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := contract.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return data
}

func mustCall(t *testing.T, d *contract.Dispatcher, from common.Address, method string, args ...interface{}) *contract.Result {
	t.Helper()
	res, err := d.Call(context.Background(), from, mustPack(t, method, args...))
	if err != nil {
		t.Fatalf("call %s: %v", method, err)
	}
	return res
}

func mustRevert(t *testing.T, d *contract.Dispatcher, from common.Address, method string, args ...interface{}) *contract.RevertError {
	t.Helper()
	_, err := d.Call(context.Background(), from, mustPack(t, method, args...))
	var revert *contract.RevertError
	if !errors.As(err, &revert) {
		t.Fatalf("call %s: got %v, want *RevertError", method, err)
	}
	return revert
}

// ============================================================================
// Test: Call
// ============================================================================

func TestCall_DepositEmitsIndexedLog(t *testing.T) {
	d := newDispatcher(t)

	res := mustCall(t, d, alice, "depositCollateral", weth, ether(10))
	if res.Output == nil || res.Output.Sequence != 1 {
		t.Fatalf("expected committed output, got %+v", res.Output)
	}
	if len(res.Logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(res.Logs))
	}

	l := res.Logs[0]
	// All three CollateralDeposited fields are indexed.
	if len(l.Topics) != 4 || len(l.Data) != 0 {
		t.Fatalf("got %d topics and %d data bytes, want 4 and 0", len(l.Topics), len(l.Data))
	}
	if l.Topics[0] != contract.ABI().Events["CollateralDeposited"].ID {
		t.Errorf("topic0: got %s", l.Topics[0].Hex())
	}
	if common.BytesToAddress(l.Topics[1].Bytes()) != alice {
		t.Errorf("user topic: got %s", l.Topics[1].Hex())
	}

	ev, err := contract.DecodeLog(l)
	if err != nil {
		t.Fatalf("decode log: %v", err)
	}
	dep, ok := ev.(*event.CollateralDeposited)
	if !ok {
		t.Fatalf("expected *event.CollateralDeposited, got %T", ev)
	}
	if dep.User != alice || dep.Token != weth || dep.Amount.ToBig().Cmp(ether(10)) != 0 {
		t.Errorf("decoded: got %+v", dep)
	}
}

func TestCall_ViewReturnsEncodedValues(t *testing.T) {
	d := newDispatcher(t)
	mustCall(t, d, alice, "depositCollateralAndMintDsc", weth, ether(10), ether(4_000))

	res := mustCall(t, d, bob, "getAccountInformation", alice)
	vals, err := contract.Unpack("getAccountInformation", res.ReturnData)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if got := vals[0].(*big.Int); got.Cmp(ether(4_000)) != 0 {
		t.Errorf("debt: got %s, want %s", got, ether(4_000))
	}
	if got := vals[1].(*big.Int); got.Cmp(ether(20_000)) != 0 {
		t.Errorf("collateral usd: got %s, want %s", got, ether(20_000))
	}

	res = mustCall(t, d, bob, "getCollateralTokens")
	vals, _ = contract.Unpack("getCollateralTokens", res.ReturnData)
	if tokens := vals[0].([]common.Address); len(tokens) != 1 || tokens[0] != weth {
		t.Errorf("tokens: got %v", tokens)
	}

	res = mustCall(t, d, bob, "getLiquidationBonus")
	vals, _ = contract.Unpack("getLiquidationBonus", res.ReturnData)
	if got := vals[0].(*big.Int); got.Uint64() != math.LiquidationBonus {
		t.Errorf("bonus: got %s, want %d", got, math.LiquidationBonus)
	}
}

func TestCall_UnknownSelector(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Call(context.Background(), alice, []byte{0xde, 0xad, 0xbe, 0xef})
	if !errors.Is(err, contract.ErrUnknownSelector) {
		t.Fatalf("got %v, want ErrUnknownSelector", err)
	}
}

// ============================================================================
// Test: reverts
// ============================================================================

func TestRevert_BreaksHealthFactorRoundTrip(t *testing.T) {
	d := newDispatcher(t)
	mustCall(t, d, alice, "depositCollateral", weth, ether(10))

	revert := mustRevert(t, d, alice, "mintDsc", ether(10_001))
	if revert.Name != "DSCEngine__BreaksHealthFactor" {
		t.Fatalf("name: got %s", revert.Name)
	}
	var original *dscerr.BreaksHealthFactorError
	if !errors.As(revert, &original) {
		t.Fatalf("revert should unwrap to the engine error, got %v", revert.Err)
	}

	decoded, err := contract.DecodeRevert(revert.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var breaks *dscerr.BreaksHealthFactorError
	if !errors.As(decoded, &breaks) {
		t.Fatalf("decoded: got %v, want BreaksHealthFactorError", decoded)
	}
	if !breaks.HealthFactor.Eq(original.HealthFactor) {
		t.Errorf("payload: got %s, want %s", breaks.HealthFactor.Dec(), original.HealthFactor.Dec())
	}
}

func TestRevert_TokenNotAllowedCarriesAddress(t *testing.T) {
	d := newDispatcher(t)

	revert := mustRevert(t, d, alice, "depositCollateral", unlisted, ether(1))
	decoded, err := contract.DecodeRevert(revert.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var notAllowed *dscerr.TokenNotAllowedError
	if !errors.As(decoded, &notAllowed) || notAllowed.Token != unlisted {
		t.Errorf("decoded: got %v", decoded)
	}
}

func TestRevert_PayloadFreeKinds(t *testing.T) {
	d := newDispatcher(t)

	revert := mustRevert(t, d, alice, "depositCollateral", weth, big.NewInt(0))
	decoded, err := contract.DecodeRevert(revert.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !errors.Is(decoded, dscerr.ErrNeedsMoreThanZero) {
		t.Errorf("got %v, want ErrNeedsMoreThanZero", decoded)
	}
}

func TestRevert_UnderflowIsArithmeticPanic(t *testing.T) {
	d := newDispatcher(t)
	mustCall(t, d, alice, "depositCollateral", weth, ether(1))

	for _, tc := range []struct {
		method string
		args   []interface{}
	}{
		{"burnDsc", []interface{}{ether(1)}},
		{"redeemCollateral", []interface{}{weth, ether(2)}},
	} {
		revert := mustRevert(t, d, alice, tc.method, tc.args...)
		if revert.Name != "Panic" {
			t.Errorf("%s: name got %s, want Panic", tc.method, revert.Name)
		}
		decoded, err := contract.DecodeRevert(revert.Data)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.method, err)
		}
		var p *contract.PanicError
		if !errors.As(decoded, &p) || p.Code != contract.PanicArithmetic {
			t.Errorf("%s: got %v, want panic 0x11", tc.method, decoded)
		}
	}
}

func TestNewRevert_InfrastructureErrorsPassThrough(t *testing.T) {
	if r := contract.NewRevert(context.Canceled); r != nil {
		t.Errorf("got %v, want nil", r)
	}
}

// ============================================================================
// Test: logs
// ============================================================================

func TestEncodeLog_RedeemedSplitsIndexedFields(t *testing.T) {
	ev := &event.CollateralRedeemed{RedeemFrom: alice, RedeemTo: bob, Token: weth, Amount: uint256.NewInt(7)}

	l, err := contract.EncodeLog(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(l.Topics) != 3 {
		t.Fatalf("got %d topics, want 3", len(l.Topics))
	}
	if len(l.Data) != 64 {
		t.Fatalf("got %d data bytes, want 64", len(l.Data))
	}

	decoded, err := contract.DecodeLog(l)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(*event.CollateralRedeemed)
	if got.RedeemFrom != alice || got.RedeemTo != bob || got.Token != weth || got.Amount.Uint64() != 7 {
		t.Errorf("got %+v", got)
	}
}
