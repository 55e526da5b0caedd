package contract

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/math"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrUnknownSelector = errors.New("unknown function selector")

// Result is a successful call.
type Result struct {
	Method     string
	ReturnData []byte
	// Output is set for state-changing calls.
	Output *core.Output
	Logs   []Log
}

type handler func(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error)

// Dispatcher executes ABI calldata against the engine.
type Dispatcher struct {
	engine   *core.Engine
	handlers map[string]handler
}

func NewDispatcher(engine *core.Engine) *Dispatcher {
	d := &Dispatcher{engine: engine}
	d.handlers = map[string]handler{
		"depositCollateral":           d.depositCollateral,
		"depositCollateralAndMintDsc": d.depositCollateralAndMintDsc,
		"redeemCollateral":            d.redeemCollateral,
		"redeemCollateralForDsc":      d.redeemCollateralForDsc,
		"mintDsc":                     d.mintDsc,
		"burnDsc":                     d.burnDsc,
		"liquidate":                   d.liquidate,
		"getAccountInformation":       d.getAccountInformation,
		"getAccountCollateralValue":   d.getAccountCollateralValue,
		"getCollateralBalanceOfUser":  d.getCollateralBalanceOfUser,
		"getHealthFactor":             d.getHealthFactor,
		"calculateHealthFactor":       d.calculateHealthFactor,
		"getTokenAmountFromUsd":       d.getTokenAmountFromUsd,
		"getUsdValue":                 d.getUsdValue,
		"getCollateralTokens":         d.getCollateralTokens,
		"getCollateralTokenPriceFeed": d.getCollateralTokenPriceFeed,
		"getDsc":                      d.getDsc,
		"getPrecision":                constant(engine.GetPrecision),
		"getAdditionalFeedPrecision":  constant(engine.GetAdditionalFeedPrecision),
		"getLiquidationThreshold":     constant(engine.GetLiquidationThreshold),
		"getLiquidationBonus":         constant(engine.GetLiquidationBonus),
		"getLiquidationPrecision":     constant(engine.GetLiquidationPrecision),
		"getMinHealthFactor":          constant(engine.GetMinHealthFactor),
	}
	return d
}

// Call decodes calldata by selector and runs the function with from as the
// sender. Engine rejections come back as *RevertError.
func (d *Dispatcher) Call(ctx context.Context, from common.Address, calldata []byte) (*Result, error) {
	if len(calldata) < 4 {
		return nil, fmt.Errorf("%w: calldata is %d bytes", ErrUnknownSelector, len(calldata))
	}
	method, err := parsedABI.MethodById(calldata[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, calldata[:4])
	}
	h, ok := d.handlers[method.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, method.Name)
	}

	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("decode %s arguments: %w", method.Name, err)
	}

	values, out, err := h(ctx, from, args)
	if err != nil {
		if revert := NewRevert(err); revert != nil {
			return nil, revert
		}
		return nil, err
	}

	ret, err := method.Outputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", method.Name, err)
	}
	res := &Result{Method: method.Name, ReturnData: ret, Output: out}
	if out != nil {
		for _, ev := range out.Events {
			l, err := EncodeLog(ev)
			if err != nil {
				return nil, err
			}
			res.Logs = append(res.Logs, l)
		}
	}
	return res, nil
}

// --- argument helpers ---

func bigArg(args []interface{}, i int) (*uint256.Int, error) {
	b, ok := args[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected uint256, got %T", i, args[i])
	}
	return math.FromBig(b)
}

func bigField(fields map[string]interface{}, name string) (*uint256.Int, error) {
	b, ok := fields[name].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("field %s: expected uint256, got %T", name, fields[name])
	}
	return math.FromBig(b)
}

func addrArg(args []interface{}, i int) (common.Address, error) {
	a, ok := args[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("argument %d: expected address, got %T", i, args[i])
	}
	return a, nil
}

// addrAmounts reads the (address, uint256, uint256...) shape shared by most
// mutations.
func addrAmounts(args []interface{}, n int) (common.Address, []*uint256.Int, error) {
	addr, err := addrArg(args, 0)
	if err != nil {
		return common.Address{}, nil, err
	}
	amounts := make([]*uint256.Int, 0, n)
	for i := 1; i <= n; i++ {
		amount, err := bigArg(args, i)
		if err != nil {
			return common.Address{}, nil, err
		}
		amounts = append(amounts, amount)
	}
	return addr, amounts, nil
}

func constant(get func() *uint256.Int) handler {
	return func(context.Context, common.Address, []interface{}) ([]interface{}, *core.Output, error) {
		return []interface{}{get().ToBig()}, nil, nil
	}
}

// --- mutations ---

func (d *Dispatcher) depositCollateral(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 1)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.DepositCollateral(ctx, from, token, amounts[0])
	return nil, out, err
}

func (d *Dispatcher) depositCollateralAndMintDsc(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 2)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.DepositCollateralAndMintDsc(ctx, from, token, amounts[0], amounts[1])
	return nil, out, err
}

func (d *Dispatcher) redeemCollateral(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 1)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.RedeemCollateral(ctx, from, token, amounts[0])
	return nil, out, err
}

func (d *Dispatcher) redeemCollateralForDsc(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 2)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.RedeemCollateralForDsc(ctx, from, token, amounts[0], amounts[1])
	return nil, out, err
}

func (d *Dispatcher) mintDsc(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	amount, err := bigArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.MintDsc(ctx, from, amount)
	return nil, out, err
}

func (d *Dispatcher) burnDsc(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	amount, err := bigArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.BurnDsc(ctx, from, amount)
	return nil, out, err
}

func (d *Dispatcher) liquidate(ctx context.Context, from common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	collateral, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	user, err := addrArg(args, 1)
	if err != nil {
		return nil, nil, err
	}
	debtToCover, err := bigArg(args, 2)
	if err != nil {
		return nil, nil, err
	}
	out, err := d.engine.Liquidate(ctx, from, collateral, user, debtToCover)
	return nil, out, err
}

// --- views ---

func (d *Dispatcher) getAccountInformation(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	user, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	debt, collateral, err := d.engine.GetAccountInformation(user)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{debt.ToBig(), collateral.ToBig()}, nil, nil
}

func (d *Dispatcher) getAccountCollateralValue(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	user, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.engine.GetAccountCollateralValue(user)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{v.ToBig()}, nil, nil
}

func (d *Dispatcher) getCollateralBalanceOfUser(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	user, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	token, err := addrArg(args, 1)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{d.engine.GetCollateralBalanceOfUser(user, token).ToBig()}, nil, nil
}

func (d *Dispatcher) getHealthFactor(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	user, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	hf, err := d.engine.GetHealthFactor(user)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{hf.ToBig()}, nil, nil
}

func (d *Dispatcher) calculateHealthFactor(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	debt, err := bigArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	collateral, err := bigArg(args, 1)
	if err != nil {
		return nil, nil, err
	}
	hf, err := d.engine.CalculateHealthFactor(debt, collateral)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{hf.ToBig()}, nil, nil
}

func (d *Dispatcher) getTokenAmountFromUsd(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 1)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.engine.GetTokenAmountFromUsd(token, amounts[0])
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{v.ToBig()}, nil, nil
}

func (d *Dispatcher) getUsdValue(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, amounts, err := addrAmounts(args, 1)
	if err != nil {
		return nil, nil, err
	}
	v, err := d.engine.GetUsdValue(token, amounts[0])
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{v.ToBig()}, nil, nil
}

func (d *Dispatcher) getCollateralTokens(context.Context, common.Address, []interface{}) ([]interface{}, *core.Output, error) {
	return []interface{}{d.engine.GetCollateralTokens()}, nil, nil
}

func (d *Dispatcher) getCollateralTokenPriceFeed(_ context.Context, _ common.Address, args []interface{}) ([]interface{}, *core.Output, error) {
	token, err := addrArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	return []interface{}{d.engine.GetCollateralTokenPriceFeed(token)}, nil, nil
}

func (d *Dispatcher) getDsc(context.Context, common.Address, []interface{}) ([]interface{}, *core.Output, error) {
	return []interface{}{d.engine.GetDsc()}, nil, nil
}
