package server

import (
	"DSCEngine/internal/contract"
	"DSCEngine/internal/core"
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/math"
	"DSCEngine/internal/query"
	"DSCEngine/internal/risk"
	"DSCEngine/internal/token"
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service implements dscengine.v1.DSCEngine on top of the engine. Live
// values come from the engine; positions and history come from the read
// model when a QueryService is configured.
type Service struct {
	engine     *core.Engine
	dispatcher *contract.Dispatcher
	queries    *query.QueryService
	vault      *token.Vault
	dsc        *token.DSC
	devMode    bool
}

func NewService(deps *ServerDeps) *Service {
	return &Service{
		engine:     deps.Engine,
		dispatcher: contract.NewDispatcher(deps.Engine),
		queries:    deps.QueryService,
		vault:      deps.Vault,
		dsc:        deps.DSC,
		devMode:    deps.DevMode,
	}
}

// ============================================================================
// Mutations
// ============================================================================

func (s *Service) DepositCollateral(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpDepositCollateral, req)
}

func (s *Service) DepositCollateralAndMintDsc(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpDepositCollateralAndMintDsc, req)
}

func (s *Service) RedeemCollateral(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpRedeemCollateral, req)
}

func (s *Service) RedeemCollateralForDsc(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpRedeemCollateralForDsc, req)
}

func (s *Service) MintDsc(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpMintDsc, req)
}

func (s *Service) BurnDsc(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpBurnDsc, req)
}

func (s *Service) Liquidate(ctx context.Context, req *ingestion.CommandJSON) (*OperationReply, error) {
	return s.execute(ctx, core.OpLiquidate, req)
}

// execute runs req as operation op. A missing command id is generated so
// every API mutation is logged with one.
func (s *Service) execute(ctx context.Context, op core.Operation, req *ingestion.CommandJSON) (*OperationReply, error) {
	j := *req
	j.Type = op.String()
	if j.CommandID == "" {
		j.CommandID = uuid.NewString()
	}
	cmd, err := j.Command("")
	if err != nil {
		return nil, toStatus(badRequest("%v", err))
	}

	out, err := s.engine.Execute(ctx, cmd)
	if err != nil {
		return nil, toStatus(err)
	}
	envelopes, err := ingestion.NewEnvelopes(*out)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OperationReply{
		CommandID: cmd.ID,
		Sequence:  out.Sequence,
		StateHash: out.StateHash.Hex(),
		Events:    envelopes,
	}, nil
}

// Call executes raw ABI calldata with From as the sender.
func (s *Service) Call(ctx context.Context, req *CallRequest) (*CallReply, error) {
	from, err := parseAddress("from", req.From)
	if err != nil {
		return nil, toStatus(err)
	}
	data, err := hexutil.Decode(req.Data)
	if err != nil {
		return nil, toStatus(badRequest("data: %v", err))
	}

	res, err := s.dispatcher.Call(ctx, from, data)
	if err != nil {
		return nil, toStatus(err)
	}
	reply := &CallReply{Method: res.Method, ReturnData: hexutil.Encode(res.ReturnData)}
	if res.Output != nil {
		reply.Sequence = res.Output.Sequence
	}
	for _, l := range res.Logs {
		cl := CallLog{Data: hexutil.Encode(l.Data)}
		for _, t := range l.Topics {
			cl.Topics = append(cl.Topics, t.Hex())
		}
		reply.Logs = append(reply.Logs, cl)
	}
	return reply, nil
}

// ============================================================================
// Queries
// ============================================================================

func (s *Service) GetAccountInformation(ctx context.Context, req *AccountRequest) (*AccountInformation, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}

	minted, value, err := s.engine.GetAccountInformation(user)
	if err != nil {
		return nil, toStatus(err)
	}
	hf, err := s.engine.CalculateHealthFactor(minted, value)
	if err != nil {
		return nil, toStatus(err)
	}

	info := &AccountInformation{
		User:                 user.Hex(),
		TotalDscMinted:       minted.Dec(),
		CollateralValueInUsd: value.Dec(),
		HealthFactor:         hf.Dec(),
		Status:               risk.StatusOf(hf).String(),
		Sequence:             s.engine.GetSequence(),
	}
	for _, t := range s.engine.GetCollateralTokens() {
		info.Collateral = append(info.Collateral, TokenBalance{
			Token:  t.Hex(),
			Amount: s.engine.GetCollateralBalanceOfUser(user, t).Dec(),
		})
		if s.vault != nil {
			info.Wallet = append(info.Wallet, TokenBalance{
				Token:  t.Hex(),
				Amount: s.vault.BalanceOf(t, user).Dec(),
			})
		}
	}
	if s.dsc != nil {
		info.DscBalance = s.dsc.BalanceOf(user).Dec()
	}
	return info, nil
}

func (s *Service) GetAccountCollateralValue(ctx context.Context, req *AccountRequest) (*AmountReply, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.engine.GetAccountCollateralValue(user)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AmountReply{Amount: v.Dec()}, nil
}

func (s *Service) GetCollateralBalanceOfUser(ctx context.Context, req *BalanceRequest) (*AmountReply, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AmountReply{Amount: s.engine.GetCollateralBalanceOfUser(user, tok).Dec()}, nil
}

func (s *Service) GetHealthFactor(ctx context.Context, req *AccountRequest) (*HealthFactorReply, error) {
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}
	hf, err := s.engine.GetHealthFactor(user)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HealthFactorReply{HealthFactor: hf.Dec(), Status: risk.StatusOf(hf).String()}, nil
}

func (s *Service) CalculateHealthFactor(ctx context.Context, req *CalculateHealthFactorRequest) (*HealthFactorReply, error) {
	minted, err := parseAmount("total_dsc_minted", req.TotalDscMinted)
	if err != nil {
		return nil, toStatus(err)
	}
	value, err := parseAmount("collateral_value_in_usd", req.CollateralValueInUsd)
	if err != nil {
		return nil, toStatus(err)
	}
	hf, err := s.engine.CalculateHealthFactor(minted, value)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HealthFactorReply{HealthFactor: hf.Dec(), Status: risk.StatusOf(hf).String()}, nil
}

func (s *Service) GetUsdValue(ctx context.Context, req *ConversionRequest) (*AmountReply, error) {
	tok, amount, err := parseConversion(req)
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.engine.GetUsdValue(tok, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AmountReply{Amount: v.Dec()}, nil
}

func (s *Service) GetTokenAmountFromUsd(ctx context.Context, req *ConversionRequest) (*AmountReply, error) {
	tok, amount, err := parseConversion(req)
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.engine.GetTokenAmountFromUsd(tok, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AmountReply{Amount: v.Dec()}, nil
}

func (s *Service) GetCollateralTokens(ctx context.Context, _ *Empty) (*TokensReply, error) {
	reply := &TokensReply{Dsc: s.engine.GetDsc().Hex()}
	for _, t := range s.engine.GetCollateralTokens() {
		reply.Tokens = append(reply.Tokens, CollateralToken{
			Token:     t.Hex(),
			PriceFeed: s.engine.GetCollateralTokenPriceFeed(t).Hex(),
		})
	}
	return reply, nil
}

func (s *Service) GetCollateralTokenPriceFeed(ctx context.Context, req *TokenRequest) (*AddressReply, error) {
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	feed := s.engine.GetCollateralTokenPriceFeed(tok)
	if feed == (common.Address{}) {
		return nil, status.Errorf(codes.NotFound, "no price feed for %s", tok.Hex())
	}
	return &AddressReply{Address: feed.Hex()}, nil
}

func (s *Service) GetDsc(ctx context.Context, _ *Empty) (*AddressReply, error) {
	return &AddressReply{Address: s.engine.GetDsc().Hex()}, nil
}

func (s *Service) GetConstants(ctx context.Context, _ *Empty) (*ConstantsReply, error) {
	return &ConstantsReply{
		Precision:               s.engine.GetPrecision().Dec(),
		AdditionalFeedPrecision: s.engine.GetAdditionalFeedPrecision().Dec(),
		LiquidationThreshold:    s.engine.GetLiquidationThreshold().Dec(),
		LiquidationBonus:        s.engine.GetLiquidationBonus().Dec(),
		LiquidationPrecision:    s.engine.GetLiquidationPrecision().Dec(),
		MinHealthFactor:         s.engine.GetMinHealthFactor().Dec(),
	}, nil
}

// ============================================================================
// Read model
// ============================================================================

func (s *Service) GetPosition(ctx context.Context, req *AccountRequest) (*query.PositionView, error) {
	if s.queries == nil {
		return nil, status.Error(codes.Unavailable, "read model not configured")
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}
	view, err := s.queries.GetPosition(ctx, user)
	if err != nil {
		return nil, toStatus(err)
	}
	return view, nil
}

func (s *Service) GetOperationHistory(ctx context.Context, req *HistoryRequest) (*HistoryReply, error) {
	if s.queries == nil {
		return nil, status.Error(codes.Unavailable, "read model not configured")
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		return nil, toStatus(err)
	}
	var before *int64
	if req.Before > 0 {
		before = &req.Before
	}
	ops, err := s.queries.GetOperationHistory(ctx, user, req.Limit, before)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HistoryReply{Operations: ops}, nil
}

func (s *Service) VerifyIntegrity(ctx context.Context, _ *Empty) (*query.IntegrityReport, error) {
	if s.queries == nil {
		return nil, status.Error(codes.Unavailable, "read model not configured")
	}
	report, err := s.queries.VerifyIntegrity(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return report, nil
}

// ============================================================================
// Dev
// ============================================================================

// Fund credits wallet balances of an allowed collateral token.
func (s *Service) Fund(ctx context.Context, req *FundRequest) (*FundReply, error) {
	if !s.devMode || s.vault == nil {
		return nil, status.Error(codes.PermissionDenied, "funding is only available in dev mode")
	}
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return nil, toStatus(err)
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	if s.engine.GetCollateralTokenPriceFeed(tok) == (common.Address{}) {
		return nil, status.Errorf(codes.InvalidArgument, "token %s is not collateral", tok.Hex())
	}
	if err := s.vault.Fund(tok, to, amount); err != nil {
		return nil, toStatus(err)
	}
	return &FundReply{Balance: s.vault.BalanceOf(tok, to).Dec()}, nil
}

// ============================================================================
// Helpers
// ============================================================================

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	v, err := math.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return v, nil
}

func parseConversion(req *ConversionRequest) (common.Address, *uint256.Int, error) {
	tok, err := parseAddress("token", req.Token)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return common.Address{}, nil, err
	}
	return tok, amount, nil
}
