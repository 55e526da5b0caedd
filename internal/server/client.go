package server

import (
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/query"
	"context"

	"google.golang.org/grpc"
)

// Client calls DSCEngine over a gRPC connection using the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req interface{}) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, FullMethod(method), req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute sends a mutation. method is the gRPC method name, e.g.
// "DepositCollateral".
func (c *Client) Execute(ctx context.Context, method string, req *ingestion.CommandJSON) (*OperationReply, error) {
	return invoke[OperationReply](ctx, c, method, req)
}

func (c *Client) Call(ctx context.Context, req *CallRequest) (*CallReply, error) {
	return invoke[CallReply](ctx, c, "Call", req)
}

func (c *Client) GetAccountInformation(ctx context.Context, user string) (*AccountInformation, error) {
	return invoke[AccountInformation](ctx, c, "GetAccountInformation", &AccountRequest{User: user})
}

func (c *Client) GetHealthFactor(ctx context.Context, user string) (*HealthFactorReply, error) {
	return invoke[HealthFactorReply](ctx, c, "GetHealthFactor", &AccountRequest{User: user})
}

func (c *Client) GetUsdValue(ctx context.Context, token, amount string) (*AmountReply, error) {
	return invoke[AmountReply](ctx, c, "GetUsdValue", &ConversionRequest{Token: token, Amount: amount})
}

func (c *Client) GetTokenAmountFromUsd(ctx context.Context, token, usd string) (*AmountReply, error) {
	return invoke[AmountReply](ctx, c, "GetTokenAmountFromUsd", &ConversionRequest{Token: token, Amount: usd})
}

func (c *Client) GetCollateralTokens(ctx context.Context) (*TokensReply, error) {
	return invoke[TokensReply](ctx, c, "GetCollateralTokens", &Empty{})
}

func (c *Client) GetConstants(ctx context.Context) (*ConstantsReply, error) {
	return invoke[ConstantsReply](ctx, c, "GetConstants", &Empty{})
}

func (c *Client) GetOperationHistory(ctx context.Context, req *HistoryRequest) (*HistoryReply, error) {
	return invoke[HistoryReply](ctx, c, "GetOperationHistory", req)
}

func (c *Client) GetPosition(ctx context.Context, user string) (*query.PositionView, error) {
	return invoke[query.PositionView](ctx, c, "GetPosition", &AccountRequest{User: user})
}

func (c *Client) Fund(ctx context.Context, req *FundRequest) (*FundReply, error) {
	return invoke[FundReply](ctx, c, "Fund", req)
}
