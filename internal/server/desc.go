package server

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dscengine.v1.DSCEngine"

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// DSCEngineServer is the handler type of ServiceDesc.
type DSCEngineServer interface {
	Call(context.Context, *CallRequest) (*CallReply, error)
	GetAccountInformation(context.Context, *AccountRequest) (*AccountInformation, error)
	GetConstants(context.Context, *Empty) (*ConstantsReply, error)
}

// ServiceDesc is written by hand; messages are plain structs carried by the
// JSON codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DSCEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("DepositCollateral", (*Service).DepositCollateral),
		unary("DepositCollateralAndMintDsc", (*Service).DepositCollateralAndMintDsc),
		unary("RedeemCollateral", (*Service).RedeemCollateral),
		unary("RedeemCollateralForDsc", (*Service).RedeemCollateralForDsc),
		unary("MintDsc", (*Service).MintDsc),
		unary("BurnDsc", (*Service).BurnDsc),
		unary("Liquidate", (*Service).Liquidate),
		unary("Call", (*Service).Call),
		unary("GetAccountInformation", (*Service).GetAccountInformation),
		unary("GetAccountCollateralValue", (*Service).GetAccountCollateralValue),
		unary("GetCollateralBalanceOfUser", (*Service).GetCollateralBalanceOfUser),
		unary("GetHealthFactor", (*Service).GetHealthFactor),
		unary("CalculateHealthFactor", (*Service).CalculateHealthFactor),
		unary("GetUsdValue", (*Service).GetUsdValue),
		unary("GetTokenAmountFromUsd", (*Service).GetTokenAmountFromUsd),
		unary("GetCollateralTokens", (*Service).GetCollateralTokens),
		unary("GetCollateralTokenPriceFeed", (*Service).GetCollateralTokenPriceFeed),
		unary("GetDsc", (*Service).GetDsc),
		unary("GetConstants", (*Service).GetConstants),
		unary("GetPosition", (*Service).GetPosition),
		unary("GetOperationHistory", (*Service).GetOperationHistory),
		unary("VerifyIntegrity", (*Service).VerifyIntegrity),
		unary("Fund", (*Service).Fund),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dscengine/v1/dscengine.json",
}

func unary[Req, Resp any](name string, call func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
