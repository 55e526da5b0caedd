package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 1 << 20

// Handler builds the HTTP/JSON gateway. Routes call the same Service
// methods the gRPC server registers.
func (s *GRPCServer) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	svc := s.service

	routes := []route{
		// Mutations
		{"POST", "/v1/collateral/deposit", bodyRoute(s, "DepositCollateral", svc.DepositCollateral)},
		{"POST", "/v1/collateral/deposit_and_mint", bodyRoute(s, "DepositCollateralAndMintDsc", svc.DepositCollateralAndMintDsc)},
		{"POST", "/v1/collateral/redeem", bodyRoute(s, "RedeemCollateral", svc.RedeemCollateral)},
		{"POST", "/v1/collateral/redeem_for_dsc", bodyRoute(s, "RedeemCollateralForDsc", svc.RedeemCollateralForDsc)},
		{"POST", "/v1/dsc/mint", bodyRoute(s, "MintDsc", svc.MintDsc)},
		{"POST", "/v1/dsc/burn", bodyRoute(s, "BurnDsc", svc.BurnDsc)},
		{"POST", "/v1/liquidate", bodyRoute(s, "Liquidate", svc.Liquidate)},
		{"POST", "/v1/call", bodyRoute(s, "Call", svc.Call)},
		{"POST", "/v1/health_factor/calculate", bodyRoute(s, "CalculateHealthFactor", svc.CalculateHealthFactor)},

		// Accounts
		{"GET", "/v1/accounts/{user}", paramRoute(s, "GetAccountInformation", svc.GetAccountInformation,
			func(p params) *AccountRequest { return &AccountRequest{User: p.path["user"]} })},
		{"GET", "/v1/accounts/{user}/collateral_value", paramRoute(s, "GetAccountCollateralValue", svc.GetAccountCollateralValue,
			func(p params) *AccountRequest { return &AccountRequest{User: p.path["user"]} })},
		{"GET", "/v1/accounts/{user}/collateral/{token}", paramRoute(s, "GetCollateralBalanceOfUser", svc.GetCollateralBalanceOfUser,
			func(p params) *BalanceRequest { return &BalanceRequest{User: p.path["user"], Token: p.path["token"]} })},
		{"GET", "/v1/accounts/{user}/health_factor", paramRoute(s, "GetHealthFactor", svc.GetHealthFactor,
			func(p params) *AccountRequest { return &AccountRequest{User: p.path["user"]} })},
		{"GET", "/v1/accounts/{user}/position", paramRoute(s, "GetPosition", svc.GetPosition,
			func(p params) *AccountRequest { return &AccountRequest{User: p.path["user"]} })},
		{"GET", "/v1/accounts/{user}/history", paramRoute(s, "GetOperationHistory", svc.GetOperationHistory,
			func(p params) *HistoryRequest {
				return &HistoryRequest{User: p.path["user"], Limit: int(p.int("limit")), Before: p.int("before")}
			})},

		// Registry, prices and constants
		{"GET", "/v1/tokens", paramRoute(s, "GetCollateralTokens", svc.GetCollateralTokens, empty)},
		{"GET", "/v1/tokens/{token}/price_feed", paramRoute(s, "GetCollateralTokenPriceFeed", svc.GetCollateralTokenPriceFeed,
			func(p params) *TokenRequest { return &TokenRequest{Token: p.path["token"]} })},
		{"GET", "/v1/tokens/{token}/usd_value", paramRoute(s, "GetUsdValue", svc.GetUsdValue,
			func(p params) *ConversionRequest {
				return &ConversionRequest{Token: p.path["token"], Amount: p.query.Get("amount")}
			})},
		{"GET", "/v1/tokens/{token}/amount_from_usd", paramRoute(s, "GetTokenAmountFromUsd", svc.GetTokenAmountFromUsd,
			func(p params) *ConversionRequest {
				return &ConversionRequest{Token: p.path["token"], Amount: p.query.Get("usd")}
			})},
		{"GET", "/v1/dsc", paramRoute(s, "GetDsc", svc.GetDsc, empty)},
		{"GET", "/v1/constants", paramRoute(s, "GetConstants", svc.GetConstants, empty)},

		// Admin
		{"GET", "/v1/admin/integrity", paramRoute(s, "VerifyIntegrity", svc.VerifyIntegrity, empty)},
	}
	if s.deps.DevMode {
		routes = append(routes, route{"POST", "/v1/dev/fund", bodyRoute(s, "Fund", svc.Fund)})
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.h); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.path, err)
		}
	}

	if hc := s.deps.HealthChecker; hc != nil {
		if err := mux.HandlePath("GET", "/healthz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			hc.LivenessHandler(w, r)
		}); err != nil {
			return nil, err
		}
		if err := mux.HandlePath("GET", "/readyz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			hc.ReadinessHandler(w, r)
		}); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

type route struct {
	method, path string
	h            runtime.HandlerFunc
}

type params struct {
	path  map[string]string
	query url.Values
}

func (p params) int(name string) int64 {
	v, _ := strconv.ParseInt(p.query.Get(name), 10, 64)
	return v
}

func empty(params) *Empty { return &Empty{} }

// bodyRoute decodes the JSON request body into Req.
func bodyRoute[Req, Resp any](s *GRPCServer, rpc string, call func(context.Context, *Req) (*Resp, error)) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		in := new(Req)
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err == nil && len(body) > 0 {
			err = json.Unmarshal(body, in)
		}
		if err != nil {
			s.respond(w, FullMethod(rpc), time.Now(), nil, status.Errorf(codes.InvalidArgument, "decode body: %v", err))
			return
		}
		start := time.Now()
		resp, err := call(r.Context(), in)
		s.respond(w, FullMethod(rpc), start, resp, err)
	}
}

// paramRoute builds Req from path and query parameters.
func paramRoute[Req, Resp any](s *GRPCServer, rpc string, call func(context.Context, *Req) (*Resp, error), build func(params) *Req) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		in := build(params{path: pathParams, query: r.URL.Query()})
		start := time.Now()
		resp, err := call(r.Context(), in)
		s.respond(w, FullMethod(rpc), start, resp, err)
	}
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *GRPCServer) respond(w http.ResponseWriter, method string, start time.Time, resp interface{}, err error) {
	s.record(method, err, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		st := status.Convert(err)
		body := errorBody{Code: st.Code().String(), Message: st.Message()}
		if info, ok := ErrorInfo(err); ok {
			body.Reason = info.Reason
			body.Metadata = info.Metadata
		}
		w.WriteHeader(runtime.HTTPStatusFromCode(st.Code()))
		json.NewEncoder(w).Encode(body)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
