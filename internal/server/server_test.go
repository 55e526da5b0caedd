package server_test

import (
	"DSCEngine/internal/contract"
	"DSCEngine/internal/core"
	"DSCEngine/internal/ingestion"
	"DSCEngine/internal/math"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/registry"
	"DSCEngine/internal/server"
	"DSCEngine/internal/token"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var (
	alice    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	custody  = common.HexToAddress("0x00000000000000000000000000000000000e4e11")
	weth     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	wethFeed = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	dscAddr  = common.HexToAddress("0x0000000000000000000000000000000000000d5c")
	unlisted = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

func ether(n uint64) string {
	return new(uint256.Int).Mul(uint256.NewInt(n), math.U(math.Precision)).Dec()
}

type harness struct {
	srv    *server.GRPCServer
	client *server.Client
	conn   *grpc.ClientConn
	vault  *token.Vault
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg, err := registry.New([]common.Address{weth}, []common.Address{wethFeed}, dscAddr)
	require.NoError(t, err)
	prices := oracle.NewStaticSource()
	require.NoError(t, prices.SetUSD(wethFeed, "2000"))

	vault := token.NewVault()
	dsc := token.NewDSC()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	engine := core.NewEngine(core.Config{
		Registry:   reg,
		Prices:     prices,
		Collateral: vault,
		Debt:       dsc,
		Custody:    custody,
		Metrics:    metrics,
		Logger:     observability.NopLogger(),
	})

	srv := server.NewGRPCServer("bufnet", "", &server.ServerDeps{
		Engine:        engine,
		Vault:         vault,
		DSC:           dsc,
		HealthChecker: observability.NewHealthChecker(),
		Metrics:       metrics,
		Logger:        observability.NopLogger(),
		DevMode:       true,
	})

	lis := bufconn.Listen(1 << 20)
	go srv.GRPC().Serve(lis)
	t.Cleanup(srv.GRPC().Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{srv: srv, client: server.NewClient(conn), conn: conn, vault: vault}
}

func (h *harness) fund(t *testing.T, amount string) {
	t.Helper()
	_, err := h.client.Fund(context.Background(), &server.FundRequest{
		Token: weth.Hex(), To: alice.Hex(), Amount: amount,
	})
	require.NoError(t, err)
}

// ============================================================================
// Test: gRPC mutations and queries
// ============================================================================

func TestGRPC_DepositAndMintAtMinimumHealthFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, ether(10))

	reply, err := h.client.Execute(ctx, "DepositCollateralAndMintDsc", &ingestion.CommandJSON{
		Sender:           alice.Hex(),
		Token:            weth.Hex(),
		AmountCollateral: ether(10),
		AmountDsc:        ether(10_000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), reply.Sequence)
	require.NotEmpty(t, reply.CommandID)
	require.Len(t, reply.Events, 1)
	require.Equal(t, "CollateralDeposited", reply.Events[0].Event)

	info, err := h.client.GetAccountInformation(ctx, alice.Hex())
	require.NoError(t, err)
	require.Equal(t, ether(10_000), info.TotalDscMinted)
	require.Equal(t, ether(20_000), info.CollateralValueInUsd)
	require.Equal(t, ether(1), info.HealthFactor)
	require.Equal(t, "SAFE", info.Status)
	require.Equal(t, ether(10_000), info.DscBalance)
	require.Equal(t, []server.TokenBalance{{Token: weth.Hex(), Amount: ether(10)}}, info.Collateral)
	require.Equal(t, []server.TokenBalance{{Token: weth.Hex(), Amount: "0"}}, info.Wallet)
}

func TestGRPC_BreaksHealthFactorCarriesErrorInfo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, ether(10))

	_, err := h.client.Execute(ctx, "DepositCollateralAndMintDsc", &ingestion.CommandJSON{
		Sender:           alice.Hex(),
		Token:            weth.Hex(),
		AmountCollateral: ether(10),
		AmountDsc:        ether(10_001),
	})
	require.Error(t, err)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	info, ok := server.ErrorInfo(err)
	require.True(t, ok)
	require.Equal(t, "DSCEngine__BreaksHealthFactor", info.Reason)
	require.Equal(t, server.ErrorDomain, info.Domain)
	require.NotEmpty(t, info.Metadata["health_factor"])

	revertData, err := hexutil.Decode(info.Metadata["revert_data"])
	require.NoError(t, err)
	decoded, err := contract.DecodeRevert(revertData)
	require.NoError(t, err)
	require.ErrorContains(t, decoded, "breaks health factor")

	// Nothing was committed.
	info2, err := h.client.GetAccountInformation(ctx, alice.Hex())
	require.NoError(t, err)
	require.Equal(t, "0", info2.TotalDscMinted)
	require.Equal(t, []server.TokenBalance{{Token: weth.Hex(), Amount: ether(10)}}, info2.Wallet)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		req    *ingestion.CommandJSON
		code   codes.Code
		reason string
	}{
		{
			name:   "token not allowed",
			method: "DepositCollateral",
			req:    &ingestion.CommandJSON{Sender: alice.Hex(), Token: unlisted.Hex(), AmountCollateral: "1"},
			code:   codes.InvalidArgument,
			reason: "DSCEngine__TokenNotAllowed",
		},
		{
			name:   "zero amount",
			method: "MintDsc",
			req:    &ingestion.CommandJSON{Sender: alice.Hex(), AmountDsc: "0"},
			code:   codes.InvalidArgument,
			reason: "DSCEngine__NeedsMoreThanZero",
		},
		{
			name:   "burn without debt",
			method: "BurnDsc",
			req:    &ingestion.CommandJSON{Sender: alice.Hex(), AmountDsc: "1"},
			code:   codes.FailedPrecondition,
			reason: "Panic",
		},
		{
			name:   "bad address",
			method: "MintDsc",
			req:    &ingestion.CommandJSON{Sender: "alice", AmountDsc: "1"},
			code:   codes.InvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.client.Execute(ctx, tt.method, tt.req)
			require.Equal(t, tt.code, status.Code(err), "err: %v", err)
			if tt.reason == "" {
				return
			}
			info, ok := server.ErrorInfo(err)
			require.True(t, ok)
			require.Equal(t, tt.reason, info.Reason)
		})
	}
}

func TestGRPC_DuplicateCommandID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, ether(2))

	req := &ingestion.CommandJSON{
		CommandID:        "0b7c1f2e-4d1a-4c55-9a43-3f1d2b3c4d5e",
		Sender:           alice.Hex(),
		Token:            weth.Hex(),
		AmountCollateral: ether(1),
	}
	_, err := h.client.Execute(ctx, "DepositCollateral", req)
	require.NoError(t, err)

	_, err = h.client.Execute(ctx, "DepositCollateral", req)
	require.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPC_CallRawCalldata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	data, err := contract.Pack("getUsdValue", weth, uint256.NewInt(1).ToBig())
	require.NoError(t, err)

	reply, err := h.client.Call(ctx, &server.CallRequest{From: alice.Hex(), Data: hexutil.Encode(data)})
	require.NoError(t, err)
	require.Equal(t, "getUsdValue", reply.Method)

	out, err := contract.Unpack("getUsdValue", hexutil.MustDecode(reply.ReturnData))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "2000", out[0].(interface{ String() string }).String())

	_, err = h.client.Call(ctx, &server.CallRequest{From: alice.Hex(), Data: "0xdeadbeef"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ConstantsAndRegistry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.client.GetConstants(ctx)
	require.NoError(t, err)
	require.Equal(t, "50", c.LiquidationThreshold)
	require.Equal(t, "10", c.LiquidationBonus)
	require.Equal(t, ether(1), c.MinHealthFactor)

	tokens, err := h.client.GetCollateralTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, dscAddr.Hex(), tokens.Dsc)
	require.Equal(t, []server.CollateralToken{{Token: weth.Hex(), PriceFeed: wethFeed.Hex()}}, tokens.Tokens)

	usd, err := h.client.GetUsdValue(ctx, weth.Hex(), ether(15))
	require.NoError(t, err)
	require.Equal(t, ether(30_000), usd.Amount)

	amt, err := h.client.GetTokenAmountFromUsd(ctx, weth.Hex(), ether(100))
	require.NoError(t, err)
	require.Equal(t, "50000000000000000", amt.Amount)
}

func TestGRPC_ReadModelUnavailableWithoutQueryService(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.GetPosition(context.Background(), alice.Hex())
	require.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPC_HealthService(t *testing.T) {
	h := newHarness(t)
	hc := healthpb.NewHealthClient(h.conn)
	ctx := context.Background()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	h.srv.SetServing(true)
	resp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

// ============================================================================
// Test: HTTP gateway
// ============================================================================

func TestGateway_Routes(t *testing.T) {
	h := newHarness(t)
	handler, err := h.srv.Handler()
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	post := func(path, body string) *http.Response {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post("/v1/dev/fund", `{"token":"`+weth.Hex()+`","to":"`+alice.Hex()+`","amount":"`+ether(5)+`"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post("/v1/collateral/deposit", `{"sender":"`+alice.Hex()+`","token":"`+weth.Hex()+`","amount_collateral":"`+ether(5)+`"}`)
	var op server.OperationReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&op))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(1), op.Sequence)

	resp, err = http.Get(ts.URL + "/v1/accounts/" + alice.Hex() + "/collateral/" + weth.Hex())
	require.NoError(t, err)
	var amount server.AmountReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&amount))
	resp.Body.Close()
	require.Equal(t, ether(5), amount.Amount)

	resp = post("/v1/dsc/mint", `{"sender":"`+alice.Hex()+`","amount_dsc":"`+ether(5_001)+`"}`)
	var body struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "FailedPrecondition", body.Code)
	require.Equal(t, "DSCEngine__BreaksHealthFactor", body.Reason)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
