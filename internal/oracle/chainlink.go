package oracle

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const aggregatorV3ABI = `[
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"name": "roundId", "type": "uint80"},
			{"name": "answer", "type": "int256"},
			{"name": "startedAt", "type": "uint256"},
			{"name": "updatedAt", "type": "uint256"},
			{"name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ChainlinkSource reads AggregatorV3 feeds with eth_call.
type ChainlinkSource struct {
	caller  ethereum.ContractCaller
	feedABI abi.ABI

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

// NewChainlinkSource wraps any contract caller; *ethclient.Client satisfies it.
func NewChainlinkSource(caller ethereum.ContractCaller) (*ChainlinkSource, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	return &ChainlinkSource{
		caller:   caller,
		feedABI:  parsed,
		decimals: make(map[common.Address]uint8),
	}, nil
}

// DialChainlink connects to an Ethereum JSON-RPC endpoint.
func DialChainlink(ctx context.Context, rpcURL string) (*ChainlinkSource, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	src, err := NewChainlinkSource(client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return src, client, nil
}

// Latest calls latestRoundData and rescales the answer to FeedDecimals.
// Non-positive answers and incomplete rounds are rejected.
func (s *ChainlinkSource) Latest(ctx context.Context, feed common.Address) (Price, error) {
	decimals, err := s.feedDecimals(ctx, feed)
	if err != nil {
		return Price{}, err
	}

	out, err := s.call(ctx, feed, "latestRoundData")
	if err != nil {
		return Price{}, err
	}
	// (uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
	roundID := out[0].(*big.Int)
	answer := out[1].(*big.Int)
	updatedAt := out[3].(*big.Int)

	if answer.Sign() <= 0 {
		return Price{}, fmt.Errorf("%w: feed %s returned non-positive answer %s",
			dscerr.ErrPriceUnavailable, feed.Hex(), answer)
	}
	if updatedAt.Sign() == 0 {
		return Price{}, fmt.Errorf("%w: feed %s round not complete", dscerr.ErrPriceUnavailable, feed.Hex())
	}

	raw, err := math.FromBig(answer)
	if err != nil {
		return Price{}, fmt.Errorf("feed %s answer: %w", feed.Hex(), err)
	}
	normalized, err := math.Rescale(raw, decimals, math.FeedDecimals)
	if err != nil {
		return Price{}, fmt.Errorf("feed %s rescale: %w", feed.Hex(), err)
	}
	if normalized.IsZero() {
		return Price{}, fmt.Errorf("%w: feed %s answer below one unit at %d decimals",
			dscerr.ErrPriceUnavailable, feed.Hex(), math.FeedDecimals)
	}

	return Price{
		Feed:      feed,
		Answer:    normalized,
		RoundID:   roundID.Uint64(),
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

// feedDecimals is immutable per feed, so it is fetched once.
func (s *ChainlinkSource) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	s.mu.Lock()
	d, ok := s.decimals[feed]
	s.mu.Unlock()
	if ok {
		return d, nil
	}

	out, err := s.call(ctx, feed, "decimals")
	if err != nil {
		return 0, err
	}
	d = out[0].(uint8)

	s.mu.Lock()
	s.decimals[feed] = d
	s.mu.Unlock()
	return d, nil
}

func (s *ChainlinkSource) call(ctx context.Context, feed common.Address, method string) ([]interface{}, error) {
	data, err := s.feedABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	result, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", dscerr.ErrPriceUnavailable, method, feed.Hex(), err)
	}
	out, err := s.feedABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s from %s: %w", method, feed.Hex(), err)
	}
	return out, nil
}
