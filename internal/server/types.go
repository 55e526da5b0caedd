package server

import (
	"DSCEngine/internal/event"
	"DSCEngine/internal/query"
)

// Amounts are base-10 strings of base units (18 decimals) and addresses are
// 0x-prefixed hex throughout.

type Empty struct{}

// OperationReply is returned by every state-changing method.
type OperationReply struct {
	CommandID string           `json:"command_id"`
	Sequence  int64            `json:"sequence"`
	StateHash string           `json:"state_hash"`
	Events    []event.Envelope `json:"events"`
}

type AccountRequest struct {
	User string `json:"user"`
}

type TokenBalance struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// AccountInformation is the live account view.
type AccountInformation struct {
	User                 string         `json:"user"`
	TotalDscMinted       string         `json:"total_dsc_minted"`
	CollateralValueInUsd string         `json:"collateral_value_in_usd"`
	HealthFactor         string         `json:"health_factor"`
	Status               string         `json:"status"`
	Collateral           []TokenBalance `json:"collateral"`
	Wallet               []TokenBalance `json:"wallet,omitempty"`
	DscBalance           string         `json:"dsc_balance,omitempty"`
	Sequence             int64          `json:"sequence"`
}

type BalanceRequest struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

type AmountReply struct {
	Amount string `json:"amount"`
}

type HealthFactorReply struct {
	HealthFactor string `json:"health_factor"`
	Status       string `json:"status"`
}

type CalculateHealthFactorRequest struct {
	TotalDscMinted       string `json:"total_dsc_minted"`
	CollateralValueInUsd string `json:"collateral_value_in_usd"`
}

// ConversionRequest drives getUsdValue (Amount in token units) and
// getTokenAmountFromUsd (Amount in USD wei).
type ConversionRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type AddressReply struct {
	Address string `json:"address"`
}

type CollateralToken struct {
	Token     string `json:"token"`
	PriceFeed string `json:"price_feed"`
}

type TokensReply struct {
	Tokens []CollateralToken `json:"tokens"`
	Dsc    string            `json:"dsc"`
}

type ConstantsReply struct {
	Precision               string `json:"precision"`
	AdditionalFeedPrecision string `json:"additional_feed_precision"`
	LiquidationThreshold    string `json:"liquidation_threshold"`
	LiquidationBonus        string `json:"liquidation_bonus"`
	LiquidationPrecision    string `json:"liquidation_precision"`
	MinHealthFactor         string `json:"min_health_factor"`
}

// CallRequest carries raw ABI calldata.
type CallRequest struct {
	From string `json:"from"`
	Data string `json:"data"`
}

type CallLog struct {
	Topics []string `json:"topics"`
	Data   string   `json:"data"`
}

type CallReply struct {
	Method     string    `json:"method"`
	ReturnData string    `json:"return_data"`
	Sequence   int64     `json:"sequence,omitempty"`
	Logs       []CallLog `json:"logs,omitempty"`
}

type HistoryRequest struct {
	User   string `json:"user"`
	Limit  int    `json:"limit,omitempty"`
	Before int64  `json:"before,omitempty"`
}

type HistoryReply struct {
	Operations []query.OperationRecord `json:"operations"`
}

// FundRequest credits wallet balances in dev mode.
type FundRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type FundReply struct {
	Balance string `json:"balance"`
}
