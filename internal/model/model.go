// Package model defines the core domain types shared across the hedging engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeInternal is the name of the internal venue where index tokens trade.
const ExchangeInternal = "internal"

// MarketMakerStatus is the global on/off switch for quoting and hedging.
type MarketMakerStatus string

const (
	StatusActive   MarketMakerStatus = "Active"
	StatusDisabled MarketMakerStatus = "Disabled"
)

// MarketMakerState is the singleton active/disabled gate. Every change
// records when it happened and why.
type MarketMakerState struct {
	Status    MarketMakerStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Reason    string            `json:"reason,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
}

// IndexSettings configures quoting for one index token.
type IndexSettings struct {
	Name                 string          `json:"name"`
	AssetID              string          `json:"asset_id"`
	AssetPairID          string          `json:"asset_pair_id"`
	SellMarkup           decimal.Decimal `json:"sell_markup"`
	BuyVolume            decimal.Decimal `json:"buy_volume"`
	SellVolume           decimal.Decimal `json:"sell_volume"`
	BuyLimitOrdersCount  int             `json:"buy_limit_orders_count"`
	SellLimitOrdersCount int             `json:"sell_limit_orders_count"`
	Alpha                decimal.Decimal `json:"alpha"`
}

// AssetPairSettings describes a tradable pair on one venue, including the
// price/volume accuracies that venue enforces.
type AssetPairSettings struct {
	AssetPairID    string          `json:"asset_pair_id"`
	Exchange       string          `json:"exchange"`
	BaseAsset      string          `json:"base_asset"`
	QuoteAsset     string          `json:"quote_asset"`
	PriceAccuracy  int32           `json:"price_accuracy"`
	VolumeAccuracy int32           `json:"volume_accuracy"`
	MinVolume      decimal.Decimal `json:"min_volume"`
}

// AssetSettings describes a single asset on one venue.
type AssetSettings struct {
	AssetID  string `json:"asset_id"`
	Exchange string `json:"exchange"`
	Accuracy int32  `json:"accuracy"`
}

// AssetLink maps an external venue's asset identifier to the internal one.
type AssetLink struct {
	ExternalAssetID string `json:"external_asset_id"`
	InternalAssetID string `json:"internal_asset_id"`
}

// HedgeMode controls whether the hedge engine may trade an asset.
type HedgeMode string

const (
	HedgeModeIdle   HedgeMode = "Idle"
	HedgeModeManual HedgeMode = "Manual"
	HedgeModeAuto   HedgeMode = "Auto"
)

// AssetHedgeSettings configures hedging for one underlying asset.
// Created automatically (unapproved, idle) the first time an asset shows
// up in an index weight; an operator must approve it before any hedge
// order is placed.
type AssetHedgeSettings struct {
	AssetID     string    `json:"asset_id"`
	Exchange    string    `json:"exchange"`
	AssetPairID string    `json:"asset_pair_id"`
	Approved    bool      `json:"approved"`
	Mode        HedgeMode `json:"mode"`
}

// HedgeSettings is the singleton threshold-band configuration.
// Invariant: 0 < ThresholdDown < ThresholdUp < ThresholdCritical.
type HedgeSettings struct {
	ThresholdDown     decimal.Decimal `json:"threshold_down"`
	ThresholdUp       decimal.Decimal `json:"threshold_up"`
	ThresholdCritical decimal.Decimal `json:"threshold_critical"`
	MultiplierLow     decimal.Decimal `json:"multiplier_low"`
	MultiplierHigh    decimal.Decimal `json:"multiplier_high"`
}

// TimerSettings is the singleton configuration for periodic work.
type TimerSettings struct {
	BalanceRefresh time.Duration `json:"balance_refresh"`
	HedgeCycle     time.Duration `json:"hedge_cycle"`
	QuoteMaxAge    time.Duration `json:"quote_max_age"`
}

// Quote is the latest bid/ask observed for an asset pair from one source.
type Quote struct {
	AssetPairID string          `json:"asset_pair_id"`
	Source      string          `json:"source"`
	Bid         decimal.Decimal `json:"bid"`
	Ask         decimal.Decimal `json:"ask"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AssetWeight is one basket constituent of an index update.
type AssetWeight struct {
	AssetID string          `json:"asset_id"`
	Weight  decimal.Decimal `json:"weight"`
	Price   decimal.Decimal `json:"price"`
}

// Index is an inbound index update: the raw basket value plus weights.
type Index struct {
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
	Weights   []AssetWeight   `json:"weights"`
}

// IndexPrice is the published price of an index token: the running cost
// basis factor K together with the weight/price snapshot it was derived
// from.
type IndexPrice struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	K         decimal.Decimal `json:"k"`
	Timestamp time.Time       `json:"timestamp"`
	Weights   []AssetWeight   `json:"weights"`
}

// TokenPosition is the inventory ledger for one index token.
// Invariant: OpenVolume >= 0 and OppositeVolume >= 0.
type TokenPosition struct {
	AssetID        string          `json:"asset_id"`
	OpenVolume     decimal.Decimal `json:"open_volume"`
	OppositeVolume decimal.Decimal `json:"opposite_volume"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HedgePosition accumulates the externally hedged volume per underlying
// asset. Net exposure = token open volume × index weight − Volume.
type HedgePosition struct {
	AssetID   string          `json:"asset_id"`
	Exchange  string          `json:"exchange"`
	Volume    decimal.Decimal `json:"volume"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Balance is the available amount of one asset on one venue.
type Balance struct {
	Exchange string          `json:"exchange"`
	AssetID  string          `json:"asset_id"`
	Amount   decimal.Decimal `json:"amount"`
	Reserved decimal.Decimal `json:"reserved"`
}

// LimitOrderType is the side of a limit order.
type LimitOrderType string

const (
	LimitOrderBuy  LimitOrderType = "Buy"
	LimitOrderSell LimitOrderType = "Sell"
)

// LimitOrderError marks orders that must not be submitted to a venue.
type LimitOrderError string

const (
	LimitOrderErrorNone           LimitOrderError = ""
	LimitOrderErrorTooSmallVolume LimitOrderError = "TooSmallVolume"
	LimitOrderErrorNotEnoughFunds LimitOrderError = "NotEnoughFunds"
)

// LimitOrder is an ephemeral order derived for one quoting or hedging
// cycle. Orders with a non-empty Error are recorded for observability but
// never sent to an exchange.
type LimitOrder struct {
	ID       string          `json:"id"`
	WalletID string          `json:"wallet_id,omitempty"`
	Type     LimitOrderType  `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Volume   decimal.Decimal `json:"volume"`
	Error    LimitOrderError `json:"error,omitempty"`
}

// TradeType is the direction of a trade from the counterparty's side:
// a Buy trade consumes one of our sell orders and opens token inventory.
type TradeType string

const (
	TradeTypeBuy  TradeType = "Buy"
	TradeTypeSell TradeType = "Sell"
)

// InternalTrade is a fill of one of our limit orders on the internal
// venue. Idempotent by ID.
type InternalTrade struct {
	ID             string          `json:"id"`
	AssetPairID    string          `json:"asset_pair_id"`
	Type           TradeType       `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Volume         decimal.Decimal `json:"volume"`
	OppositeVolume decimal.Decimal `json:"opposite_volume"`
	Timestamp      time.Time       `json:"timestamp"`
	WalletID       string          `json:"wallet_id,omitempty"`
}

// ExternalTrade is a confirmed hedge execution on an external venue.
type ExternalTrade struct {
	ID          string          `json:"id"`
	Exchange    string          `json:"exchange"`
	AssetPairID string          `json:"asset_pair_id"`
	AssetID     string          `json:"asset_id"`
	Type        TradeType       `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Volume      decimal.Decimal `json:"volume"`
	Timestamp   time.Time       `json:"timestamp"`
}

// CrossAssetPairSettings describes a derived quote built from two asset
// pairs. Admin-managed; referenced by quote sources that only publish
// crosses.
type CrossAssetPairSettings struct {
	ID               string `json:"id"`
	BaseAssetPairID  string `json:"base_asset_pair_id"`
	CrossAssetPairID string `json:"cross_asset_pair_id"`
	IsInverted       bool   `json:"is_inverted"`
	Exchange         string `json:"exchange"`
}
