package feed

import (
	"encoding/json"
	"fmt"
)

// Message is one decoded feed update: the envelope type plus the raw
// payload. Consumers apply updates last-write-wins; no ordering beyond
// "latest message wins" is guaranteed.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// envelope is the JSON framing of every feed message: {type, ...payload}.
type envelope struct {
	Type string `json:"type"`
}

// StreamKey identifies one logical subscription. Connections are
// de-duplicated by key.
type StreamKey struct {
	kind string
	path string
}

func (k StreamKey) String() string { return k.kind + ":" + k.path }

// CandlesKey is the per-(market, timeframe) candle stream.
func CandlesKey(marketID, timeframe string) StreamKey {
	return StreamKey{
		kind: "candles",
		path: fmt.Sprintf("/candles/%s?timeframe=%s", marketID, timeframe),
	}
}

// PriceKey is the per-market live price stream.
func PriceKey(marketID string) StreamKey {
	return StreamKey{kind: "price", path: "/price/" + marketID}
}

// StatsKey is the per-market stats stream.
func StatsKey(marketID string) StreamKey {
	return StreamKey{kind: "stats", path: "/market-stats/" + marketID}
}

// PositionsKey is the per-user open positions stream.
func PositionsKey(userAddress string) StreamKey {
	return StreamKey{kind: "positions", path: "/positions/" + userAddress}
}

// MarketStats is the payload of "market_stats" messages.
type MarketStats struct {
	MarketID             string  `json:"market_id"`
	Symbol               string  `json:"symbol"`
	MarkPrice            string  `json:"mark_price"`
	IndexPrice           string  `json:"index_price"`
	Price24hChange       *string `json:"price_24h_change"`
	Volume24h            string  `json:"volume_24h"`
	TotalLongOI          string  `json:"total_long_oi"`
	TotalShortOI         string  `json:"total_short_oi"`
	TotalOI              string  `json:"total_oi"`
	CurrentFundingRate   string  `json:"current_funding_rate"`
	PredictedFundingRate string  `json:"predicted_funding_rate"`
	NextFundingTime      string  `json:"next_funding_time"`
	CollateralIn         string  `json:"collateral_in"`
}

// Position is one open position from the "positions_update" stream.
type Position struct {
	PositionID       string `json:"position_id"`
	MarketID         string `json:"market_id"`
	Symbol           string `json:"symbol"`
	Side             string `json:"side"`
	Size             string `json:"size"`
	Collateral       string `json:"collateral"`
	EntryPrice       string `json:"entry_price"`
	CurrentPrice     string `json:"current_price"`
	UnrealizedPnl    string `json:"unrealized_pnl"`
	HealthFactor     string `json:"health_factor"`
	LiquidationPrice string `json:"liquidation_price"`
	IsAtRisk         bool   `json:"is_at_risk"`
	CollateralIn     string `json:"collateral_in"`
}

// statsEnvelope decodes "market_stats" messages.
type statsEnvelope struct {
	Type  string       `json:"type"`
	Stats *MarketStats `json:"marketstats"`
}

// positionsEnvelope decodes "positions_update" messages.
type positionsEnvelope struct {
	Type      string     `json:"type"`
	Positions []Position `json:"positions"`
}

// DecodeMarketStats extracts the stats payload from a "market_stats"
// message; ok is false for any other type.
func DecodeMarketStats(m Message) (MarketStats, bool) {
	if m.Type != "market_stats" {
		return MarketStats{}, false
	}
	var env statsEnvelope
	if err := json.Unmarshal(m.Raw, &env); err != nil || env.Stats == nil {
		return MarketStats{}, false
	}
	return *env.Stats, true
}

// DecodePositions extracts the positions list from a "positions_update"
// message; ok is false for any other type.
func DecodePositions(m Message) ([]Position, bool) {
	if m.Type != "positions_update" {
		return nil, false
	}
	var env positionsEnvelope
	if err := json.Unmarshal(m.Raw, &env); err != nil || env.Positions == nil {
		return nil, false
	}
	return env.Positions, true
}
