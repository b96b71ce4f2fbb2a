package backend

// Market is one entry of the paginated market catalogue.
type Market struct {
	MarketID              string `json:"market_id"`
	BaseToken             string `json:"base_token"`
	QuoteToken            string `json:"quote_token"`
	Symbol                string `json:"symbol"`
	MaxLeverage           string `json:"max_leverage"`
	MinPositionSize       string `json:"min_position_size"`
	MaxPositionSize       string `json:"max_position_size"`
	MaintenanceMarginRate string `json:"maintenance_margin_rate"`
	CurrentFundingRate    string `json:"current_funding_rate"`
	TotalVolume           string `json:"total_volume"`
	Status                string `json:"status"`
	MarketToken           string `json:"market_token"`
	CollateralToken       string `json:"collateral_token"`

	// On-chain references for the transaction builder.
	CoinTradeType       string `json:"coinTradeType"`
	MarketCoinTradeID   string `json:"marketCoinTradeID"`
	PriceFeedCoinTradeID string `json:"priceFeedCoinTradeID"`
}

// MarketPage is the paginated /markets response.
type MarketPage struct {
	Items      []Market `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// PreviewRequest asks the backend to project a position before opening it.
type PreviewRequest struct {
	Leverage  string `json:"leverage"`
	MarketID  string `json:"market_id"`
	Side      string `json:"side"` // "long" | "short"
	Size      string `json:"size"`
	TokenType string `json:"token_type"` // "market_token" | "collateral_token"
}

// PreviewData is the server-computed projection. Ephemeral: recomputed on
// every input change, never persisted client-side.
type PreviewData struct {
	MarketID           string `json:"market_id"`
	Symbol             string `json:"symbol"`
	Side               string `json:"side"`
	Size               string `json:"size"`
	Leverage           string `json:"leverage"`
	EntryPrice         string `json:"entry_price"`
	CollateralRequired string `json:"collateral_required"`
	PositionValue      string `json:"position_value"`
	MaintenanceMargin  string `json:"maintenance_margin"`
	LiquidationPrice   string `json:"liquidation_price"`
	MaxLoss            string `json:"max_loss"`
	EstimatedFees      string `json:"estimated_fees"`
	TotalCost          string `json:"total_cost"`
}

type previewResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    PreviewData `json:"data"`
}

// SponsorRequest is the remote-sponsor execution request: the fully built
// transaction bytes plus the user's signature, both base64.
type SponsorRequest struct {
	TransactionBytesB64 string `json:"transactionBytesB64"`
	UserSignatureB64    string `json:"userSignatureB64"`
}

// SponsorResponse is the remote sponsor's execution result.
type SponsorResponse struct {
	Success bool             `json:"success"`
	Digest  string           `json:"digest"`
	Effects map[string]any   `json:"effects"`
	Events  []map[string]any `json:"events"`
	Error   string           `json:"error,omitempty"`
}

// PositionRecord is the best-effort ledger record posted after a successful
// submission. Not transactional with the on-chain result.
type PositionRecord struct {
	MarketID    string `json:"market_id"`
	UserAddress string `json:"user_address"`
	Side        string `json:"side"`
	Size        string `json:"size"`
	Leverage    string `json:"leverage"`
	EntryPrice  string `json:"entry_price"`
	TxHash      string `json:"tx_hash"`
	BlockNumber string `json:"block_number"`
}

// Candle is one OHLC point of chart history.
type Candle struct {
	Timestamp  string `json:"timestamp"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
	IsFinished bool   `json:"is_finished,omitempty"`
}

type chartResponse struct {
	Success bool     `json:"success"`
	Message *string  `json:"message"`
	Data    []Candle `json:"data"`
}
