package model

import "time"

const EnvelopeVersion = "v1"

// Envelope is the stable JSON shell every command emits on stdout. Scripts
// parse it; progress logging goes to stderr.
type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Network   string      `json:"network,omitempty"`
	Cache     CacheStatus `json:"cache"`
	Partial   bool        `json:"partial"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

// EntryCandidate is one ranked discovery result.
type EntryCandidate struct {
	Package    string   `json:"package"`
	Module     string   `json:"module"`
	Function   string   `json:"function"`
	Score      int      `json:"score"`
	Parameters []string `json:"parameters,omitempty"`
}

// PositionSummary describes the caller's borrowing account.
type PositionSummary struct {
	PositionID   string           `json:"position_id"`
	CapabilityID string           `json:"capability_id"`
	Owner        string           `json:"owner"`
	Collateral   []CollateralInfo `json:"collateral,omitempty"`
}

type CollateralInfo struct {
	AssetType string     `json:"asset_type"`
	Amount    AmountInfo `json:"amount"`
	EntryID   string     `json:"entry_id,omitempty"`
}

// RunReport is the output of one executed action, including every shrink
// step the executor took.
type RunReport struct {
	ActionID        string       `json:"action_id"`
	IntentType      string       `json:"intent_type"`
	EntryPoint      string       `json:"entry_point"`
	AssetType       string       `json:"asset_type,omitempty"`
	RequestedAmount AmountInfo   `json:"requested_amount"`
	ExecutedAmount  *AmountInfo  `json:"executed_amount,omitempty"`
	TxDigest        string       `json:"tx_digest,omitempty"`
	Attempts        int          `json:"attempts"`
	DryRun          bool         `json:"dry_run"`
	Drained         []RunSegment `json:"drained,omitempty"`
}

// RunSegment is one cycle of a drain: the amount moved and its digest.
type RunSegment struct {
	Amount   AmountInfo `json:"amount"`
	TxDigest string     `json:"tx_digest"`
}

// PointsSummary is the off-chain reward standing reported by the points API.
type PointsSummary struct {
	Address      string  `json:"address"`
	TotalPoints  float64 `json:"total_points"`
	LendPoints   float64 `json:"lend_points"`
	BorrowPoints float64 `json:"borrow_points"`
	Rank         int64   `json:"rank,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// ActionSummary is the compact listing row for stored actions.
type ActionSummary struct {
	ActionID   string `json:"action_id"`
	IntentType string `json:"intent_type"`
	Status     string `json:"status"`
	Network    string `json:"network"`
	TxDigest   string `json:"tx_digest,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}
