package models

// Battle outcomes from a single trader's point of view.
const (
	OutcomeWin     = "WIN"
	OutcomeLoss    = "LOSS"
	OutcomePending = "PENDING"
)

const (
	TxInvest = "invest" // wallet -> battle pool
	TxPayout = "payout" // battle pool -> wallet
)

// TraderTransaction is one SOL movement between the wallet and a
// battle's addresses.
type TraderTransaction struct {
	Signature string  `json:"signature"`
	Type      string  `json:"type"` // "invest" or "payout"
	AmountSOL float64 `json:"amountSol"`
	Timestamp int64   `json:"timestamp"` // epoch millis
}

// TraderBattleHistory groups a wallet's activity against one battle.
// BattleKey is the catalog id for listed battles, or "unlisted:<addr>"
// for program activity against addresses the catalog does not know.
type TraderBattleHistory struct {
	BattleKey    string              `json:"battleKey"`
	Title        string              `json:"title,omitempty"`
	Invested     float64             `json:"invested"`
	PaidOut      float64             `json:"paidOut"`
	Net          float64             `json:"net"`
	Outcome      string              `json:"outcome"` // WIN, LOSS or PENDING
	Transactions []TraderTransaction `json:"transactions"`
}

// TraderProfileStats is the aggregated portfolio for one wallet.
type TraderProfileStats struct {
	Wallet        string                `json:"wallet"`
	TotalInvested float64               `json:"totalInvested"`
	TotalPaidOut  float64               `json:"totalPaidOut"`
	NetPL         float64               `json:"netPl"`
	Wins          int                   `json:"wins"`
	Losses        int                   `json:"losses"`
	Pending       int                   `json:"pending"`
	WinRate       float64               `json:"winRate"` // wins / decided battles, 0 when none decided
	Battles       []TraderBattleHistory `json:"battles"`
	GeneratedAt   int64                 `json:"generatedAt"` // epoch millis
}
