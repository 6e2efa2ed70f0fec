package models

import "time"

// Battle sides and trade directions as they appear in API payloads.
const (
	SideA = "A"
	SideB = "B"
)

const (
	TradeBuy  = "BUY"
	TradeSell = "SELL"
)

// BattleSide describes one artist in a battle as listed in the catalog.
type BattleSide struct {
	ArtistName string `json:"artistName"`
	Wallet     string `json:"wallet"`    // artist payout wallet, base58
	TokenMint  string `json:"tokenMint"` // side token mint, base58
	ImageURL   string `json:"imageUrl,omitempty"`
	Color      string `json:"color,omitempty"`
	TwitterURL string `json:"twitterUrl,omitempty"`
	SpotifyURL string `json:"spotifyUrl,omitempty"`
}

// SnapshotAggregates are the display numbers persisted after a chain
// scan. They let listings and degraded responses render without
// touching the chain.
type SnapshotAggregates struct {
	StartTime         int64         `json:"startTime"` // epoch millis
	EndTime           int64         `json:"endTime"`
	BalanceA          float64       `json:"balanceA"` // pool balances in SOL
	BalanceB          float64       `json:"balanceB"`
	VolumeA           float64       `json:"volumeA"`
	VolumeB           float64       `json:"volumeB"`
	TotalVolume       float64       `json:"totalVolume"`
	TradeCount        int           `json:"tradeCount"`
	UniqueTraders     int           `json:"uniqueTraders"`
	IsEnded           bool          `json:"isEnded"`
	WinnerDecided     bool          `json:"winnerDecided"`
	WinnerIsA         bool          `json:"winnerIsA"`
	TotalDistribution float64       `json:"totalDistribution"` // SOL
	RecentTrades      []RecentTrade `json:"recentTrades,omitempty"`
	LastScannedAt     time.Time     `json:"lastScannedAt"`
}

// BattleSummary is a catalog row: the off-chain listing of a battle,
// plus the last persisted aggregates when the battle has been scanned
// before.
type BattleSummary struct {
	ID        string              `json:"id"`       // catalog row id
	BattleID  string              `json:"battleId"` // on-chain numeric id, as text
	Title     string              `json:"title"`
	SideA     BattleSide          `json:"sideA"`
	SideB     BattleSide          `json:"sideB"`
	CreatedAt time.Time           `json:"createdAt"`
	Cached    *SnapshotAggregates `json:"cached,omitempty"`
}

// RecentTrade is one reconstructed vault transfer, newest first.
type RecentTrade struct {
	Signature    string  `json:"signature"`
	Type         string  `json:"type"` // "BUY" or "SELL"
	AmountSOL    float64 `json:"amountSol"`
	Side         string  `json:"side,omitempty"` // "A"/"B" when determinable, else empty
	Counterparty string  `json:"counterparty"`
	Timestamp    int64   `json:"timestamp"` // epoch millis
}

// BattleState is a fully scanned battle: catalog listing merged with
// the decoded on-chain account and the reconstructed trade activity.
type BattleState struct {
	BattleSummary

	BattleAddress string `json:"battleAddress"`
	VaultAddress  string `json:"vaultAddress"`

	StartTime int64 `json:"startTime"` // epoch millis
	EndTime   int64 `json:"endTime"`

	BalanceA float64 `json:"balanceA"` // pool balances in SOL
	BalanceB float64 `json:"balanceB"`
	SupplyA  float64 `json:"supplyA"` // circulating token supply
	SupplyB  float64 `json:"supplyB"`

	TotalVolume   float64 `json:"totalVolume"` // SOL
	VolumeA       float64 `json:"volumeA"`
	VolumeB       float64 `json:"volumeB"`
	TradeCount    int     `json:"tradeCount"`
	UniqueTraders int     `json:"uniqueTraders"`

	IsEnded           bool    `json:"isEnded"`
	WinnerDecided     bool    `json:"winnerDecided"`
	WinnerIsA         bool    `json:"winnerIsA"`
	TotalDistribution float64 `json:"totalDistribution"` // SOL

	RecentTrades []RecentTrade `json:"recentTrades"`

	ScannedAt int64 `json:"scannedAt"` // epoch millis
}

// TVL is the combined SOL locked across both pools.
func (s *BattleState) TVL() float64 {
	return s.BalanceA + s.BalanceB
}

// Aggregates flattens the state into the persistable snapshot form.
func (s *BattleState) Aggregates(scannedAt time.Time) SnapshotAggregates {
	return SnapshotAggregates{
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		BalanceA:          s.BalanceA,
		BalanceB:          s.BalanceB,
		VolumeA:           s.VolumeA,
		VolumeB:           s.VolumeB,
		TotalVolume:       s.TotalVolume,
		TradeCount:        s.TradeCount,
		UniqueTraders:     s.UniqueTraders,
		IsEnded:           s.IsEnded,
		WinnerDecided:     s.WinnerDecided,
		WinnerIsA:         s.WinnerIsA,
		TotalDistribution: s.TotalDistribution,
		RecentTrades:      s.RecentTrades,
		LastScannedAt:     scannedAt,
	}
}
