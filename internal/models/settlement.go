package models

// SettlementStats is the full payout picture for an ended battle.
// All amounts are SOL.
type SettlementStats struct {
	Winner    string  `json:"winner"` // "A" or "B"
	WinMargin float64 `json:"winMargin"`

	WinningPool float64 `json:"winningPool"`
	LosingPool  float64 `json:"losingPool"`

	// Distribution of the losing pool.
	WinningTradersPool float64 `json:"winningTradersPool"`
	LosingTradersPool  float64 `json:"losingTradersPool"`
	WinningArtistBonus float64 `json:"winningArtistBonus"`
	LosingArtistBonus  float64 `json:"losingArtistBonus"`
	PlatformCut        float64 `json:"platformCut"`

	// Continuous trading fees, owed regardless of outcome.
	ArtistFeeA      float64 `json:"artistFeeA"`
	ArtistFeeB      float64 `json:"artistFeeB"`
	PlatformFee     float64 `json:"platformFee"`
	ArtistEarningsA float64 `json:"artistEarningsA"` // fee plus settlement bonus
	ArtistEarningsB float64 `json:"artistEarningsB"`
}
