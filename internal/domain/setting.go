package domain

import "time"

// Setting keys stored in game_settings. Values are strings; the settings
// service parses them into typed accessors.
const (
	SettingRoundDuration      = "round_duration_seconds"
	SettingPayoutMultiplier   = "payout_multiplier"
	SettingCardCount          = "card_count"
	SettingGameResultType     = "game_result_type"
	SettingWinningCardPolicy  = "winning_card_policy"
	SettingFixedWinningCard   = "fixed_winning_card"
	SettingAutoClaim          = "auto_claim"
	SettingMaxBetAmount       = "max_bet_amount"
	SettingCancelCutoff       = "cancel_cutoff_seconds"
	SettingOperatingStart     = "operating_window_start"
	SettingOperatingEnd       = "operating_window_end"
)

// Game result delivery modes.
const (
	ResultTypeAuto   = "auto"
	ResultTypeManual = "manual"
)

// GameSetting is one row of the game_settings table.
type GameSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
