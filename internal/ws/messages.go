// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeNewRound     MsgType = "new_round"
	MsgTypeCountdown    MsgType = "countdown"
	MsgTypeRoundClosed  MsgType = "round_closed"
	MsgTypeRoundSettled MsgType = "round_settled"
)

// NewRoundMessage is broadcast when the scheduler opens a round.
type NewRoundMessage struct {
	Type       MsgType         `json:"type"`
	RoundID    string          `json:"round_id"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	Multiplier decimal.Decimal `json:"payout_multiplier"`
	CardCount  int             `json:"card_count"`
	Timestamp  time.Time       `json:"timestamp"`
}

// CountdownMessage carries the remaining betting time of the active round.
// Sent once per second to all clients.
type CountdownMessage struct {
	Type            MsgType   `json:"type"`
	RoundID         string    `json:"round_id"`
	TimeLeftSeconds int64     `json:"time_left_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// RoundClosedMessage tells clients the betting window has shut.
type RoundClosedMessage struct {
	Type      MsgType   `json:"type"`
	RoundID   string    `json:"round_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RoundSettledMessage tells clients which card won.
type RoundSettledMessage struct {
	Type        MsgType         `json:"type"`
	RoundID     string          `json:"round_id"`
	WinningCard int             `json:"winning_card"`
	Multiplier  decimal.Decimal `json:"payout_multiplier"`
	Timestamp   time.Time       `json:"timestamp"`
}
