package model

import (
	"encoding/json"
	"time"
)

// SessionFlags marks which exchange sessions a minute falls inside,
// whether the date is a holiday on the tracked holiday calendars, and
// the local hour of day in the two reference timezones. Session
// membership is evaluated in each exchange's local time, so seasonal
// offset changes are reflected.
type SessionFlags struct {
	NYSE      bool `json:"nyse"`
	NASDAQ    bool `json:"nasdaq"`
	TSX       bool `json:"tsx"`
	LSE       bool `json:"lse"`
	Xetra     bool `json:"xetra"`
	Paris     bool `json:"paris"`
	SIX       bool `json:"six"`
	Tokyo     bool `json:"tokyo"`
	HongKong  bool `json:"hongkong"`
	Singapore bool `json:"singapore"`
	ASX       bool `json:"asx"`

	USHoliday bool `json:"us_holiday"`
	UKHoliday bool `json:"uk_holiday"`

	NYHour     int `json:"ny_hour"`
	LondonHour int `json:"london_hour"`
}

// MinuteBar is one derived OHLC row per (instrument, UTC minute).
// OHLC comes from the trade variant only; a minute holding only quote
// ticks still produces a bar with HasTrades=false and zeroed trade
// fields. Spread and tick counts are computed independently per variant.
type MinuteBar struct {
	Instrument string    `json:"instrument"`
	Minute     time.Time `json:"minute"` // bucket start (UTC, minute-aligned)

	HasTrades bool    `json:"has_trades"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`

	TradeSpreadAvg float64 `json:"trade_spread_avg"`
	TradeTicks     int64   `json:"trade_ticks"`
	QuoteSpreadAvg float64 `json:"quote_spread_avg"`
	QuoteTicks     int64   `json:"quote_ticks"`

	Flags SessionFlags `json:"flags"`
}

// Key returns a unique key for this bar: "instrument@unixMinute".
func (b *MinuteBar) Key() string {
	return b.Instrument + "@" + b.Minute.UTC().Format("200601021504")
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *MinuteBar) JSON() []byte {
	buf, _ := json.Marshal(b)
	return buf
}
