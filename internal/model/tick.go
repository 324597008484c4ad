package model

import "time"

// Variant identifies which of the two price streams a tick belongs to.
type Variant string

const (
	// VariantTrade is the execution-price stream. Bid may equal ask
	// (zero spread) because both sides carry the traded price.
	VariantTrade Variant = "trade"

	// VariantQuote is the market-maker quote stream. Bid is always
	// strictly below ask.
	VariantQuote Variant = "quote"
)

// Valid reports whether v is one of the two known variants.
func (v Variant) Valid() bool {
	return v == VariantTrade || v == VariantQuote
}

// Tick represents a single observed price event for an instrument.
// Timestamps are UTC with sub-minute precision.
type Tick struct {
	Instrument string    `json:"instrument"`
	Variant    Variant   `json:"variant"`
	TS         time.Time `json:"ts"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

// Spread returns ask minus bid.
func (t *Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Minute returns the tick's UTC minute bucket start.
func (t *Tick) Minute() time.Time {
	return t.TS.UTC().Truncate(time.Minute)
}
