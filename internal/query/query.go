// Package query serves stored ticks and minute bars, resampling bars
// to coarser timeframes on demand. Resampling always derives from the
// minute-bar table, never from raw ticks, so the result set can only
// shrink (or stay equal) as the timeframe coarsens.
package query

import (
	"errors"
	"fmt"
	"time"

	"fxdata-system/internal/model"
	"fxdata-system/internal/store/sqlite"
)

// ErrInvalidTimeframe is returned for non-positive timeframes.
var ErrInvalidTimeframe = errors.New("query: timeframe must be a positive number of minutes")

// Predicate is an opaque filter in the storage engine's own language:
// a SQL fragment appended to the WHERE clause, plus its arguments.
type Predicate struct {
	Where string
	Args  []interface{}
}

// Bar is a resampled OHLC row at a caller-chosen timeframe.
// TFMinutes of 1 is the stored granularity.
type Bar struct {
	Instrument string    `json:"instrument"`
	TFMinutes  int       `json:"tf_minutes"`
	TS         time.Time `json:"ts"` // bucket start (UTC)

	HasTrades bool    `json:"has_trades"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`

	TradeSpreadAvg float64 `json:"trade_spread_avg"` // tick-count weighted
	TradeTicks     int64   `json:"trade_ticks"`
	QuoteSpreadAvg float64 `json:"quote_spread_avg"`
	QuoteTicks     int64   `json:"quote_ticks"`
}

// Layer answers read requests against the store.
type Layer struct {
	store *sqlite.Store
}

// New creates a query layer over the given store.
func New(store *sqlite.Store) *Layer {
	return &Layer{store: store}
}

// Ticks returns ticks with start <= ts < end, ordered ascending,
// optionally narrowed by a predicate.
//
// The store dedups on merge, so a reader racing an in-flight insert may
// observe a just-replaced row's newer value early; call the store's
// Materialize for strict-consistency reads.
func (l *Layer) Ticks(instrument string, variant model.Variant, start, end time.Time, pred *Predicate) ([]model.Tick, error) {
	if pred != nil {
		return l.store.TicksInRange(instrument, variant, start, end, pred.Where, pred.Args...)
	}
	return l.store.TicksInRange(instrument, variant, start, end, "")
}

// Bars returns bars with start <= bucket < end at the requested
// timeframe (in minutes). Timeframe 1 returns stored minute bars
// directly; coarser timeframes aggregate them: open from the first
// bar, close from the last, high/low extrema, spread averages weighted
// by tick counts, tick counts summed.
func (l *Layer) Bars(instrument string, tfMinutes int, start, end time.Time) ([]Bar, error) {
	if tfMinutes <= 0 {
		return nil, ErrInvalidTimeframe
	}

	minuteBars, err := l.store.BarsInRange(instrument, start, end)
	if err != nil {
		return nil, fmt.Errorf("query: read bars: %w", err)
	}

	if tfMinutes == 1 {
		out := make([]Bar, len(minuteBars))
		for i := range minuteBars {
			out[i] = fromMinuteBar(&minuteBars[i])
		}
		return out, nil
	}

	tfSec := int64(tfMinutes) * 60
	var out []Bar
	var cur *Bar
	var tradeSpreadSum, quoteSpreadSum float64 // tick-count weighted sums

	flush := func() {
		if cur == nil {
			return
		}
		if cur.TradeTicks > 0 {
			cur.TradeSpreadAvg = tradeSpreadSum / float64(cur.TradeTicks)
		}
		if cur.QuoteTicks > 0 {
			cur.QuoteSpreadAvg = quoteSpreadSum / float64(cur.QuoteTicks)
		}
		out = append(out, *cur)
		cur = nil
	}

	for i := range minuteBars {
		mb := &minuteBars[i]
		ts := mb.Minute.Unix()
		bucket := ts - ts%tfSec // align to timeframe boundary

		if cur != nil && bucket != cur.TS.Unix() {
			flush()
		}
		if cur == nil {
			cur = &Bar{
				Instrument: instrument,
				TFMinutes:  tfMinutes,
				TS:         time.Unix(bucket, 0).UTC(),
			}
			tradeSpreadSum, quoteSpreadSum = 0, 0
		}

		if mb.HasTrades {
			if !cur.HasTrades {
				cur.HasTrades = true
				cur.Open, cur.High, cur.Low = mb.Open, mb.High, mb.Low
			}
			if mb.High > cur.High {
				cur.High = mb.High
			}
			if mb.Low < cur.Low {
				cur.Low = mb.Low
			}
			cur.Close = mb.Close
		}
		cur.TradeTicks += mb.TradeTicks
		cur.QuoteTicks += mb.QuoteTicks
		tradeSpreadSum += mb.TradeSpreadAvg * float64(mb.TradeTicks)
		quoteSpreadSum += mb.QuoteSpreadAvg * float64(mb.QuoteTicks)
	}
	flush()
	return out, nil
}

// Coverage returns the instrument's read-only storage summary. It is
// answered from bar-table metadata, tick row counts, and the database
// file size; no raw tick scan is involved.
func (l *Layer) Coverage(instrument string) (model.CoverageInfo, error) {
	info := model.CoverageInfo{Instrument: instrument}

	count, earliest, latest, ok, err := l.store.BarStats(instrument)
	if err != nil {
		return info, fmt.Errorf("query: bar stats: %w", err)
	}
	info.BarCount = count
	if ok {
		info.EarliestBar = earliest
		info.LatestBar = latest
	}

	if info.TradeRows, err = l.store.ApproxRowCount(instrument, model.VariantTrade); err != nil {
		return info, fmt.Errorf("query: trade rows: %w", err)
	}
	if info.QuoteRows, err = l.store.ApproxRowCount(instrument, model.VariantQuote); err != nil {
		return info, fmt.Errorf("query: quote rows: %w", err)
	}
	if info.StorageSize, err = l.store.StorageSize(); err != nil {
		return info, fmt.Errorf("query: storage size: %w", err)
	}
	return info, nil
}

func fromMinuteBar(mb *model.MinuteBar) Bar {
	return Bar{
		Instrument:     mb.Instrument,
		TFMinutes:      1,
		TS:             mb.Minute,
		HasTrades:      mb.HasTrades,
		Open:           mb.Open,
		High:           mb.High,
		Low:            mb.Low,
		Close:          mb.Close,
		TradeSpreadAvg: mb.TradeSpreadAvg,
		TradeTicks:     mb.TradeTicks,
		QuoteSpreadAvg: mb.QuoteSpreadAvg,
		QuoteTicks:     mb.QuoteTicks,
	}
}
