// Package barbuild derives the minute-bar table from stored ticks.
//
// Regeneration comes in two modes. Full mode discards every bar for
// the instrument and rebuilds from all ticks, walking the history in
// monthly chunks. Ranged mode scopes both the tick read and the
// delete-then-rewrite of bars to exactly [start, end), so its cost
// follows the size of the range, not the size of the history.
package barbuild

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"fxdata-system/internal/model"
	"fxdata-system/internal/sessions"
	"fxdata-system/internal/store/sqlite"

	"github.com/montanaflynn/stats"
)

// ErrInvalidRange is returned when a regeneration range has
// start >= end. Rejected before any delete is issued.
var ErrInvalidRange = errors.New("barbuild: regeneration range start must precede end")

// Range is a half-open [Start, End) minute range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Engine rebuilds minute bars from the tick store.
type Engine struct {
	store  *sqlite.Store
	tagger *sessions.Tagger
	locks  *keyedMutex

	// Metrics hooks (optional, set externally).
	OnBarsWritten   func(n int)
	OnRegenDuration func(d time.Duration)
}

// New creates an Engine over the given store and tagger.
func New(store *sqlite.Store, tagger *sessions.Tagger) *Engine {
	return &Engine{store: store, tagger: tagger, locks: newKeyedMutex()}
}

// Regenerate rebuilds minute bars for the instrument. A nil range
// selects full mode; otherwise only bars with Start <= minute < End
// are replaced, and no bar outside the range is touched. Returns the
// number of bars written.
func (e *Engine) Regenerate(ctx context.Context, instrument string, rng *Range) (int, error) {
	if rng != nil && !rng.Start.Before(rng.End) {
		return 0, ErrInvalidRange
	}

	unlock := e.locks.lock(instrument)
	defer unlock()

	start := time.Now()
	var written int
	var err error
	if rng == nil {
		written, err = e.regenerateFull(ctx, instrument)
	} else {
		written, err = e.regenerateRange(ctx, instrument, rng.Start.UTC().Truncate(time.Minute), rng.End.UTC())
	}
	if err != nil {
		return written, err
	}

	if e.OnRegenDuration != nil {
		e.OnRegenDuration(time.Since(start))
	}
	log.Printf("[barbuild] %s: wrote %d bars in %v", instrument, written, time.Since(start))
	return written, nil
}

func (e *Engine) regenerateFull(ctx context.Context, instrument string) (int, error) {
	tradeLo, tradeHi, hasTrades, err := e.store.EarliestLatest(instrument, model.VariantTrade)
	if err != nil {
		return 0, err
	}
	quoteLo, quoteHi, hasQuotes, err := e.store.EarliestLatest(instrument, model.VariantQuote)
	if err != nil {
		return 0, err
	}

	if err := e.store.DeleteAllBars(instrument); err != nil {
		return 0, err
	}
	if !hasTrades && !hasQuotes {
		return 0, nil
	}

	lo, hi := tradeLo, tradeHi
	if !hasTrades || (hasQuotes && quoteLo.Before(lo)) {
		lo = quoteLo
	}
	if !hasTrades || (hasQuotes && quoteHi.After(hi)) {
		hi = quoteHi
	}

	// Monthly chunks bound memory on long histories.
	written := 0
	chunk := time.Date(lo.Year(), lo.Month(), 1, 0, 0, 0, 0, time.UTC)
	for chunk.Before(hi) || chunk.Equal(hi) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		next := chunk.AddDate(0, 1, 0)
		n, err := e.buildRange(instrument, chunk, next)
		if err != nil {
			return written, err
		}
		written += n
		chunk = next
	}
	return written, nil
}

func (e *Engine) regenerateRange(ctx context.Context, instrument string, start, end time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := e.store.DeleteBarsInRange(instrument, start, end); err != nil {
		return 0, err
	}
	return e.buildRange(instrument, start, end)
}

// bucket accumulates one minute of ticks from both variants.
type bucket struct {
	minute time.Time

	hasTrades              bool
	open, high, low, close float64

	tradeSpreads []float64
	quoteSpreads []float64
}

// buildRange reads ticks in [start, end), aggregates them into minute
// buckets, tags the bucket minutes in one batch, and upserts the bars.
func (e *Engine) buildRange(instrument string, start, end time.Time) (int, error) {
	tradeTicks, err := e.store.TicksInRange(instrument, model.VariantTrade, start, end, "")
	if err != nil {
		return 0, fmt.Errorf("barbuild: read trade ticks: %w", err)
	}
	quoteTicks, err := e.store.TicksInRange(instrument, model.VariantQuote, start, end, "")
	if err != nil {
		return 0, fmt.Errorf("barbuild: read quote ticks: %w", err)
	}
	if len(tradeTicks) == 0 && len(quoteTicks) == 0 {
		return 0, nil
	}

	buckets := make(map[int64]*bucket)
	get := func(minute time.Time) *bucket {
		key := minute.Unix()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{minute: minute}
			buckets[key] = b
		}
		return b
	}

	// Trade ticks drive OHLC off the bid, which carries the traded
	// price on this stream. Ticks arrive ordered by timestamp, so the
	// first and last seen per bucket are open and close.
	for i := range tradeTicks {
		t := &tradeTicks[i]
		b := get(t.Minute())
		price := t.Bid
		if !b.hasTrades {
			b.hasTrades = true
			b.open, b.high, b.low = price, price, price
		}
		if price > b.high {
			b.high = price
		}
		if price < b.low {
			b.low = price
		}
		b.close = price
		b.tradeSpreads = append(b.tradeSpreads, t.Spread())
	}
	for i := range quoteTicks {
		t := &quoteTicks[i]
		b := get(t.Minute())
		b.quoteSpreads = append(b.quoteSpreads, t.Spread())
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	minutes := make([]time.Time, len(keys))
	for i, k := range keys {
		minutes[i] = time.Unix(k, 0).UTC()
	}
	flags := e.tagger.Tag(minutes)

	bars := make([]model.MinuteBar, len(keys))
	for i, k := range keys {
		b := buckets[k]
		bar := model.MinuteBar{
			Instrument: instrument,
			Minute:     b.minute,
			HasTrades:  b.hasTrades,
			TradeTicks: int64(len(b.tradeSpreads)),
			QuoteTicks: int64(len(b.quoteSpreads)),
			Flags:      flags[i],
		}
		if b.hasTrades {
			bar.Open, bar.High, bar.Low, bar.Close = b.open, b.high, b.low, b.close
		}
		if len(b.tradeSpreads) > 0 {
			m, err := stats.Mean(b.tradeSpreads)
			if err != nil {
				return 0, fmt.Errorf("barbuild: trade spread mean: %w", err)
			}
			bar.TradeSpreadAvg = m
		}
		if len(b.quoteSpreads) > 0 {
			m, err := stats.Mean(b.quoteSpreads)
			if err != nil {
				return 0, fmt.Errorf("barbuild: quote spread mean: %w", err)
			}
			bar.QuoteSpreadAvg = m
		}
		bars[i] = bar
	}

	if err := e.store.UpsertBars(bars); err != nil {
		return 0, fmt.Errorf("barbuild: write bars: %w", err)
	}
	if e.OnBarsWritten != nil {
		e.OnBarsWritten(len(bars))
	}
	return len(bars), nil
}
