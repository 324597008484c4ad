// Package service orchestrates update runs: gap detection, month
// acquisition, tick loading, and bar regeneration, reported back as a
// single UpdateResult.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"fxdata-system/internal/barbuild"
	"fxdata-system/internal/barcache"
	"fxdata-system/internal/coverage"
	"fxdata-system/internal/fetch"
	"fxdata-system/internal/metrics"
	"fxdata-system/internal/model"
	"fxdata-system/internal/query"
	"fxdata-system/internal/store/sqlite"
)

// RowLoader parses a downloaded archive into typed tick rows.
type RowLoader interface {
	Load(archive io.Reader, instrument string, variant model.Variant) ([]model.Tick, error)
}

// Service wires the pipeline together. Redis cache and Prometheus
// metrics are optional; nil disables them.
type Service struct {
	store      *sqlite.Store
	detector   *coverage.Detector
	engine     *barbuild.Engine
	queries    *query.Layer
	downloader fetch.Downloader
	loader     RowLoader
	cache      *barcache.Cache
	prom       *metrics.Metrics
	log        *slog.Logger
}

// New creates a Service.
func New(store *sqlite.Store, detector *coverage.Detector, engine *barbuild.Engine,
	queries *query.Layer, downloader fetch.Downloader, loader RowLoader,
	cache *barcache.Cache, prom *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		detector:   detector,
		engine:     engine,
		queries:    queries,
		downloader: downloader,
		loader:     loader,
		cache:      cache,
		prom:       prom,
		log:        log,
	}
}

// variantOutcome is the result of fetching and loading one variant of
// one month.
type variantOutcome struct {
	variant  model.Variant
	inserted int
	rejected int
	softErr  string // unavailable month, bad archive: recoverable
	hardErr  error  // storage failure: aborts the run
}

// Update brings one instrument up to date from startMonth through the
// current month and regenerates bars over the span of newly loaded
// months. Per-item failures (an unavailable month, a rejected row, a
// corrupt archive) are collected into the result; invalid input and
// storage failures abort with an error naming the failed phase.
func (s *Service) Update(ctx context.Context, instrument string, startMonth coverage.Month) (model.UpdateResult, error) {
	res := model.UpdateResult{Instrument: instrument}
	began := time.Now()

	// Fold pending writes so gap detection sees exact row state.
	if err := s.store.Materialize(); err != nil {
		return res, fmt.Errorf("update %s: store: %w", instrument, err)
	}

	missing, err := s.detector.MissingMonths(instrument, startMonth)
	if err != nil {
		return res, fmt.Errorf("update %s: coverage: %w", instrument, err)
	}
	res.MonthsMissing = len(missing)
	s.log.Info("update: gap scan complete", "instrument", instrument, "missing_months", len(missing))

	var loadedLo, loadedHi coverage.Month
	loadedAny := false

	for _, m := range missing {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("update %s: acquisition: %w", instrument, err)
		}

		outcomes := s.loadMonth(ctx, instrument, m)
		monthLoaded := false
		for _, o := range outcomes {
			if o.hardErr != nil {
				return res, fmt.Errorf("update %s: store %s/%s: %w", instrument, m, o.variant, o.hardErr)
			}
			if o.softErr != "" {
				res.SoftErrors = append(res.SoftErrors, fmt.Sprintf("%s %s: %s", m, o.variant, o.softErr))
				if s.prom != nil {
					s.prom.MonthsUnavailable.Inc()
				}
				continue
			}
			monthLoaded = true
			res.RowsRejected += int64(o.rejected)
			switch o.variant {
			case model.VariantTrade:
				res.TradeRowsAdded += int64(o.inserted)
			case model.VariantQuote:
				res.QuoteRowsAdded += int64(o.inserted)
			}
			if s.prom != nil {
				s.prom.TicksInserted.WithLabelValues(string(o.variant)).Add(float64(o.inserted))
				s.prom.TicksRejected.WithLabelValues(string(o.variant)).Add(float64(o.rejected))
			}
		}

		if monthLoaded {
			res.MonthsFetched++
			if s.prom != nil {
				s.prom.MonthsFetched.Inc()
			}
			if !loadedAny {
				loadedLo, loadedHi, loadedAny = m, m, true
			} else {
				if loadedLo.After(m) {
					loadedLo = m
				}
				if m.After(loadedHi) {
					loadedHi = m
				}
			}
		}
	}
	res.MonthsUnavailable = res.MonthsMissing - res.MonthsFetched

	if loadedAny {
		if err := s.store.Materialize(); err != nil {
			return res, fmt.Errorf("update %s: store: %w", instrument, err)
		}

		// Regenerate exactly the span of freshly loaded months.
		rng := &barbuild.Range{Start: loadedLo.Start(), End: loadedHi.Next().Start()}
		written, err := s.engine.Regenerate(ctx, instrument, rng)
		if err != nil {
			return res, fmt.Errorf("update %s: aggregate: %w", instrument, err)
		}
		res.BarsWritten = int64(written)
	}

	info, err := s.queries.Coverage(instrument)
	if err != nil {
		return res, fmt.Errorf("update %s: store: %w", instrument, err)
	}
	res.Coverage = info

	s.cache.SetCoverage(ctx, info)
	if res.BarsWritten > 0 {
		s.cache.PublishBarUpdate(ctx, barcache.BarUpdate{
			Instrument:  instrument,
			BarsWritten: res.BarsWritten,
			LatestBar:   info.LatestBar,
		})
	}

	if s.prom != nil {
		s.prom.UpdateDur.Observe(time.Since(began).Seconds())
	}
	s.log.Info("update complete",
		"instrument", instrument,
		"months_fetched", res.MonthsFetched,
		"trade_rows", res.TradeRowsAdded,
		"quote_rows", res.QuoteRowsAdded,
		"bars_written", res.BarsWritten,
		"soft_errors", len(res.SoftErrors),
		"took", time.Since(began).String(),
	)
	return res, nil
}

// loadMonth fetches and loads both variants of one month concurrently.
// The two paths share no state until the store insert, which the
// single-writer store serializes internally.
func (s *Service) loadMonth(ctx context.Context, instrument string, m coverage.Month) []variantOutcome {
	variants := []model.Variant{model.VariantTrade, model.VariantQuote}
	results := make(chan variantOutcome, len(variants))

	var wg sync.WaitGroup
	for _, v := range variants {
		wg.Add(1)
		go func(v model.Variant) {
			defer wg.Done()
			results <- s.loadVariant(ctx, instrument, m, v)
		}(v)
	}
	wg.Wait()
	close(results)

	out := make([]variantOutcome, 0, len(variants))
	for o := range results {
		out = append(out, o)
	}
	return out
}

func (s *Service) loadVariant(ctx context.Context, instrument string, m coverage.Month, v model.Variant) variantOutcome {
	o := variantOutcome{variant: v}

	body, err := s.downloader.Fetch(ctx, instrument, m.Year, m.Month, v)
	if err != nil {
		if errors.Is(err, fetch.ErrMonthUnavailable) {
			o.softErr = "no data for this period"
		} else {
			o.softErr = fmt.Sprintf("fetch failed: %v", err)
		}
		return o
	}
	defer body.Close()

	ticks, err := s.loader.Load(body, instrument, v)
	if err != nil {
		o.softErr = fmt.Sprintf("load failed: %v", err)
		return o
	}

	report, err := s.store.InsertTicks(instrument, v, ticks)
	if err != nil {
		o.hardErr = err
		return o
	}
	o.inserted = report.Inserted
	o.rejected = len(report.Rejected)
	for _, rej := range report.Rejected {
		s.log.Warn("tick rejected",
			"instrument", instrument, "variant", string(v),
			"month", m.String(), "row", rej.Index, "reason", rej.Reason)
	}
	return o
}
