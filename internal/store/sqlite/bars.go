package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"fxdata-system/internal/model"
)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UpsertBars writes a batch of minute bars in a single transaction,
// keyed by (instrument, minute). Existing rows are replaced.
func (s *Store) UpsertBars(bars []model.MinuteBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (
			instrument, minute, open, high, low, close,
			trade_spread_avg, trade_ticks, quote_spread_avg, quote_ticks,
			nyse, nasdaq, tsx, lse, xetra, paris, six, tokyo, hongkong, singapore, asx,
			us_holiday, uk_holiday, ny_hour, london_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for i := range bars {
		b := &bars[i]
		var open, high, low, clos interface{}
		if b.HasTrades {
			open, high, low, clos = b.Open, b.High, b.Low, b.Close
		}
		f := &b.Flags
		_, err := stmt.Exec(
			b.Instrument, b.Minute.UTC().Unix(), open, high, low, clos,
			b.TradeSpreadAvg, b.TradeTicks, b.QuoteSpreadAvg, b.QuoteTicks,
			boolInt(f.NYSE), boolInt(f.NASDAQ), boolInt(f.TSX), boolInt(f.LSE),
			boolInt(f.Xetra), boolInt(f.Paris), boolInt(f.SIX), boolInt(f.Tokyo),
			boolInt(f.HongKong), boolInt(f.Singapore), boolInt(f.ASX),
			boolInt(f.USHoliday), boolInt(f.UKHoliday), f.NYHour, f.LondonHour,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteBarsInRange removes bars with start <= minute < end for the
// instrument. Scoped deletes keep incremental rebuild cost proportional
// to the requested range.
func (s *Store) DeleteBarsInRange(instrument string, start, end time.Time) error {
	_, err := s.db.Exec(`
		DELETE FROM bars WHERE instrument = ? AND minute >= ? AND minute < ?
	`, instrument, start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return fmt.Errorf("sqlite delete bars: %w", err)
	}
	return nil
}

// DeleteAllBars removes every bar for the instrument (full rebuild).
func (s *Store) DeleteAllBars(instrument string) error {
	_, err := s.db.Exec(`DELETE FROM bars WHERE instrument = ?`, instrument)
	if err != nil {
		return fmt.Errorf("sqlite delete all bars: %w", err)
	}
	return nil
}

// BarsInRange returns bars with start <= minute < end, ordered by
// minute ascending.
func (s *Store) BarsInRange(instrument string, start, end time.Time) ([]model.MinuteBar, error) {
	rows, err := s.db.Query(`
		SELECT minute, open, high, low, close,
		       trade_spread_avg, trade_ticks, quote_spread_avg, quote_ticks,
		       nyse, nasdaq, tsx, lse, xetra, paris, six, tokyo, hongkong, singapore, asx,
		       us_holiday, uk_holiday, ny_hour, london_hour
		FROM bars
		WHERE instrument = ? AND minute >= ? AND minute < ?
		ORDER BY minute ASC
	`, instrument, start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var out []model.MinuteBar
	for rows.Next() {
		b := model.MinuteBar{Instrument: instrument}
		var minuteUnix int64
		var open, high, low, clos sql.NullFloat64
		var nyse, nasdaq, tsx, lse, xetra, paris, six, tokyo, hk, sg, asx, usHol, ukHol int
		err := rows.Scan(
			&minuteUnix, &open, &high, &low, &clos,
			&b.TradeSpreadAvg, &b.TradeTicks, &b.QuoteSpreadAvg, &b.QuoteTicks,
			&nyse, &nasdaq, &tsx, &lse, &xetra, &paris, &six, &tokyo, &hk, &sg, &asx,
			&usHol, &ukHol, &b.Flags.NYHour, &b.Flags.LondonHour,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		b.Minute = time.Unix(minuteUnix, 0).UTC()
		if open.Valid {
			b.HasTrades = true
			b.Open, b.High, b.Low, b.Close = open.Float64, high.Float64, low.Float64, clos.Float64
		}
		b.Flags.NYSE = nyse != 0
		b.Flags.NASDAQ = nasdaq != 0
		b.Flags.TSX = tsx != 0
		b.Flags.LSE = lse != 0
		b.Flags.Xetra = xetra != 0
		b.Flags.Paris = paris != 0
		b.Flags.SIX = six != 0
		b.Flags.Tokyo = tokyo != 0
		b.Flags.HongKong = hk != 0
		b.Flags.Singapore = sg != 0
		b.Flags.ASX = asx != 0
		b.Flags.USHoliday = usHol != 0
		b.Flags.UKHoliday = ukHol != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

// BarStats returns the bar count and earliest/latest bar minute for the
// instrument. ok=false when the instrument has no bars. Answered from
// bar-table metadata only, never from raw ticks.
func (s *Store) BarStats(instrument string) (count int64, earliest, latest time.Time, ok bool, err error) {
	var minUnix, maxUnix *int64
	err = s.db.QueryRow(`
		SELECT COUNT(*), MIN(minute), MAX(minute) FROM bars WHERE instrument = ?
	`, instrument).Scan(&count, &minUnix, &maxUnix)
	if err != nil {
		return 0, time.Time{}, time.Time{}, false, fmt.Errorf("sqlite bar stats: %w", err)
	}
	if minUnix == nil || maxUnix == nil {
		return count, time.Time{}, time.Time{}, false, nil
	}
	return count, time.Unix(*minUnix, 0).UTC(), time.Unix(*maxUnix, 0).UTC(), true, nil
}
