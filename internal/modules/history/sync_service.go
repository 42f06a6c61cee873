package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/clients/stooq"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/pkg/logger"
)

// QuoteSource is the market-data adapter contract. Adapters are interchangeable;
// the sync service needs the latest daily bar per symbol, plus a ranged fetch
// for backfilling symbols with no stored history.
type QuoteSource interface {
	FetchLatest(symbol string) (*stooq.Quote, error)
	FetchDaily(symbol, fromDate string) ([]stooq.Quote, error)
}

// SecurityLister provides the set of securities to sync
type SecurityLister interface {
	GetAllActive() ([]universe.Security, error)
}

// SyncResult summarizes one price sync run
type SyncResult struct {
	Synced  int
	Failed  int
	Skipped int // No data available from the source
}

// SyncService pulls the latest daily bar for every active security and upserts it.
// Per-symbol failures are logged and counted but never abort the run.
type SyncService struct {
	quotes     QuoteSource
	securities SecurityLister
	prices     *PriceRepository
	lookback   int           // Days of history fetched when backfilling a new symbol
	pause      time.Duration // Between requests, to respect source rate limits
	log        zerolog.Logger

	// Progress is called after each symbol when set (used by the CLI progress bar)
	Progress func(done, total int)
}

// NewSyncService creates a new price sync service
func NewSyncService(quotes QuoteSource, securities SecurityLister, prices *PriceRepository, lookbackDays int, log zerolog.Logger) *SyncService {
	return &SyncService{
		quotes:     quotes,
		securities: securities,
		prices:     prices,
		lookback:   lookbackDays,
		pause:      100 * time.Millisecond,
		log:        logger.Service(log, "price_sync"),
	}
}

// Sync fetches and stores the latest bar for every active security
func (s *SyncService) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	securities, err := s.securities.GetAllActive()
	if err != nil {
		return result, err
	}

	total := len(securities)
	s.log.Info().Int("securities", total).Msg("Starting price sync")

	for i, sec := range securities {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stored, err := s.syncSymbol(sec.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sec.Symbol).Msg("Sync failed, skipping")
			result.Failed++
		} else if stored == 0 {
			s.log.Debug().Str("symbol", sec.Symbol).Msg("No quote data available")
			result.Skipped++
		} else {
			result.Synced++
		}

		if s.Progress != nil {
			s.Progress(i+1, total)
		}

		if s.pause > 0 && i < total-1 {
			time.Sleep(s.pause)
		}
	}

	s.log.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Price sync complete")

	return result, nil
}

// syncSymbol stores new bars for one symbol and returns how many were written.
// Symbols with no stored history get a full lookback backfill; the rest only
// fetch the latest daily bar.
func (s *SyncService) syncSymbol(symbol string) (int, error) {
	latest, err := s.prices.GetLatest(symbol)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return s.backfill(symbol)
	}

	quote, err := s.quotes.FetchLatest(symbol)
	if err != nil {
		return 0, err
	}
	if quote == nil {
		return 0, nil
	}
	if err := s.prices.Upsert(quoteBar(symbol, *quote)); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *SyncService) backfill(symbol string) (int, error) {
	from := time.Now().UTC().AddDate(0, 0, -s.lookback).Format("2006-01-02")
	s.log.Info().Str("symbol", symbol).Str("from", from).Msg("Backfilling price history")

	quotes, err := s.quotes.FetchDaily(symbol, from)
	if err != nil {
		return 0, err
	}
	for _, q := range quotes {
		if err := s.prices.Upsert(quoteBar(symbol, q)); err != nil {
			return 0, err
		}
	}
	return len(quotes), nil
}

func quoteBar(symbol string, q stooq.Quote) PriceBar {
	return PriceBar{
		Symbol: symbol,
		Date:   q.Date,
		Open:   q.Open,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Close,
		Volume: q.Volume,
	}
}
