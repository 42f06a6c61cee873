// Package stooq provides a client for the stooq.com daily quote CSV endpoint.
// It is one of the interchangeable market-data adapters; the sync service only
// depends on the QuoteSource interface it satisfies.
package stooq

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Quote is one daily OHLCV row as returned by the endpoint
type Quote struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Client for the stooq daily CSV endpoint
type Client struct {
	baseURL string
	suffix  string // market suffix appended to symbols (e.g. ".us")
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new stooq client.
// baseURL is expected to serve CSV with a Date,Open,High,Low,Close,Volume header.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		suffix:  ".us",
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "stooq").Logger(),
	}
}

// FetchDaily fetches daily quotes for a symbol from the given date (YYYY-MM-DD,
// empty for the full available history), ascending by date.
func (c *Client) FetchDaily(symbol, fromDate string) ([]Quote, error) {
	params := url.Values{}
	params.Set("s", strings.ToLower(symbol)+c.suffix)
	params.Set("i", "d")
	if fromDate != "" {
		params.Set("d1", strings.ReplaceAll(fromDate, "-", ""))
	}

	reqURL := c.baseURL + "?" + params.Encode()
	c.log.Debug().Str("url", reqURL).Msg("Fetching daily quotes")

	resp, err := c.client.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	quotes, err := parseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote CSV for %s: %w", symbol, err)
	}

	return quotes, nil
}

// FetchLatest fetches the most recent daily quote for a symbol,
// or nil when the endpoint has no data for it
func (c *Client) FetchLatest(symbol string) (*Quote, error) {
	// Four calendar days back covers weekends and single holidays around
	// the most recent session
	from := time.Now().UTC().AddDate(0, 0, -4).Format("2006-01-02")

	quotes, err := c.FetchDaily(symbol, from)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, nil
	}

	latest := quotes[len(quotes)-1]
	return &latest, nil
}

// parseCSV parses the Date,Open,High,Low,Close,Volume CSV body.
// Rows with unparseable numbers are malformed input and fail the whole fetch.
func parseCSV(body io.Reader) ([]Quote, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil // Header only or empty: no data
	}

	quotes := make([]Quote, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, fmt.Errorf("malformed row: expected 6 fields, got %d", len(rec))
		}

		var q Quote
		q.Date = rec[0]
		if q.Open, err = strconv.ParseFloat(rec[1], 64); err != nil {
			return nil, fmt.Errorf("malformed open %q: %w", rec[1], err)
		}
		if q.High, err = strconv.ParseFloat(rec[2], 64); err != nil {
			return nil, fmt.Errorf("malformed high %q: %w", rec[2], err)
		}
		if q.Low, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, fmt.Errorf("malformed low %q: %w", rec[3], err)
		}
		if q.Close, err = strconv.ParseFloat(rec[4], 64); err != nil {
			return nil, fmt.Errorf("malformed close %q: %w", rec[4], err)
		}
		if q.Volume, err = strconv.ParseInt(rec[5], 10, 64); err != nil {
			// Some markets report fractional or missing volume
			f, ferr := strconv.ParseFloat(rec[5], 64)
			if ferr != nil {
				return nil, fmt.Errorf("malformed volume %q: %w", rec[5], err)
			}
			q.Volume = int64(f)
		}

		quotes = append(quotes, q)
	}

	return quotes, nil
}
