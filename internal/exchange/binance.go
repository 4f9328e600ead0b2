package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"PairScanner/internal/model"
)

const (
	// DefaultBaseURL is the USDⓈ-M futures REST endpoint.
	DefaultBaseURL = "https://fapi.binance.com"

	klinesPath       = "/fapi/v1/klines"
	exchangeInfoPath = "/fapi/v1/exchangeInfo"

	// klineLimit is the largest page the klines endpoint serves.
	klineLimit = 1500
	// maxPages bounds a single fetch so a misbehaving server cannot loop us.
	maxPages = 1000
)

// BinanceOptions configures BinanceFetcher.
type BinanceOptions struct {
	BaseURL string
	APIKey  string
	Proxy   string
	Timeout time.Duration
}

// BinanceFetcher implements Fetcher against the Binance futures REST API.
type BinanceFetcher struct {
	baseURL string
	client  *resty.Client
	now     func() time.Time
}

// NewBinanceFetcher creates a fetcher with optional API key and proxy.
func NewBinanceFetcher(opts BinanceOptions) *BinanceFetcher {
	client := resty.New()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	if opts.APIKey != "" {
		client.SetHeader("X-MBX-APIKEY", opts.APIKey)
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &BinanceFetcher{baseURL: base, client: client, now: time.Now}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchCandles pages through /fapi/v1/klines from start until the server
// has nothing newer. Bars that have not closed yet are dropped.
func (f *BinanceFetcher) FetchCandles(ctx context.Context, symbol, interval string, start time.Time) (model.Series, error) {
	var out model.Series
	cursor := start.UTC().UnixMilli()
	now := f.now().UTC()

	for page := 0; page < maxPages; page++ {
		rows, err := f.fetchKlinePage(ctx, symbol, interval, cursor)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if !r.closeTime.Before(now) {
				continue
			}
			out = append(out, r.candle)
		}
		if len(rows) < klineLimit {
			break
		}
		next := rows[len(rows)-1].candle.OpenTime.UnixMilli() + 1
		if next <= cursor {
			break
		}
		cursor = next
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

type kline struct {
	candle    model.Candle
	closeTime time.Time
}

func (f *BinanceFetcher) fetchKlinePage(ctx context.Context, symbol, interval string, startMs int64) ([]kline, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  interval,
			"startTime": strconv.FormatInt(startMs, 10),
			"limit":     strconv.Itoa(klineLimit),
		}).
		Get(f.baseURL + klinesPath)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch klines %s %s: status %d, body: %s", symbol, interval, resp.StatusCode(), resp.String())
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	rows := make([]kline, 0, len(raw))
	for i, r := range raw {
		k, err := parseKline(r)
		if err != nil {
			return nil, fmt.Errorf("decode kline %d: %w", i, err)
		}
		rows = append(rows, k)
	}
	return rows, nil
}

// parseKline decodes one [openTime, "open", "high", "low", "close",
// "volume", closeTime, ...] array.
func parseKline(r []json.RawMessage) (kline, error) {
	if len(r) < 7 {
		return kline{}, fmt.Errorf("expected at least 7 fields, got %d", len(r))
	}
	var openMs, closeMs int64
	if err := json.Unmarshal(r[0], &openMs); err != nil {
		return kline{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(r[6], &closeMs); err != nil {
		return kline{}, fmt.Errorf("close time: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		v, err := decimalField(r[i+1])
		if err != nil {
			return kline{}, err
		}
		vals[i] = v
	}
	return kline{
		candle: model.Candle{
			OpenTime: time.UnixMilli(openMs).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		},
		closeTime: time.UnixMilli(closeMs).UTC(),
	}, nil
}

// decimalField accepts both quoted and bare JSON numbers.
func decimalField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("price field %s: %w", string(raw), err)
	}
	return d.InexactFloat64(), nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
	} `json:"symbols"`
}

// ListActiveSymbols returns TRADING perpetual contracts in sorted order.
func (f *BinanceFetcher) ListActiveSymbols(ctx context.Context) ([]string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.baseURL + exchangeInfoPath)
	if err != nil {
		return nil, fmt.Errorf("fetch exchange info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch exchange info: status %d", resp.StatusCode())
	}
	var info exchangeInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}
	var out []string
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.ContractType == "PERPETUAL" {
			out = append(out, s.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}
