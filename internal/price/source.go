package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	_ "time/tzdata" // Alpha Vantage reports IANA zone names

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/shopspring/decimal"
)

// Alpha Vantage functions.
const (
	FunctionGlobalQuote          = "GLOBAL_QUOTE"
	FunctionTimeSeriesDaily      = "TIME_SERIES_DAILY"
	FunctionCurrencyExchangeRate = "CURRENCY_EXCHANGE_RATE"
	FunctionFXDaily              = "FX_DAILY"
)

// DefaultCurrency is the quote currency when none is configured.
const DefaultCurrency = "USD"

// Exchange-listed securities are quoted in this zone.
const marketTimezone = "America/New_York"

// Price is a quote for one unit of a commodity.
type Price struct {
	Time     time.Time
	Number   decimal.Decimal
	Currency string
}

// Source returns prices for tickers.
type Source interface {
	LatestPrice(ctx context.Context, ticker string) (Price, error)
	HistoricalPrice(ctx context.Context, ticker string, date time.Time) (Price, error)
}

type dailyBar struct {
	Close string `json:"4. close"`
}

// Security prices stocks and funds in a fixed quote currency.
type Security struct {
	client   *Client
	currency string
}

// NewSecurity creates a security source. currency defaults to USD.
func NewSecurity(client *Client, currency string) *Security {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Security{client: client, currency: currency}
}

func (s *Security) params(ticker string) url.Values {
	return url.Values{"symbol": {ticker}}
}

// LatestPrice returns the most recent quote.
func (s *Security) LatestPrice(ctx context.Context, ticker string) (Price, error) {
	body, err := s.client.Query(ctx, FunctionGlobalQuote, ticker, s.params(ticker))
	if err != nil {
		return Price{}, err
	}

	var resp struct {
		Quote struct {
			Price      string `json:"05. price"`
			TradingDay string `json:"07. latest trading day"`
		} `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Price{}, fmt.Errorf("%w: %s quote: %w", common.ErrPriceAPIFailed, ticker, err)
	}
	if resp.Quote.Price == "" {
		return Price{}, fmt.Errorf("%w: no quote for %s", common.ErrPriceNotFound, ticker)
	}

	return buildPrice(resp.Quote.Price, resp.Quote.TradingDay, marketTimezone, s.currency)
}

// HistoricalPrice returns the closing price on date.
func (s *Security) HistoricalPrice(ctx context.Context, ticker string, date time.Time) (Price, error) {
	body, err := s.client.Query(ctx, FunctionTimeSeriesDaily, ticker, s.params(ticker))
	if err != nil {
		return Price{}, err
	}

	var resp struct {
		Meta struct {
			TimeZone string `json:"5. Time Zone"`
		} `json:"Meta Data"`
		Series map[string]dailyBar `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Price{}, fmt.Errorf("%w: %s series: %w", common.ErrPriceAPIFailed, ticker, err)
	}

	return closeOn(resp.Series, ticker, date, resp.Meta.TimeZone, s.currency)
}

// Forex prices currencies against a fixed quote currency.
type Forex struct {
	client   *Client
	currency string
}

// NewForex creates a currency source. currency defaults to USD.
func NewForex(client *Client, currency string) *Forex {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Forex{client: client, currency: currency}
}

// The FX_DAILY and CURRENCY_EXCHANGE_RATE functions name the pair
// differently; both are sent.
func (f *Forex) params(ticker string) url.Values {
	return url.Values{
		"from_symbol":   {ticker},
		"to_symbol":     {f.currency},
		"from_currency": {ticker},
		"to_currency":   {f.currency},
	}
}

// The cache key includes the quote currency so pairs do not collide.
func (f *Forex) pair(ticker string) string {
	return ticker + "_" + f.currency
}

// LatestPrice returns the current exchange rate.
func (f *Forex) LatestPrice(ctx context.Context, ticker string) (Price, error) {
	body, err := f.client.Query(ctx, FunctionCurrencyExchangeRate, f.pair(ticker), f.params(ticker))
	if err != nil {
		return Price{}, err
	}

	var resp struct {
		Rate struct {
			Rate          string `json:"5. Exchange Rate"`
			LastRefreshed string `json:"6. Last Refreshed"`
			TimeZone      string `json:"7. Time Zone"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Price{}, fmt.Errorf("%w: %s rate: %w", common.ErrPriceAPIFailed, ticker, err)
	}
	if resp.Rate.Rate == "" {
		return Price{}, fmt.Errorf("%w: no exchange rate for %s", common.ErrPriceNotFound, f.pair(ticker))
	}

	return buildPrice(resp.Rate.Rate, resp.Rate.LastRefreshed, resp.Rate.TimeZone, f.currency)
}

// HistoricalPrice returns the closing rate on date.
func (f *Forex) HistoricalPrice(ctx context.Context, ticker string, date time.Time) (Price, error) {
	body, err := f.client.Query(ctx, FunctionFXDaily, f.pair(ticker), f.params(ticker))
	if err != nil {
		return Price{}, err
	}

	var resp struct {
		Meta struct {
			TimeZone string `json:"6. Time Zone"`
		} `json:"Meta Data"`
		Series map[string]dailyBar `json:"Time Series FX (Daily)"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Price{}, fmt.Errorf("%w: %s series: %w", common.ErrPriceAPIFailed, ticker, err)
	}

	return closeOn(resp.Series, f.pair(ticker), date, resp.Meta.TimeZone, f.currency)
}

func closeOn(series map[string]dailyBar, ticker string, date time.Time, zone, currency string) (Price, error) {
	day := date.Format("2006-01-02")
	bar, ok := series[day]
	if !ok || bar.Close == "" {
		return Price{}, fmt.Errorf("%w: no close for %s on %s", common.ErrPriceNotFound, ticker, day)
	}
	return buildPrice(bar.Close, day, zone, currency)
}

// Timestamps come as "2006-01-02" or "2006-01-02 15:04:05" in the named zone.
var timestampLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

func buildPrice(number, timestamp, zone, currency string) (Price, error) {
	n, err := decimal.NewFromString(number)
	if err != nil {
		return Price{}, fmt.Errorf("%w: price %q: %w", common.ErrPriceAPIFailed, number, err)
	}

	loc := time.UTC
	if zone != "" {
		if loc, err = time.LoadLocation(zone); err != nil {
			return Price{}, fmt.Errorf("%w: time zone %q: %w", common.ErrPriceAPIFailed, zone, err)
		}
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, timestamp, loc); err == nil {
			return Price{Number: n, Currency: currency, Time: t}, nil
		}
	}
	return Price{}, fmt.Errorf("%w: timestamp %q", common.ErrPriceAPIFailed, timestamp)
}
