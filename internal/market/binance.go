package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tradecore/internal/config"
	symbolutil "tradecore/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceSource implements Source on the Binance spot REST API with a
// short-lived per-symbol cache, so a burst of validations does not turn
// into a burst of HTTP calls.
type BinanceSource struct {
	client *binance.Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]Quote
}

func NewBinanceSource(cfg config.MarketConfig) *BinanceSource {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	ttl := time.Duration(cfg.QuoteTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &BinanceSource{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]Quote),
	}
}

func (s *BinanceSource) LastPrice(ctx context.Context, raw string) (Quote, error) {
	symbol := symbolutil.Normalize(raw)
	if symbol == "" {
		return Quote{}, fmt.Errorf("symbol is required")
	}

	s.mu.Lock()
	cached, ok := s.cache[symbol]
	s.mu.Unlock()
	if ok && !cached.Stale(s.ttl) {
		return cached, nil
	}

	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		// A stale quote beats no quote for mark-to-market; the caller
		// decides whether staleness is acceptable.
		if ok {
			return cached, nil
		}
		return Quote{}, fmt.Errorf("binance price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return Quote{}, fmt.Errorf("binance price %s: empty response", symbol)
	}
	last, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return Quote{}, fmt.Errorf("binance price %s: bad price %q: %w", symbol, prices[0].Price, err)
	}
	quote := Quote{Symbol: symbol, Last: last, UpdatedAt: time.Now()}

	s.mu.Lock()
	s.cache[symbol] = quote
	s.mu.Unlock()
	return quote, nil
}
