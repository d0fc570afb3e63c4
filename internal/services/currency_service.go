package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/framelane/api/internal/domain"
	"github.com/framelane/api/internal/rates"
)

var (
	errCurrencySourceRequired = errors.New("currency service: rate source is required")
	errCurrencyClockRequired  = errors.New("currency service: clock is required")
)

const defaultRateTTL = 12 * time.Hour

// RateSource fetches a live USD-based rate table.
type RateSource interface {
	FetchLatest(ctx context.Context) (map[string]float64, error)
}

// CurrencyServiceDeps wires the rate source and cache tuning for conversions.
type CurrencyServiceDeps struct {
	Source RateSource
	Clock  func() time.Time
	TTL    time.Duration
	Logger func(context.Context, string, map[string]any)
}

type currencyService struct {
	source RateSource
	now    func() time.Time
	ttl    time.Duration
	logger func(context.Context, string, map[string]any)

	mu      sync.RWMutex
	cached  map[string]float64
	fetched time.Time
}

// NewCurrencyService constructs a CurrencyService with a single-entry rate
// cache. The cache is replaced wholesale on refresh; a failed refresh serves
// the embedded fallback table without populating the cache so the next call
// retries the live fetch.
func NewCurrencyService(deps CurrencyServiceDeps) (CurrencyService, error) {
	if deps.Source == nil {
		return nil, errCurrencySourceRequired
	}
	if deps.Clock == nil {
		return nil, errCurrencyClockRequired
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultRateTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &currencyService{
		source: deps.Source,
		now:    func() time.Time { return deps.Clock().UTC() },
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Rate returns the multiplier that converts from into to. Unknown currencies
// resolve to rate 1 so a conversion degrades to the original amount.
func (s *currencyService) Rate(ctx context.Context, from, to string) float64 {
	from = normalizeCurrency(from)
	to = normalizeCurrency(to)
	if from == "" || to == "" || from == to {
		return 1
	}

	table := s.rateTable(ctx)

	fromRate, okFrom := table[from]
	toRate, okTo := table[to]
	if !okFrom || !okTo || fromRate <= 0 || toRate <= 0 {
		s.logger(ctx, "currency.rate.unknown", map[string]any{"from": from, "to": to})
		return 1
	}
	// USD pivot: both rates are expressed against USD.
	return toRate / fromRate
}

// Convert converts amount from one currency to another, rounding per the
// destination currency's decimal convention.
func (s *currencyService) Convert(ctx context.Context, amount float64, from, to string) float64 {
	rate := s.Rate(ctx, from, to)
	return domain.RoundAmount(amount*rate, normalizeCurrency(to))
}

func (s *currencyService) rateTable(ctx context.Context) map[string]float64 {
	now := s.now()

	s.mu.RLock()
	cached, fetched := s.cached, s.fetched
	s.mu.RUnlock()

	if cached != nil && now.Sub(fetched) < s.ttl {
		return cached
	}

	fresh, err := s.source.FetchLatest(ctx)
	if err != nil {
		s.logger(ctx, "currency.fetch.failed", map[string]any{"error": err.Error()})
		return rates.FallbackRates()
	}

	s.mu.Lock()
	s.cached = fresh
	s.fetched = now
	s.mu.Unlock()
	return fresh
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
