// Package scanner polls shop prices, appends observations and keeps the
// stored compliance evaluation of every variant current.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/prisvakt/compliance-service/internal/commerce"
	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/events"
	"github.com/prisvakt/compliance-service/internal/locks"
	"github.com/prisvakt/compliance-service/internal/metrics"
	"github.com/prisvakt/compliance-service/internal/telemetry"
)

// ErrScanInProgress is returned when another replica holds the shop's scan lock
var ErrScanInProgress = errors.New("scan already in progress")

// Store is the persistence the scanner needs
type Store interface {
	GetShop(ctx context.Context, domain string) (*database.Shop, error)
	MarkShopScanned(ctx context.Context, domain string, at time.Time) error
	AppendObservations(ctx context.Context, observations []compliance.PriceObservation) error
	ListObservations(ctx context.Context, key compliance.VariantKey, since time.Time) ([]compliance.PriceObservation, error)
	LatestObservation(ctx context.Context, key compliance.VariantKey) (*compliance.PriceObservation, error)
	GetEvaluation(ctx context.Context, key compliance.VariantKey) (*database.EvaluationRecord, error)
	SaveEvaluation(ctx context.Context, key compliance.VariantKey, price decimal.Decimal, eval compliance.Evaluation) (*database.EvaluationRecord, *database.EvaluationRecord, error)
}

// VariantSource reads current prices from the commerce platform
type VariantSource interface {
	ListVariants(ctx context.Context, shop, accessToken string) ([]commerce.Variant, error)
	GetVariant(ctx context.Context, shop, accessToken, variantID string) (*commerce.Variant, error)
}

// Locker hands out per-shop scan leases
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*locks.Lease, error)
}

// Invalidator drops cached widget payloads
type Invalidator interface {
	Invalidate(ctx context.Context, key compliance.VariantKey) error
}

// Config holds scanner settings
type Config struct {
	Concurrency int
	Timeout     time.Duration
	LockTTL     time.Duration
	// Rules applies to shops whose country has no entry in RulesByCountry.
	Rules          compliance.RuleSet
	RulesByCountry map[string]compliance.RuleSet
}

// Scanner runs shop scans and single-variant re-checks. It is safe for
// concurrent use.
type Scanner struct {
	store     Store
	source    VariantSource
	evaluator *compliance.Evaluator
	locker    Locker
	publisher events.Publisher
	cache     Invalidator
	metrics   *metrics.Recorder
	logger    *zerolog.Logger
	clock     func() time.Time
	cfg       Config
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLocker sets the scan lock
func WithLocker(l Locker) Option {
	return func(s *Scanner) { s.locker = l }
}

// WithPublisher sets the compliance event publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Scanner) { s.publisher = p }
}

// WithCache sets the widget cache to invalidate after each evaluation
func WithCache(c Invalidator) Option {
	return func(s *Scanner) { s.cache = c }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Scanner) {
		l := logger.With().Str("component", "scanner").Logger()
		s.logger = &l
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Scanner) { s.clock = clock }
}

// New creates a scanner
func New(store Store, source VariantSource, evaluator *compliance.Evaluator, cfg Config, opts ...Option) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 20 * time.Minute
	}
	if len(cfg.Rules.Rules) == 0 {
		cfg.Rules = compliance.NorwegianRuleSet()
	}

	nop := zerolog.Nop()
	s := &Scanner{
		store:     store,
		source:    source,
		evaluator: evaluator,
		locker:    (*locks.Locker)(nil),
		publisher: events.NopPublisher{},
		metrics:   metrics.NewRecorder(),
		logger:    &nop,
		clock:     func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanResult summarizes one shop scan
type ScanResult struct {
	Shop         string        `json:"shop"`
	Variants     int           `json:"variants"`
	Evaluated    int           `json:"evaluated"`
	NonCompliant int           `json:"nonCompliant"`
	Failed       int           `json:"failed"`
	Changed      int           `json:"changed"`
	Duration     time.Duration `json:"duration"`
}

// ScanShop polls every variant of the shop, appends one observation per
// variant and re-evaluates it. A variant that fails is logged and counted;
// it does not abort the scan.
func (s *Scanner) ScanShop(ctx context.Context, domain string) (*ScanResult, error) {
	start := time.Now()
	domain = strings.ToLower(domain)
	logger := s.logger.With().Str("shop", domain).Logger()

	lease, err := s.locker.Acquire(ctx, "scan:"+domain, s.cfg.LockTTL)
	if errors.Is(err, locks.ErrNotHeld) {
		s.metrics.RecordScan("skipped_locked", 0)
		return nil, ErrScanInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("Failed to release scan lock")
		}
	}()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "scanner.ScanShop")
	span.SetAttributes(attribute.String("shop", domain))
	defer span.End()

	result, err := s.scan(ctx, domain, &logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordScan("failed", time.Since(start))
		logger.Error().Err(err).Msg("Scan failed")
		return nil, err
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("variants", result.Variants),
		attribute.Int("non_compliant", result.NonCompliant),
	)
	s.metrics.RecordScan("success", result.Duration)
	logger.Info().
		Int("variants", result.Variants).
		Int("evaluated", result.Evaluated).
		Int("non_compliant", result.NonCompliant).
		Int("failed", result.Failed).
		Int("changed", result.Changed).
		Dur("duration", result.Duration).
		Msg("Scan completed")
	return result, nil
}

func (s *Scanner) scan(ctx context.Context, domain string, logger *zerolog.Logger) (*ScanResult, error) {
	shop, err := s.store.GetShop(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop %s: %w", domain, err)
	}

	variants, err := s.source.ListVariants(ctx, shop.Domain, shop.AccessToken)
	if err != nil {
		s.metrics.RecordEvaluationFailure("commerce")
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}

	now := s.clock()
	result := &ScanResult{Shop: shop.Domain, Variants: len(variants)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, v := range variants {
		g.Go(func() error {
			outcome, err := s.observeAndEvaluate(gctx, shop, v, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// cancellation aborts the scan, anything else only the variant
				if gctx.Err() != nil {
					return gctx.Err()
				}
				result.Failed++
				logger.Warn().
					Err(err).
					Str("product_id", v.ProductID).
					Str("variant_id", v.VariantID).
					Msg("Variant evaluation failed")
				return nil
			}
			result.Evaluated++
			if !outcome.record.IsCompliant {
				result.NonCompliant++
			}
			if outcome.changed {
				result.Changed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.MarkShopScanned(ctx, shop.Domain, now); err != nil {
		return nil, err
	}
	return result, nil
}

// RecheckVariant fetches the current price of one variant and re-evaluates it
func (s *Scanner) RecheckVariant(ctx context.Context, domain, productID, variantID string) (*database.EvaluationRecord, error) {
	shop, err := s.store.GetShop(ctx, strings.ToLower(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to load shop %s: %w", domain, err)
	}

	v, err := s.source.GetVariant(ctx, shop.Domain, shop.AccessToken, variantID)
	if err != nil {
		s.metrics.RecordEvaluationFailure("commerce")
		return nil, fmt.Errorf("failed to fetch variant: %w", err)
	}
	if v.ProductID != "" && v.ProductID != productID {
		return nil, fmt.Errorf("%w: variant %s belongs to product %s", database.ErrNotFound, variantID, v.ProductID)
	}
	v.ProductID = productID

	outcome, err := s.observeAndEvaluate(ctx, shop, *v, s.clock())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("shop", shop.Domain).
		Str("variant", outcome.record.VariantKey.String()).
		Bool("compliant", outcome.record.IsCompliant).
		Msg("Variant rechecked")
	return outcome.record, nil
}
