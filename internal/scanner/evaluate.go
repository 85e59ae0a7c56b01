package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prisvakt/compliance-service/internal/commerce"
	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/events"
	"github.com/prisvakt/compliance-service/internal/telemetry"
)

type outcome struct {
	record  *database.EvaluationRecord
	changed bool
}

// observeAndEvaluate appends the polled price and re-evaluates the variant
func (s *Scanner) observeAndEvaluate(ctx context.Context, shop *database.Shop, v commerce.Variant, now time.Time) (*outcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scanner.evaluateVariant")
	defer span.End()

	key := v.Key(shop.Domain)
	span.SetAttributes(attribute.String("variant", key.String()))

	observations, err := s.newObservations(ctx, key, v, now)
	if err != nil {
		s.metrics.RecordEvaluationFailure("store")
		return nil, err
	}
	if err := s.store.AppendObservations(ctx, observations); err != nil {
		s.metrics.RecordEvaluationFailure("store")
		return nil, err
	}

	product := compliance.NewProductState(key, v.Price, v.CompareAtPrice)
	return s.evaluate(ctx, shop, product)
}

// newObservations returns the observation for this poll. The first
// observation of a variant is a reference checkpoint unless it is on sale,
// since sale prices never count towards the baseline. When a sale begins the
// last regular price is re-recorded as a checkpoint at its original time so
// retention never drops the baseline of a running sale.
func (s *Scanner) newObservations(ctx context.Context, key compliance.VariantKey, v commerce.Variant, now time.Time) ([]compliance.PriceObservation, error) {
	current := v.Observation(key.Shop)
	current.ObservedAt = now

	latest, err := s.store.LatestObservation(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		current.IsReference = !current.OnSale()
		return []compliance.PriceObservation{current}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest observation: %w", err)
	}

	if current.OnSale() && !latest.OnSale() && !latest.IsReference {
		checkpoint := *latest
		checkpoint.IsReference = true
		return []compliance.PriceObservation{checkpoint, current}, nil
	}
	return []compliance.PriceObservation{current}, nil
}

// evaluate loads history, runs the rules and persists the verdict
func (s *Scanner) evaluate(ctx context.Context, shop *database.Shop, product compliance.ProductState) (*outcome, error) {
	key := product.Key()

	prev, err := s.store.GetEvaluation(ctx, key)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.metrics.RecordEvaluationFailure("store")
		return nil, err
	}
	if prev != nil && prev.IsOnSale && product.IsOnSale {
		product.SaleStartDate = prev.SaleStartDate
	}

	rules := s.RulesFor(shop.CountryCode)
	now := s.clock()
	since := now.Add(-rules.RequiredHistory())
	if start := product.SaleStartDate; start != nil {
		if earliest := start.Add(-rules.RequiredHistory()); earliest.Before(since) {
			since = earliest
		}
	}

	history, err := s.store.ListObservations(ctx, key, since)
	if err != nil {
		s.metrics.RecordEvaluationFailure("store")
		return nil, err
	}

	eval, err := s.evaluator.Evaluate(product, history, rules)
	if err != nil {
		s.metrics.RecordEvaluationFailure("invalid_input")
		return nil, fmt.Errorf("failed to evaluate %s: %w", key, err)
	}

	saved, previous, err := s.store.SaveEvaluation(ctx, key, product.Price, eval)
	if err != nil {
		s.metrics.RecordEvaluationFailure("store")
		return nil, err
	}
	s.metrics.RecordEvaluation(saved.Evaluation)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("variant", key.String()).Msg("Failed to invalidate widget cache")
		}
	}

	changed := previous == nil || previous.IsCompliant != saved.IsCompliant
	if changed {
		if previous != nil {
			s.metrics.RecordVerdictChange()
		}
		s.publish(ctx, saved, previous)
	}
	return &outcome{record: saved, changed: changed}, nil
}

func (s *Scanner) publish(ctx context.Context, saved, previous *database.EvaluationRecord) {
	event := events.ComplianceChanged{
		Shop:        saved.Shop,
		ProductID:   saved.ProductID,
		VariantID:   saved.VariantID,
		IsCompliant: saved.IsCompliant,
		IsOnSale:    saved.IsOnSale,
		Issues:      saved.Issues,
		LastChecked: saved.LastChecked,
	}
	if previous != nil {
		was := previous.IsCompliant
		event.PreviousCompliant = &was
	}
	if err := s.publisher.PublishComplianceChanged(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("variant", event.Key()).Msg("Failed to publish compliance event")
	}
}

// RulesFor returns the rule set that applies to a shop in the given country
func (s *Scanner) RulesFor(countryCode string) compliance.RuleSet {
	if rs, ok := s.cfg.RulesByCountry[strings.ToUpper(countryCode)]; ok {
		return rs
	}
	return s.cfg.Rules
}
