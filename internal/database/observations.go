package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// Store persists observations, evaluations and shops
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store over the given pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// AppendObservations inserts observations in a single batch. Observations are
// never updated after insert.
func (s *Store) AppendObservations(ctx context.Context, observations []compliance.PriceObservation) error {
	if len(observations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(`
			INSERT INTO price_observations (
				shop, product_id, variant_id, price, compare_at_price, observed_at, is_reference
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, o.Shop, o.ProductID, o.VariantID, numericArg(o.Price), nullNumericArg(o.CompareAtPrice), o.ObservedAt.UTC(), o.IsReference)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range observations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}
	return nil
}

// ListObservations returns the observations of a variant at or after since,
// oldest first. Ties are broken by insertion order.
func (s *Store) ListObservations(ctx context.Context, key compliance.VariantKey, since time.Time) ([]compliance.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT shop, product_id, variant_id, price, compare_at_price, observed_at, is_reference
		FROM price_observations
		WHERE shop = $1 AND product_id = $2 AND variant_id = $3 AND observed_at >= $4
		ORDER BY observed_at ASC, id ASC
	`, key.Shop, key.ProductID, key.VariantID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	observations := make([]compliance.PriceObservation, 0)
	for rows.Next() {
		var o compliance.PriceObservation
		if err := rows.Scan(&o.Shop, &o.ProductID, &o.VariantID, &o.Price, &o.CompareAtPrice, &o.ObservedAt, &o.IsReference); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.ObservedAt = o.ObservedAt.UTC()
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// LatestObservation returns the most recent observation of a variant
func (s *Store) LatestObservation(ctx context.Context, key compliance.VariantKey) (*compliance.PriceObservation, error) {
	var o compliance.PriceObservation
	err := s.pool.QueryRow(ctx, `
		SELECT shop, product_id, variant_id, price, compare_at_price, observed_at, is_reference
		FROM price_observations
		WHERE shop = $1 AND product_id = $2 AND variant_id = $3
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`, key.Shop, key.ProductID, key.VariantID).Scan(
		&o.Shop, &o.ProductID, &o.VariantID, &o.Price, &o.CompareAtPrice, &o.ObservedAt, &o.IsReference,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest observation: %w", err)
	}
	o.ObservedAt = o.ObservedAt.UTC()
	return &o, nil
}

// PruneObservations deletes observations older than before. Reference
// checkpoints and the newest observation of each variant are kept.
func (s *Store) PruneObservations(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM price_observations po
		WHERE po.observed_at < $1
		  AND NOT po.is_reference
		  AND EXISTS (
			  SELECT 1 FROM price_observations newer
			  WHERE newer.shop = po.shop
			    AND newer.product_id = po.product_id
			    AND newer.variant_id = po.variant_id
			    AND newer.observed_at > po.observed_at
		  )
	`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	return result.RowsAffected(), nil
}
