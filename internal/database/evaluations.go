package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

const evaluationColumns = `
	shop, product_id, variant_id, is_compliant, is_on_sale, price, reference_price,
	sale_start_date, last_checked, issues, updated_at
`

// MergeEvaluation carries the sale start of a previous evaluation forward
// while the variant stays on sale, so pruning old observations cannot
// shorten a running sale. The earlier of the two starts wins.
func MergeEvaluation(prev *EvaluationRecord, next compliance.Evaluation) compliance.Evaluation {
	if prev == nil || !prev.IsOnSale || !next.IsOnSale || prev.SaleStartDate == nil {
		return next
	}
	if next.SaleStartDate == nil || prev.SaleStartDate.Before(*next.SaleStartDate) {
		start := *prev.SaleStartDate
		next.SaleStartDate = &start
	}
	return next
}

// GetEvaluation returns the stored evaluation of a variant
func (s *Store) GetEvaluation(ctx context.Context, key compliance.VariantKey) (*EvaluationRecord, error) {
	rec, err := scanEvaluation(s.pool.QueryRow(ctx, `
		SELECT `+evaluationColumns+`
		FROM compliance_evaluations
		WHERE shop = $1 AND product_id = $2 AND variant_id = $3
	`, key.Shop, key.ProductID, key.VariantID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}
	return rec, nil
}

// SaveEvaluation upserts the evaluation of a variant inside a transaction,
// merging it with the stored one. It returns the saved record and the
// previous record (nil on first evaluation).
func (s *Store) SaveEvaluation(ctx context.Context, key compliance.VariantKey, price decimal.Decimal, eval compliance.Evaluation) (*EvaluationRecord, *EvaluationRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanEvaluation(tx.QueryRow(ctx, `
		SELECT `+evaluationColumns+`
		FROM compliance_evaluations
		WHERE shop = $1 AND product_id = $2 AND variant_id = $3
		FOR UPDATE
	`, key.Shop, key.ProductID, key.VariantID))
	if err == pgx.ErrNoRows {
		prev = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to lock evaluation: %w", err)
	}

	merged := MergeEvaluation(prev, eval)
	if merged.Issues == nil {
		merged.Issues = []compliance.Issue{}
	}
	issues, err := json.Marshal(merged.Issues)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode issues: %w", err)
	}

	saved, err := scanEvaluation(tx.QueryRow(ctx, `
		INSERT INTO compliance_evaluations (
			shop, product_id, variant_id, is_compliant, is_on_sale, price, reference_price,
			sale_start_date, last_checked, issues, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (shop, product_id, variant_id) DO UPDATE SET
			is_compliant = EXCLUDED.is_compliant,
			is_on_sale = EXCLUDED.is_on_sale,
			price = EXCLUDED.price,
			reference_price = EXCLUDED.reference_price,
			sale_start_date = EXCLUDED.sale_start_date,
			last_checked = EXCLUDED.last_checked,
			issues = EXCLUDED.issues,
			updated_at = EXCLUDED.updated_at
		RETURNING `+evaluationColumns,
		key.Shop, key.ProductID, key.VariantID, merged.IsCompliant, merged.IsOnSale,
		numericArg(price), nullNumericArg(merged.ReferencePrice), merged.SaleStartDate, merged.LastChecked.UTC(), issues,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert evaluation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit evaluation: %w", err)
	}
	return saved, prev, nil
}

// ListEvaluations returns the evaluations of a shop, non-compliant first
func (s *Store) ListEvaluations(ctx context.Context, shop string, filter EvaluationFilter) ([]EvaluationRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+evaluationColumns+`
		FROM compliance_evaluations
		WHERE shop = $1
		  AND ($2 = FALSE OR NOT is_compliant)
		  AND ($3 = FALSE OR is_on_sale)
		  AND ($6 = FALSE OR is_compliant)
		ORDER BY is_compliant ASC, product_id ASC, variant_id ASC
		LIMIT $4 OFFSET $5
	`, shop, filter.OnlyNonCompliant, filter.OnlyOnSale, limit, max(filter.Offset, 0), filter.OnlyCompliant)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	records := make([]EvaluationRecord, 0)
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Summary aggregates the evaluations of a shop
func (s *Store) Summary(ctx context.Context, shop string) (*ShopSummary, error) {
	summary := &ShopSummary{Shop: shop, IssuesByRule: make(map[compliance.RuleType]int)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_on_sale),
		       COUNT(*) FILTER (WHERE NOT is_compliant),
		       MAX(last_checked)
		FROM compliance_evaluations
		WHERE shop = $1
	`, shop).Scan(&summary.Variants, &summary.OnSale, &summary.NonCompliant, &summary.LastCheckedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize evaluations: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT issue->>'rule', COUNT(*)
		FROM compliance_evaluations, jsonb_array_elements(issues) AS issue
		WHERE shop = $1
		GROUP BY 1
	`, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule string
		var count int
		if err := rows.Scan(&rule, &count); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		summary.IssuesByRule[compliance.RuleType(rule)] = count
	}
	return summary, rows.Err()
}

func scanEvaluation(row pgx.Row) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	var rawIssues []byte
	err := row.Scan(
		&rec.Shop, &rec.ProductID, &rec.VariantID, &rec.IsCompliant, &rec.IsOnSale,
		&rec.Price, &rec.ReferencePrice, &rec.SaleStartDate, &rec.LastChecked, &rawIssues, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Issues = []compliance.Issue{}
	if len(rawIssues) > 0 {
		if err := json.Unmarshal(rawIssues, &rec.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode issues: %w", err)
		}
	}
	rec.LastChecked = rec.LastChecked.UTC()
	if rec.SaleStartDate != nil {
		start := rec.SaleStartDate.UTC()
		rec.SaleStartDate = &start
	}
	return &rec, nil
}

// numericArg sends decimals in text form so NUMERIC columns keep exact values
func numericArg(d decimal.Decimal) string {
	return d.String()
}

func nullNumericArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.String()
	return &v
}
