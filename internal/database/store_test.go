package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *Store {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Connect(ctx, PoolConfig{URL: connStr, MaxConns: 5, MinConns: 1, Trace: true}))
	t.Cleanup(Close)

	require.NoError(t, Migrate(ctx, Pool()))
	// applying twice must be harmless
	require.NoError(t, Migrate(ctx, Pool()))

	return NewStore(Pool())
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	store := setupTestDatabase(ctx, t)

	key := compliance.VariantKey{Shop: "demo.myshop.no", ProductID: "p-1", VariantID: "v-1"}
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	observe := func(offsetDays int, price, compareAt string) compliance.PriceObservation {
		o := compliance.PriceObservation{
			Shop: key.Shop, ProductID: key.ProductID, VariantID: key.VariantID,
			Price:      decimal.RequireFromString(price),
			ObservedAt: base.AddDate(0, 0, offsetDays),
		}
		if compareAt != "" {
			o.CompareAtPrice = decimal.NewNullDecimal(decimal.RequireFromString(compareAt))
		}
		return o
	}

	t.Run("Observations", func(t *testing.T) {
		require.NoError(t, store.AppendObservations(ctx, []compliance.PriceObservation{
			observe(2, "80", "100"),
			observe(0, "100", ""),
			observe(1, "100", "100"),
		}))

		history, err := store.ListObservations(ctx, key, base)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, base, history[0].ObservedAt)
		assert.False(t, history[0].CompareAtPrice.Valid)
		assert.True(t, history[2].Price.Equal(decimal.NewFromInt(80)))
		assert.True(t, history[2].OnSale())
		assert.False(t, history[1].OnSale())

		latest, err := store.LatestObservation(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, base.AddDate(0, 0, 2), latest.ObservedAt)

		_, err = store.LatestObservation(ctx, compliance.VariantKey{Shop: "other"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Evaluations", func(t *testing.T) {
		_, err := store.GetEvaluation(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)

		start := base.AddDate(0, 0, 2)
		first := compliance.Evaluation{
			IsCompliant:    false,
			IsOnSale:       true,
			ReferencePrice: decimal.NewNullDecimal(decimal.NewFromInt(150)),
			SaleStartDate:  &start,
			LastChecked:    base.AddDate(0, 0, 3),
			Issues: []compliance.Issue{{
				Rule: compliance.RuleReferencePrice, Severity: compliance.SeverityViolation, Message: "too high",
			}},
		}
		saved, prev, err := store.SaveEvaluation(ctx, key, decimal.NewFromInt(80), first)
		require.NoError(t, err)
		assert.Nil(t, prev)
		assert.False(t, saved.IsCompliant)
		require.Len(t, saved.Issues, 1)
		assert.Equal(t, compliance.RuleReferencePrice, saved.Issues[0].Rule)

		later := base.AddDate(0, 0, 10)
		second := compliance.Evaluation{IsCompliant: true, IsOnSale: true, SaleStartDate: &later, LastChecked: later}
		saved, prev, err = store.SaveEvaluation(ctx, key, decimal.NewFromInt(80), second)
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.False(t, prev.IsCompliant)
		require.NotNil(t, saved.SaleStartDate)
		assert.Equal(t, start, *saved.SaleStartDate)
		assert.Empty(t, saved.Issues)

		got, err := store.GetEvaluation(ctx, key)
		require.NoError(t, err)
		assert.True(t, got.IsCompliant)
		assert.True(t, got.Price.Decimal.Equal(decimal.NewFromInt(80)))
	})

	t.Run("ListAndSummary", func(t *testing.T) {
		other := compliance.VariantKey{Shop: key.Shop, ProductID: "p-2", VariantID: "v-1"}
		_, _, err := store.SaveEvaluation(ctx, other, decimal.NewFromInt(50), compliance.Evaluation{
			IsOnSale:    true,
			LastChecked: base,
			Issues: []compliance.Issue{
				{Rule: compliance.RuleSaleDuration, Severity: compliance.SeverityViolation, Message: "long"},
				{Rule: compliance.RuleSaleFrequency, Severity: compliance.SeverityViolation, Message: "often"},
			},
		})
		require.NoError(t, err)

		all, err := store.ListEvaluations(ctx, key.Shop, EvaluationFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "p-2", all[0].ProductID)

		bad, err := store.ListEvaluations(ctx, key.Shop, EvaluationFilter{OnlyNonCompliant: true})
		require.NoError(t, err)
		assert.Len(t, bad, 1)

		summary, err := store.Summary(ctx, key.Shop)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Variants)
		assert.Equal(t, 2, summary.OnSale)
		assert.Equal(t, 1, summary.NonCompliant)
		assert.Equal(t, 1, summary.IssuesByRule[compliance.RuleSaleDuration])
		assert.Equal(t, 1, summary.IssuesByRule[compliance.RuleSaleFrequency])
	})

	t.Run("Shops", func(t *testing.T) {
		_, err := store.UpsertShop(ctx, Shop{Domain: "Demo.MyShop.no", AccessToken: "tok", Active: true})
		require.NoError(t, err)

		shop, err := store.GetShop(ctx, "demo.myshop.no")
		require.NoError(t, err)
		assert.Equal(t, "NO", shop.CountryCode)
		assert.Nil(t, shop.LastScannedAt)

		due, err := store.ActiveShops(ctx, base)
		require.NoError(t, err)
		require.Len(t, due, 1)

		require.NoError(t, store.MarkShopScanned(ctx, shop.Domain, base))
		due, err = store.ActiveShops(ctx, base)
		require.NoError(t, err)
		assert.Empty(t, due)

		assert.ErrorIs(t, store.MarkShopScanned(ctx, "missing.no", base), ErrNotFound)
	})

	t.Run("Prune", func(t *testing.T) {
		removed, err := store.PruneObservations(ctx, base.AddDate(0, 0, 30))
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		history, err := store.ListObservations(ctx, key, time.Time{})
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, base.AddDate(0, 0, 2), history[0].ObservedAt)
	})
}
