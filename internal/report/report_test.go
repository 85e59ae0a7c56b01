package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/i18n"
)

func TestWrite(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	checked := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	evaluations := []database.EvaluationRecord{
		{
			VariantKey: compliance.VariantKey{Shop: "demo.myshop.no", ProductID: "1", VariantID: "11"},
			Evaluation: compliance.Evaluation{
				IsOnSale:       true,
				ReferencePrice: decimal.NewNullDecimal(decimal.NewFromInt(150)),
				SaleStartDate:  &start,
				LastChecked:    checked,
				Issues: []compliance.Issue{{
					Rule: compliance.RuleReferencePrice, Severity: compliance.SeverityViolation, Message: "too high",
				}},
			},
			Price: decimal.NewNullDecimal(decimal.NewFromInt(80)),
		},
		{
			VariantKey: compliance.VariantKey{Shop: "demo.myshop.no", ProductID: "2", VariantID: "21"},
			Evaluation: compliance.Evaluation{IsCompliant: true, LastChecked: checked, Issues: []compliance.Issue{}},
		},
	}
	summary := &database.ShopSummary{Shop: "demo.myshop.no", Variants: 2, OnSale: 1, NonCompliant: 1}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, summary, evaluations, i18n.New("nb"), checked))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{overviewSheet, issuesSheet}, f.GetSheetList())

	shop, err := f.GetCellValue(overviewSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "demo.myshop.no", shop)

	rows, err := f.GetRows(overviewSheet)
	require.NoError(t, err)
	require.Len(t, rows, 9)
	assert.Equal(t, "Førpris", rows[6][3])
	assert.Equal(t, "1", rows[7][0])
	assert.Equal(t, "150", rows[7][3])
	assert.Equal(t, "2026-09-01", rows[7][5])
	assert.Equal(t, "Ikke i samsvar", rows[7][6])
	assert.Equal(t, "I samsvar", rows[8][6])

	issues, err := f.GetRows(issuesSheet)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, []string{"1", "11", "Førpris", "Brudd", "too high"}, issues[1])
}

type pagedSource struct {
	records []database.EvaluationRecord
	calls   int
	err     error
}

func (p *pagedSource) Summary(_ context.Context, shop string) (*database.ShopSummary, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &database.ShopSummary{Shop: shop, Variants: len(p.records)}, nil
}

func (p *pagedSource) ListEvaluations(_ context.Context, _ string, filter database.EvaluationFilter) ([]database.EvaluationRecord, error) {
	p.calls++
	if filter.Offset >= len(p.records) {
		return nil, nil
	}
	end := min(filter.Offset+filter.Limit, len(p.records))
	return p.records[filter.Offset:end], nil
}

func TestGenerateReadsEveryPage(t *testing.T) {
	checked := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	src := &pagedSource{}
	for i := 0; i < PageSize+5; i++ {
		src.records = append(src.records, database.EvaluationRecord{
			VariantKey: compliance.VariantKey{Shop: "demo.myshop.no", ProductID: fmt.Sprint(i), VariantID: fmt.Sprint(i)},
			Evaluation: compliance.Evaluation{IsCompliant: true, LastChecked: checked},
		})
	}

	var buf bytes.Buffer
	require.NoError(t, Generate(context.Background(), src, "demo.myshop.no", &buf, i18n.New("en"), checked))
	assert.Equal(t, 2, src.calls)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(overviewSheet)
	require.NoError(t, err)
	// seven header rows precede the variant rows
	assert.Len(t, rows, 7+PageSize+5)
}

func TestGenerateSummaryError(t *testing.T) {
	src := &pagedSource{err: errors.New("boom")}
	err := Generate(context.Background(), src, "demo.myshop.no", &bytes.Buffer{}, i18n.New(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to summarize shop")
	assert.Zero(t, src.calls)
}
