// Package report renders shop compliance reports as XLSX workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/i18n"
)

const (
	overviewSheet = "Overview"
	issuesSheet   = "Issues"
	dateLayout    = "2006-01-02"
)

// PageSize is how many evaluations Generate reads per query
const PageSize = 1000

// Source reads the evaluations of a shop
type Source interface {
	Summary(ctx context.Context, shop string) (*database.ShopSummary, error)
	ListEvaluations(ctx context.Context, shop string, filter database.EvaluationFilter) ([]database.EvaluationRecord, error)
}

// Generate loads every evaluation of shop from src and writes the report to w
func Generate(ctx context.Context, src Source, shop string, w io.Writer, loc *i18n.Localizer, generatedAt time.Time) error {
	summary, err := src.Summary(ctx, shop)
	if err != nil {
		return fmt.Errorf("failed to summarize shop: %w", err)
	}

	var records []database.EvaluationRecord
	for offset := 0; ; offset += PageSize {
		page, err := src.ListEvaluations(ctx, shop, database.EvaluationFilter{Limit: PageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to list evaluations: %w", err)
		}
		records = append(records, page...)
		if len(page) < PageSize {
			break
		}
	}

	return Write(w, summary, records, loc, generatedAt)
}

// Write renders the summary and evaluations of a shop to w
func Write(w io.Writer, summary *database.ShopSummary, evaluations []database.EvaluationRecord, loc *i18n.Localizer, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("failed to create issues sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeOverview(f, header, summary, evaluations, loc, generatedAt); err != nil {
		return err
	}
	if err := writeIssues(f, header, evaluations, loc); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, header int, summary *database.ShopSummary, evaluations []database.EvaluationRecord, loc *i18n.Localizer, generatedAt time.Time) error {
	rows := [][]any{
		{"Shop", summary.Shop},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
		{"Variants", summary.Variants},
		{loc.T(i18n.KeyOnSale), summary.OnSale},
		{loc.T(i18n.KeyNonCompliant), summary.NonCompliant},
		{},
		{
			loc.T(i18n.KeyProduct), loc.T(i18n.KeyVariant), loc.T(i18n.KeyPrice), loc.T(i18n.KeyReferencePrice),
			loc.T(i18n.KeyOnSale), loc.T(i18n.KeySaleSince), loc.T(i18n.KeyCompliant), loc.T(i18n.KeyIssues),
			loc.T(i18n.KeyLastChecked),
		},
	}
	tableHeader := len(rows)

	for _, e := range evaluations {
		var price, reference any
		if e.Price.Valid {
			price = e.Price.Decimal.InexactFloat64()
		}
		if e.ReferencePrice.Valid {
			reference = e.ReferencePrice.Decimal.InexactFloat64()
		}
		saleStart := ""
		if e.SaleStartDate != nil {
			saleStart = e.SaleStartDate.Format(dateLayout)
		}
		rows = append(rows, []any{
			e.ProductID, e.VariantID, price, reference,
			yesNo(e.IsOnSale), saleStart, loc.Verdict(e.IsCompliant), len(e.Issues),
			e.LastChecked.Format(time.RFC3339),
		})
	}

	if err := writeRows(f, overviewSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(overviewSheet, "A1", fmt.Sprintf("A%d", 5), header); err != nil {
		return err
	}
	return f.SetCellStyle(overviewSheet, fmt.Sprintf("A%d", tableHeader), fmt.Sprintf("I%d", tableHeader), header)
}

func writeIssues(f *excelize.File, header int, evaluations []database.EvaluationRecord, loc *i18n.Localizer) error {
	rows := [][]any{{
		loc.T(i18n.KeyProduct), loc.T(i18n.KeyVariant), loc.T(i18n.KeyRule), loc.T(i18n.KeySeverity), loc.T(i18n.KeyMessage),
	}}
	for _, e := range evaluations {
		for _, issue := range e.Issues {
			rows = append(rows, []any{
				e.ProductID, e.VariantID, loc.T(string(issue.Rule)), loc.T(string(issue.Severity)), issue.Message,
			})
		}
	}

	if err := writeRows(f, issuesSheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(issuesSheet, "E", "E", 90); err != nil {
		return err
	}
	return f.SetCellStyle(issuesSheet, "A1", "E1", header)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", strings.ToLower(sheet), i+1, err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "x"
	}
	return ""
}
