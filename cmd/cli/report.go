package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/i18n"
	"github.com/prisvakt/compliance-service/internal/report"
)

var (
	reportOut          string
	reportLang         string
	reportNonCompliant bool
)

var reportCmd = &cobra.Command{
	Use:   "report <shop>",
	Short: "Write the compliance report of a shop",
	Long: `Write an XLSX report with the latest evaluation of every variant of a shop.

With --non-compliant the non-compliant variants are printed to stdout instead.`,
	Example: `  compliance report demo.myshop.no --out report.xlsx --lang en
  compliance report demo.myshop.no --non-compliant`,
	Args:        cobra.ExactArgs(1),
	Annotations: serviceAnnotations(),
	RunE:        runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportOut, "out", "", "Output file (defaults to compliance-<shop>-<date>.xlsx)")
	reportCmd.Flags().StringVar(&reportLang, "lang", "nb", "Report language (nb, en)")
	reportCmd.Flags().BoolVar(&reportNonCompliant, "non-compliant", false, "Print non-compliant variants instead of writing a file")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	shop := strings.ToLower(args[0])

	if _, err := svc.Store.GetShop(ctx, shop); err != nil {
		return fmt.Errorf("unknown shop %s: %w", shop, err)
	}

	if reportNonCompliant {
		records, err := svc.Store.ListEvaluations(ctx, shop, database.EvaluationFilter{OnlyNonCompliant: true, Limit: report.PageSize})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("All evaluated variants of %s are compliant\n", shop)
			return nil
		}
		return printEvaluations("table", records)
	}

	now := time.Now().UTC()
	out := reportOut
	if out == "" {
		out = fmt.Sprintf("compliance-%s-%s.xlsx", shop, now.Format("2006-01-02"))
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	if err := report.Generate(ctx, svc.Store, shop, f, i18n.New(reportLang), now); err != nil {
		return err
	}

	logger.Info().Str("shop", shop).Str("file", out).Msg("Report written")
	return nil
}
