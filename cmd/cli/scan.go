package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

var (
	scanQueue     bool
	scanPriority  int
	recheckOutput string
)

var scanCmd = &cobra.Command{
	Use:   "scan <shop>",
	Short: "Scan a shop and re-evaluate every variant",
	Long: `Fetch the current price of every variant of a registered shop, append one
observation per variant and re-evaluate its compliance.

Use --queue to enqueue the scan for the workers instead of running it here.`,
	Example: `  compliance scan demo.myshop.no
  compliance scan demo.myshop.no --queue`,
	Args:        cobra.ExactArgs(1),
	Annotations: serviceAnnotations(),
	RunE:        runScan,
}

var recheckCmd = &cobra.Command{
	Use:         "recheck <shop> <productId> <variantId>",
	Short:       "Re-check one variant now",
	Example:     `  compliance recheck demo.myshop.no 8123 44120`,
	Args:        cobra.ExactArgs(3),
	Annotations: serviceAnnotations(),
	RunE:        runRecheck,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(recheckCmd)

	scanCmd.Flags().BoolVar(&scanQueue, "queue", false, "Enqueue the scan instead of running it")
	scanCmd.Flags().IntVar(&scanPriority, "priority", 10, "Queue priority when --queue is set")
	recheckCmd.Flags().StringVarP(&recheckOutput, "output", "o", "table", "Output format (table, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	shop := strings.ToLower(args[0])

	if scanQueue {
		payload, err := json.Marshal(taskqueue.ScanShopPayload{Shop: shop})
		if err != nil {
			return err
		}
		res := svc.Queue.ScheduleTask(ctx, taskqueue.ScheduleTaskInput{
			TaskType: taskqueue.TaskTypeScanShop,
			Payload:  payload,
			Priority: scanPriority,
			Dedupe:   true,
		})
		if res.Err != nil {
			return fmt.Errorf("failed to enqueue scan: %w", res.Err)
		}
		if res.Duplicate {
			fmt.Printf("Scan of %s already queued (task %s)\n", shop, res.ID)
			return nil
		}
		fmt.Printf("Scan of %s queued (task %s)\n", shop, res.ID)
		return nil
	}

	logger.Info().Str("shop", shop).Msg("Starting scan")
	result, err := svc.Scanner.ScanShop(ctx, shop)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHOP\tVARIANTS\tEVALUATED\tNON-COMPLIANT\tCHANGED\tFAILED\tDURATION")
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
		result.Shop, result.Variants, result.Evaluated, result.NonCompliant,
		result.Changed, result.Failed, result.Duration.Round(time.Millisecond))
	w.Flush()

	if result.Failed > 0 {
		return fmt.Errorf("%d variant(s) could not be evaluated", result.Failed)
	}
	return nil
}

func runRecheck(cmd *cobra.Command, args []string) error {
	record, err := svc.Scanner.RecheckVariant(cmd.Context(), strings.ToLower(args[0]), args[1], args[2])
	if err != nil {
		return fmt.Errorf("recheck failed: %w", err)
	}
	return printEvaluations(recheckOutput, []database.EvaluationRecord{*record})
}

// printEvaluations writes records as a table or as indented JSON
func printEvaluations(format string, records []database.EvaluationRecord) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tVARIANT\tPRICE\tREFERENCE\tON SALE\tSALE SINCE\tCOMPLIANT\tISSUES")
	for _, r := range records {
		price, reference, since := "-", "-", "-"
		if r.Price.Valid {
			price = r.Price.Decimal.StringFixed(2)
		}
		if r.ReferencePrice.Valid {
			reference = r.ReferencePrice.Decimal.StringFixed(2)
		}
		if r.SaleStartDate != nil {
			since = r.SaleStartDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%t\t%d\n",
			r.ProductID, r.VariantID, price, reference, r.IsOnSale, since, r.IsCompliant, len(r.Issues))
	}
	w.Flush()

	for _, r := range records {
		for _, issue := range r.Issues {
			fmt.Printf("  %s/%s [%s %s] %s\n", r.ProductID, r.VariantID, issue.Rule, issue.Severity, issue.Message)
		}
	}
	return nil
}
