package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
)

var (
	evaluateFile    string
	evaluateProduct string
	evaluateAt      string
	evaluateRules   string
	evaluateOutput  string
	evaluatePeriods bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an exported price history offline",
	Long: `Evaluate price histories read from a file without touching the database.

The file is either a JSON array of observations
  [{"shop":"...","productId":"...","variantId":"...","price":"80","compareAtPrice":"100","timestamp":"2026-09-01T00:00:00Z"}]
or an XLSX workbook whose first sheet has the columns
  shop, productId, variantId, price, compareAtPrice, timestamp, isReference
below a header row. Each variant's latest observation is its current state.`,
	Example: `  compliance evaluate --file history.json
  compliance evaluate --file export.xlsx --product 8123 --at 2026-10-01T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "Observation file (.json or .xlsx)")
	evaluateCmd.Flags().StringVar(&evaluateProduct, "product", "", "Only evaluate variants of this product")
	evaluateCmd.Flags().StringVar(&evaluateAt, "at", "", "Evaluation time (RFC3339, defaults to now)")
	evaluateCmd.Flags().StringVar(&evaluateRules, "rules", "", "Rule set YAML file (defaults to the configured rules)")
	evaluateCmd.Flags().StringVarP(&evaluateOutput, "output", "o", "table", "Output format (table, json)")
	evaluateCmd.Flags().BoolVar(&evaluatePeriods, "periods", false, "Print detected sale periods")
	evaluateCmd.MarkFlagRequired("file")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	observations, err := loadObservations(evaluateFile)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if evaluateAt != "" {
		if now, err = time.Parse(time.RFC3339, evaluateAt); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	rules, err := resolveRules(evaluateRules)
	if err != nil {
		return err
	}

	evaluator := compliance.NewEvaluator(
		compliance.WithClock(func() time.Time { return now }),
		compliance.WithLogger(logger),
	)

	var records []database.EvaluationRecord
	for _, history := range groupByVariant(observations, evaluateProduct) {
		current := history[len(history)-1]
		product := compliance.NewProductState(current.Key(), current.Price, current.CompareAtPrice)

		eval, err := evaluator.Evaluate(product, history, rules)
		if err != nil {
			logger.Error().Err(err).Str("variant", current.Key().String()).Msg("Evaluation failed")
			continue
		}
		records = append(records, database.EvaluationRecord{
			VariantKey: current.Key(),
			Evaluation: eval,
			Price:      decimal.NewNullDecimal(current.Price),
			UpdatedAt:  now,
		})

		if evaluatePeriods && evaluateOutput != "json" {
			periods, _ := compliance.DetectSalePeriods(history)
			for _, p := range periods {
				fmt.Printf("%s sale %s .. %s (ongoing=%t)\n",
					current.Key(), p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339), p.Ongoing)
			}
		}
	}

	if len(records) == 0 {
		return fmt.Errorf("no variants evaluated from %s", evaluateFile)
	}
	return printEvaluations(evaluateOutput, records)
}

// resolveRules picks the rule set: an explicit file, the configured rules, or
// the built-in Norwegian rules
func resolveRules(path string) (compliance.RuleSet, error) {
	if path != "" {
		return compliance.LoadRuleSet(path)
	}
	if cfg != nil {
		return cfg.Compliance.RuleSet()
	}
	return compliance.NorwegianRuleSet(), nil
}

// groupByVariant splits observations per variant, each sorted by time
func groupByVariant(observations []compliance.PriceObservation, productID string) [][]compliance.PriceObservation {
	byKey := make(map[compliance.VariantKey][]compliance.PriceObservation)
	for _, o := range observations {
		if productID != "" && o.ProductID != productID {
			continue
		}
		byKey[o.Key()] = append(byKey[o.Key()], o)
	}

	keys := make([]compliance.VariantKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	groups := make([][]compliance.PriceObservation, 0, len(keys))
	for _, k := range keys {
		history := byKey[k]
		compliance.SortObservations(history)
		groups = append(groups, history)
	}
	return groups
}

func loadObservations(path string) ([]compliance.PriceObservation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var observations []compliance.PriceObservation
		if err := json.Unmarshal(data, &observations); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return observations, nil
	case ".xlsx":
		return loadObservationsXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .json or .xlsx)", filepath.Ext(path))
	}
}

func loadObservationsXLSX(path string) ([]compliance.PriceObservation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var observations []compliance.PriceObservation
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		for len(row) < 7 {
			row = append(row, "")
		}

		price, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid price %q", i+1, row[3])
		}
		var compareAt decimal.NullDecimal
		if v := strings.TrimSpace(row[4]); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid compare-at price %q", i+1, v)
			}
			compareAt = decimal.NewNullDecimal(d)
		}
		observedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(row[5]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp %q", i+1, row[5])
		}

		observations = append(observations, compliance.PriceObservation{
			Shop:           strings.TrimSpace(row[0]),
			ProductID:      strings.TrimSpace(row[1]),
			VariantID:      strings.TrimSpace(row[2]),
			Price:          price,
			CompareAtPrice: compareAt,
			ObservedAt:     observedAt.UTC(),
			IsReference:    strings.EqualFold(strings.TrimSpace(row[6]), "true"),
		})
	}
	return observations, nil
}
