package compliance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CheckReferencePrice verifies that the advertised reference price equals the
// lowest regular price seen in the lookback window before the sale started.
// Missing data (unknown sale start, empty window) is reported as compliant.
func CheckReferencePrice(product ProductState, history []PriceObservation, lookbackDays int, now time.Time) (RuleResult, error) {
	if lookbackDays <= 0 {
		return RuleResult{}, fmt.Errorf("%w: lookback days %d", ErrInvalidParameters, lookbackDays)
	}
	if !product.IsOnSale || !product.CompareAtPrice.Valid {
		return compliant(), nil
	}

	saleStart, ok, err := ResolveSaleStart(product, history, now)
	if err != nil {
		return RuleResult{}, err
	}
	if !ok {
		return compliant(), nil
	}

	lowest, ok := lowestRegularPrice(history, saleStart.Add(-time.Duration(lookbackDays)*day), saleStart)
	if !ok {
		return compliant(), nil
	}

	reference := product.CompareAtPrice.Decimal
	switch reference.Cmp(lowest) {
	case 0:
		return compliant(), nil
	case -1:
		return violation(Issue{
			Rule:     RuleReferencePrice,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("reference price is lower than observed lowest regular price (%s < %s)",
				formatPrice(reference), formatPrice(lowest)),
		}), nil
	default:
		return violation(Issue{
			Rule:     RuleReferencePrice,
			Severity: SeverityViolation,
			Message: fmt.Sprintf("reference price %s is higher than the lowest price %s in the %d days before the sale started",
				formatPrice(reference), formatPrice(lowest), lookbackDays),
		}), nil
	}
}

// LowestPriceBefore returns the lowest regular price in the lookback window
// ending at saleStart. Used by the widget to display the legal reference.
func LowestPriceBefore(history []PriceObservation, saleStart time.Time, lookbackDays int) (decimal.Decimal, bool) {
	return lowestRegularPrice(history, saleStart.Add(-time.Duration(lookbackDays)*day), saleStart)
}

// lowestRegularPrice scans [from, to) for the minimum price, ignoring every
// observation that was itself on sale.
func lowestRegularPrice(history []PriceObservation, from, to time.Time) (decimal.Decimal, bool) {
	var lowest decimal.Decimal
	found := false
	for _, obs := range history {
		if obs.ObservedAt.Before(from) || !obs.ObservedAt.Before(to) {
			continue
		}
		if obs.OnSale() {
			continue
		}
		if !found || obs.Price.LessThan(lowest) {
			lowest = obs.Price
			found = true
		}
	}
	return lowest, found
}

// CheckSaleDuration flags sales running longer than maxDays whole days
func CheckSaleDuration(product ProductState, history []PriceObservation, maxDays int, now time.Time) (RuleResult, error) {
	if maxDays <= 0 {
		return RuleResult{}, fmt.Errorf("%w: max sale days %d", ErrInvalidParameters, maxDays)
	}
	if !product.IsOnSale {
		return compliant(), nil
	}

	saleStart, ok, err := ResolveSaleStart(product, history, now)
	if err != nil {
		return RuleResult{}, err
	}
	if !ok {
		return compliant(), nil
	}

	durationDays := daysBetween(saleStart, now)
	if durationDays > maxDays {
		return violation(Issue{
			Rule:     RuleSaleDuration,
			Severity: SeverityViolation,
			Message:  fmt.Sprintf("sale has run for %d days, exceeding the maximum of %d days", durationDays, maxDays),
		}), nil
	}
	return compliant(), nil
}

// CheckSaleFrequency requires at least minGapDays between consecutive sale
// periods found in the last windowDays of history. Only the first violating
// gap is reported. A windowDays of zero uses the whole history.
func CheckSaleFrequency(product ProductState, history []PriceObservation, minGapDays, windowDays int, now time.Time) (RuleResult, error) {
	if minGapDays <= 0 || windowDays < 0 {
		return RuleResult{}, fmt.Errorf("%w: min gap days %d, window days %d", ErrInvalidParameters, minGapDays, windowDays)
	}

	window := history
	if windowDays > 0 {
		window = observationsSince(history, now.Add(-time.Duration(windowDays)*day))
	}

	periods, err := DetectSalePeriods(window)
	if err != nil {
		return RuleResult{}, err
	}
	if len(periods) < 2 {
		return compliant(), nil
	}

	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Start.Before(periods[j].Start)
	})

	for i := 1; i < len(periods); i++ {
		gapDays := daysBetween(periods[i-1].End, periods[i].Start)
		if gapDays < minGapDays {
			return violation(Issue{
				Rule:     RuleSaleFrequency,
				Severity: SeverityViolation,
				Message: fmt.Sprintf("only %d days between sales ending %s and starting %s, minimum required is %d days",
					gapDays, periods[i-1].End.Format("2006-01-02"), periods[i].Start.Format("2006-01-02"), minGapDays),
			}), nil
		}
	}
	return compliant(), nil
}

// observationsSince returns the suffix of an ascending history at or after t
func observationsSince(history []PriceObservation, t time.Time) []PriceObservation {
	i := sort.Search(len(history), func(i int) bool {
		return !history[i].ObservedAt.Before(t)
	})
	return history[i:]
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}
