package compliance

import (
	"fmt"
	"sort"
	"time"
)

// DetectSalePeriods segments an ascending observation sequence into sale
// periods in a single pass. The input is not sorted here; out-of-order input
// is rejected with ErrUnsortedObservations instead of being mis-segmented.
func DetectSalePeriods(observations []PriceObservation) ([]SalePeriod, error) {
	periods := make([]SalePeriod, 0)
	var current *SalePeriod

	for i, obs := range observations {
		if i > 0 && obs.ObservedAt.Before(observations[i-1].ObservedAt) {
			return nil, fmt.Errorf("%w: observation %d at %s precedes %s",
				ErrUnsortedObservations, i, obs.ObservedAt.Format(time.RFC3339), observations[i-1].ObservedAt.Format(time.RFC3339))
		}

		onSale := obs.OnSale()
		switch {
		case current == nil && onSale:
			current = &SalePeriod{Start: obs.ObservedAt, End: obs.ObservedAt}
		case current != nil && onSale:
			current.End = obs.ObservedAt
		case current != nil && !onSale:
			periods = append(periods, *current)
			current = nil
		}
	}

	if current != nil {
		current.Ongoing = true
		periods = append(periods, *current)
	}

	return periods, nil
}

// ValidateHistory checks the boundary preconditions of an observation history:
// every price positive and timestamps non-decreasing.
func ValidateHistory(observations []PriceObservation) error {
	for i, obs := range observations {
		if !obs.Price.IsPositive() {
			return fmt.Errorf("%w: observation %d has price %s", ErrInvalidPrice, i, obs.Price.String())
		}
		if i > 0 && obs.ObservedAt.Before(observations[i-1].ObservedAt) {
			return fmt.Errorf("%w: observation %d", ErrUnsortedObservations, i)
		}
	}
	return nil
}

// SortObservations orders observations by timestamp ascending in place.
// Callers loading history from unordered sources use it before evaluation.
func SortObservations(observations []PriceObservation) {
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})
}

// ResolveSaleStart determines when the current sale began. An explicit
// product.SaleStartDate wins; otherwise the ongoing period that started at or
// before now is used, falling back to the most recent period that started at
// or before now. ok is false when no start can be determined.
func ResolveSaleStart(product ProductState, history []PriceObservation, now time.Time) (start time.Time, ok bool, err error) {
	if product.SaleStartDate != nil {
		return *product.SaleStartDate, true, nil
	}

	periods, err := DetectSalePeriods(history)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(periods) == 0 {
		return time.Time{}, false, nil
	}

	latest := -1
	for i := len(periods) - 1; i >= 0; i-- {
		p := periods[i]
		if p.Start.After(now) {
			continue
		}
		if p.Contains(now) || p.Ongoing {
			return p.Start, true, nil
		}
		if latest < 0 {
			latest = i
		}
	}

	if latest < 0 {
		return time.Time{}, false, nil
	}
	return periods[latest].Start, true, nil
}

// daysBetween returns the whole number of days from a to b, floored
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
