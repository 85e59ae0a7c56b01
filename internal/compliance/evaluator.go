package compliance

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ruleInput is what every rule check receives
type ruleInput struct {
	product ProductState
	history []PriceObservation
	now     time.Time
}

type ruleCheck func(in ruleInput, p resolvedParameters) (RuleResult, error)

// registry maps each rule type to its check. The set is closed: adding a
// jurisdiction means adding a RuleSet, not a new check.
var registry = map[RuleType]ruleCheck{
	RuleReferencePrice: func(in ruleInput, p resolvedParameters) (RuleResult, error) {
		return CheckReferencePrice(in.product, in.history, p.lookbackDays, in.now)
	},
	RuleSaleDuration: func(in ruleInput, p resolvedParameters) (RuleResult, error) {
		return CheckSaleDuration(in.product, in.history, p.maxSaleDays, in.now)
	},
	RuleSaleFrequency: func(in ruleInput, p resolvedParameters) (RuleResult, error) {
		return CheckSaleFrequency(in.product, in.history, p.minGapDays, p.historyWindowDays, in.now)
	},
}

// SkipRecorder is notified when a rule definition cannot run
type SkipRecorder interface {
	RecordSkippedRule(rule string)
}

// Evaluator runs a rule set against a variant's history.
// It holds no per-evaluation state and is safe for concurrent use.
type Evaluator struct {
	clock   func() time.Time
	logger  *zerolog.Logger
	skipped SkipRecorder
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithClock overrides the time source
func WithClock(clock func() time.Time) EvaluatorOption {
	return func(e *Evaluator) {
		e.clock = clock
	}
}

// WithLogger sets the logger used for skipped rules
func WithLogger(logger *zerolog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		l := logger.With().Str("component", "evaluator").Logger()
		e.logger = &l
	}
}

// WithSkipRecorder sets a recorder for skipped rules
func WithSkipRecorder(r SkipRecorder) EvaluatorOption {
	return func(e *Evaluator) {
		e.skipped = r
	}
}

// NewEvaluator creates an evaluator using the UTC wall clock by default
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	nop := zerolog.Nop()
	e := &Evaluator{
		clock:  func() time.Time { return time.Now().UTC() },
		logger: &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every enabled rule of the set and aggregates all issues.
// An empty history yields a compliant evaluation regardless of the product.
// Invalid input (non-positive price, unsorted history) is returned as an
// error and no evaluation is produced. A rule that cannot run contributes no
// issue and does not stop the others.
func (e *Evaluator) Evaluate(product ProductState, history []PriceObservation, rules RuleSet) (Evaluation, error) {
	now := e.clock()

	eval := Evaluation{
		IsCompliant:   true,
		IsOnSale:      product.IsOnSale,
		SaleStartDate: product.SaleStartDate,
		LastChecked:   now,
		Issues:        []Issue{},
	}
	if product.IsOnSale {
		eval.ReferencePrice = product.CompareAtPrice
	}

	if len(history) == 0 {
		if !product.IsOnSale {
			eval.SaleStartDate = nil
		}
		return eval, nil
	}

	if !product.Price.IsPositive() {
		return Evaluation{}, fmt.Errorf("%w: product price %s", ErrInvalidPrice, product.Price.String())
	}
	if err := ValidateHistory(history); err != nil {
		return Evaluation{}, err
	}

	if product.IsOnSale {
		if start, ok, err := ResolveSaleStart(product, history, now); err == nil && ok {
			eval.SaleStartDate = &start
		}
	} else {
		eval.SaleStartDate = nil
	}

	in := ruleInput{product: product, history: history, now: now}
	defaults := rules.defaults()
	for _, def := range rules.Rules {
		if def.Disabled {
			continue
		}
		result, err := e.runRule(def, defaults, in)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Str("rule", string(def.RuleType)).
				Str("country", def.CountryCode).
				Str("variant", product.Key().String()).
				Msg("Skipping rule")
			if e.skipped != nil {
				e.skipped.RecordSkippedRule(string(def.RuleType))
			}
			continue
		}
		eval.Issues = append(eval.Issues, result.Issues...)
	}

	eval.IsCompliant = len(eval.Issues) == 0
	return eval, nil
}

func (e *Evaluator) runRule(def RuleDefinition, defaults Defaults, in ruleInput) (RuleResult, error) {
	if err := def.Validate(); err != nil {
		return RuleResult{}, err
	}
	check, ok := registry[def.RuleType]
	if !ok {
		return RuleResult{}, fmt.Errorf("%w: %q", ErrUnknownRule, def.RuleType)
	}
	return check(in, def.Parameters.resolve(defaults))
}
