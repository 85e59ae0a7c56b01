package compliance

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Norwegian defaults for marketing-of-sales rules
const (
	DefaultLookbackDays      = 30
	DefaultMaxSaleDays       = 110
	DefaultMinGapDays        = 28
	DefaultHistoryWindowDays = 180
	CountryNorway            = "NO"
)

// RuleParameters holds the numeric thresholds of a rule. Absent values fall
// back to the Defaults of the rule set the definition belongs to.
type RuleParameters struct {
	MinLookbackDays   *int `json:"minLookbackDays,omitempty" yaml:"min_lookback_days,omitempty"`
	MaxSaleDays       *int `json:"maxSaleDays,omitempty" yaml:"max_sale_days,omitempty"`
	MinGapDays        *int `json:"minGapDays,omitempty" yaml:"min_gap_days,omitempty"`
	HistoryWindowDays *int `json:"historyWindowDays,omitempty" yaml:"history_window_days,omitempty"`
}

// RuleDefinition configures one rule for a jurisdiction
type RuleDefinition struct {
	CountryCode string         `json:"countryCode" yaml:"country_code,omitempty"`
	RuleType    RuleType       `json:"ruleType" yaml:"rule_type"`
	Disabled    bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Parameters  RuleParameters `json:"parameters" yaml:"parameters"`
}

// RuleSet is the list of rules applied to every variant of a shop
type RuleSet struct {
	CountryCode string           `json:"countryCode" yaml:"country_code"`
	Name        string           `json:"name" yaml:"name"`
	Rules       []RuleDefinition `json:"rules" yaml:"rules"`
	// Defaults fill parameters a definition leaves out. Zero fields use the
	// Norwegian defaults.
	Defaults Defaults `json:"-" yaml:"-"`
}

// Defaults are the thresholds used when a definition omits a parameter
type Defaults struct {
	LookbackDays      int
	MaxSaleDays       int
	MinGapDays        int
	HistoryWindowDays int
}

// NorwegianDefaults returns the default Norwegian thresholds
func NorwegianDefaults() Defaults {
	return Defaults{
		LookbackDays:      DefaultLookbackDays,
		MaxSaleDays:       DefaultMaxSaleDays,
		MinGapDays:        DefaultMinGapDays,
		HistoryWindowDays: DefaultHistoryWindowDays,
	}
}

// NewRuleSet builds a rule set with all three rules parameterized by d
func NewRuleSet(countryCode string, d Defaults) RuleSet {
	return RuleSet{
		CountryCode: countryCode,
		Name:        "marketing-of-sales",
		Defaults:    d,
		Rules: []RuleDefinition{
			{CountryCode: countryCode, RuleType: RuleReferencePrice, Parameters: RuleParameters{MinLookbackDays: intPtr(d.LookbackDays)}},
			{CountryCode: countryCode, RuleType: RuleSaleDuration, Parameters: RuleParameters{MaxSaleDays: intPtr(d.MaxSaleDays)}},
			{CountryCode: countryCode, RuleType: RuleSaleFrequency, Parameters: RuleParameters{
				MinGapDays:        intPtr(d.MinGapDays),
				HistoryWindowDays: intPtr(d.HistoryWindowDays),
			}},
		},
	}
}

// NorwegianRuleSet returns the built-in Norwegian rule set
func NorwegianRuleSet() RuleSet {
	return NewRuleSet(CountryNorway, NorwegianDefaults())
}

// LoadRuleSet reads a rule set from a YAML file. Definitions are not
// validated here: a malformed definition is skipped at evaluation time so it
// cannot blank out the other rules.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rule set: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes a YAML rule set document
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule set: %w", err)
	}
	rs.CountryCode = strings.ToUpper(strings.TrimSpace(rs.CountryCode))
	for i := range rs.Rules {
		if rs.Rules[i].CountryCode == "" {
			rs.Rules[i].CountryCode = rs.CountryCode
		}
	}
	return rs, nil
}

// Validate returns the first problem found in the rule set definitions
func (rs RuleSet) Validate() error {
	for _, def := range rs.Rules {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("rule %q: %w", def.RuleType, err)
		}
	}
	return nil
}

// Validate checks that the definition names a known rule with usable parameters
func (d RuleDefinition) Validate() error {
	if !d.RuleType.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownRule, d.RuleType)
	}
	for _, p := range []struct {
		name  string
		value *int
	}{
		{"min_lookback_days", d.Parameters.MinLookbackDays},
		{"max_sale_days", d.Parameters.MaxSaleDays},
		{"min_gap_days", d.Parameters.MinGapDays},
		{"history_window_days", d.Parameters.HistoryWindowDays},
	} {
		if p.value != nil && *p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidParameters, p.name, *p.value)
		}
	}
	return nil
}

// RequiredHistory is how far back observations must be loaded for every
// enabled rule in the set to see the data it needs.
func (rs RuleSet) RequiredHistory() time.Duration {
	d := rs.defaults()
	lookback, maxSale, window := 0, 0, 0
	for _, def := range rs.Rules {
		if def.Disabled {
			continue
		}
		p := def.Parameters.resolve(d)
		switch def.RuleType {
		case RuleReferencePrice:
			lookback = max(lookback, p.lookbackDays)
		case RuleSaleDuration:
			maxSale = max(maxSale, p.maxSaleDays)
		case RuleSaleFrequency:
			window = max(window, p.historyWindowDays)
		}
	}
	if lookback == 0 {
		lookback = d.LookbackDays
	}
	if maxSale == 0 {
		maxSale = d.MaxSaleDays
	}
	// a sale may legally run maxSale days, and its reference window lies before that
	return time.Duration(max(lookback+maxSale, window)) * day
}

// LookbackDays returns the reference price lookback of the first enabled
// reference price rule, or the rule set default
func (rs RuleSet) LookbackDays() int {
	d := rs.defaults()
	for _, def := range rs.Rules {
		if def.RuleType == RuleReferencePrice && !def.Disabled {
			if v := paramOr(def.Parameters.MinLookbackDays, d.LookbackDays); v > 0 {
				return v
			}
		}
	}
	return d.LookbackDays
}

// defaults returns the rule set Defaults with unset fields filled from the
// Norwegian defaults
func (rs RuleSet) defaults() Defaults {
	d, no := rs.Defaults, NorwegianDefaults()
	if d.LookbackDays <= 0 {
		d.LookbackDays = no.LookbackDays
	}
	if d.MaxSaleDays <= 0 {
		d.MaxSaleDays = no.MaxSaleDays
	}
	if d.MinGapDays <= 0 {
		d.MinGapDays = no.MinGapDays
	}
	if d.HistoryWindowDays <= 0 {
		d.HistoryWindowDays = no.HistoryWindowDays
	}
	return d
}

// resolvedParameters are RuleParameters with every absent value filled in
type resolvedParameters struct {
	lookbackDays      int
	maxSaleDays       int
	minGapDays        int
	historyWindowDays int
}

func (p RuleParameters) resolve(d Defaults) resolvedParameters {
	return resolvedParameters{
		lookbackDays:      paramOr(p.MinLookbackDays, d.LookbackDays),
		maxSaleDays:       paramOr(p.MaxSaleDays, d.MaxSaleDays),
		minGapDays:        paramOr(p.MinGapDays, d.MinGapDays),
		historyWindowDays: paramOr(p.HistoryWindowDays, d.HistoryWindowDays),
	}
}

func paramOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func intPtr(v int) *int {
	return &v
}
