// Package compliance evaluates product variant price histories against
// marketing-of-sales pricing rules (reference price, sale duration and sale
// frequency). Everything in this package is pure: callers supply the product
// state, the observation history and the current time.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType identifies one regulation
type RuleType string

const (
	RuleReferencePrice RuleType = "referencePrice"
	RuleSaleDuration   RuleType = "saleDuration"
	RuleSaleFrequency  RuleType = "saleFrequency"
)

// RuleTypes lists the supported rule types in evaluation order
var RuleTypes = []RuleType{RuleReferencePrice, RuleSaleDuration, RuleSaleFrequency}

// IsValid reports whether the rule type is one the engine knows how to run
func (r RuleType) IsValid() bool {
	for _, t := range RuleTypes {
		if t == r {
			return true
		}
	}
	return false
}

// Severity distinguishes legal violations from data-quality warnings
type Severity string

const (
	SeverityViolation Severity = "violation"
	SeverityWarning   Severity = "warning"
)

const day = 24 * time.Hour

// VariantKey identifies a product variant within a shop
type VariantKey struct {
	Shop      string `json:"shop"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
}

// String returns the key as shop/product/variant
func (k VariantKey) String() string {
	return k.Shop + "/" + k.ProductID + "/" + k.VariantID
}

// PriceObservation records that a variant had a price and an optional
// reference (compare-at) price at a point in time.
type PriceObservation struct {
	Shop           string              `json:"shop"`
	ProductID      string              `json:"productId"`
	VariantID      string              `json:"variantId"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compareAtPrice"`
	ObservedAt     time.Time           `json:"timestamp"`
	// IsReference pins the regular price before a sale starts.
	IsReference bool `json:"isReference"`
}

// Key returns the variant the observation belongs to
func (o PriceObservation) Key() VariantKey {
	return VariantKey{Shop: o.Shop, ProductID: o.ProductID, VariantID: o.VariantID}
}

// OnSale reports whether the observation shows a discount. A compare-at price
// equal to the price is not a discount.
func (o PriceObservation) OnSale() bool {
	return isDiscounted(o.Price, o.CompareAtPrice)
}

func isDiscounted(price decimal.Decimal, compareAt decimal.NullDecimal) bool {
	return compareAt.Valid && compareAt.Decimal.GreaterThan(price)
}

// ProductState is the current state of a variant as seen by the latest scan
type ProductState struct {
	Shop           string              `json:"shop"`
	ProductID      string              `json:"productId"`
	VariantID      string              `json:"variantId"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compareAtPrice"`
	IsOnSale       bool                `json:"isOnSale"`
	SaleStartDate  *time.Time          `json:"saleStartDate"`
}

// NewProductState builds a product state with IsOnSale derived from the prices
func NewProductState(key VariantKey, price decimal.Decimal, compareAt decimal.NullDecimal) ProductState {
	return ProductState{
		Shop:           key.Shop,
		ProductID:      key.ProductID,
		VariantID:      key.VariantID,
		Price:          price,
		CompareAtPrice: compareAt,
		IsOnSale:       isDiscounted(price, compareAt),
	}
}

// Key returns the variant the state belongs to
func (p ProductState) Key() VariantKey {
	return VariantKey{Shop: p.Shop, ProductID: p.ProductID, VariantID: p.VariantID}
}

// SalePeriod is a maximal run of consecutive on-sale observations
type SalePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Ongoing is set when no regular-price observation closed the period.
	Ongoing bool `json:"ongoing"`
}

// Contains reports whether t falls inside the period (inclusive)
func (p SalePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Issue is a single rule violation
type Issue struct {
	Rule     RuleType `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RuleResult is the verdict of one rule
type RuleResult struct {
	Compliant bool    `json:"compliant"`
	Issues    []Issue `json:"issues"`
}

func compliant() RuleResult {
	return RuleResult{Compliant: true, Issues: []Issue{}}
}

func violation(issue Issue) RuleResult {
	return RuleResult{Compliant: false, Issues: []Issue{issue}}
}

// Evaluation is the aggregated verdict for one variant at one point in time
type Evaluation struct {
	IsCompliant    bool                `json:"isCompliant"`
	IsOnSale       bool                `json:"isOnSale"`
	ReferencePrice decimal.NullDecimal `json:"referencePrice"`
	SaleStartDate  *time.Time          `json:"saleStartDate"`
	LastChecked    time.Time           `json:"lastChecked"`
	Issues         []Issue             `json:"issues"`
}

// HasRule reports whether the evaluation carries an issue from the given rule
func (e Evaluation) HasRule(rule RuleType) bool {
	for _, issue := range e.Issues {
		if issue.Rule == rule {
			return true
		}
	}
	return false
}
