package database

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Shop is a merchant whose catalog is scanned
type Shop struct {
	Domain        string     `json:"domain"`
	AccessToken   string     `json:"-"`
	CountryCode   string     `json:"country_code"`
	Active        bool       `json:"active"`
	LastScannedAt *time.Time `json:"last_scanned_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EvaluationRecord is the persisted evaluation of one variant
type EvaluationRecord struct {
	compliance.VariantKey
	compliance.Evaluation
	// Price is the variant price at the time of evaluation.
	Price     decimal.NullDecimal `json:"price"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// EvaluationFilter narrows ListEvaluations
type EvaluationFilter struct {
	OnlyNonCompliant bool
	OnlyCompliant    bool
	OnlyOnSale       bool
	Limit            int
	Offset           int
}

// ShopSummary aggregates the evaluations of a shop
type ShopSummary struct {
	Shop          string                      `json:"shop"`
	Variants      int                         `json:"variants"`
	OnSale        int                         `json:"onSale"`
	NonCompliant  int                         `json:"nonCompliant"`
	IssuesByRule  map[compliance.RuleType]int `json:"issuesByRule"`
	LastCheckedAt *time.Time                  `json:"lastCheckedAt"`
}
