// Package handlers implements the gin HTTP API: compliance evaluations,
// re-checks, history, reports, scan scheduling and the storefront widget.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/metrics"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// Store is the persistence the handlers read from
type Store interface {
	GetShop(ctx context.Context, domain string) (*database.Shop, error)
	UpsertShop(ctx context.Context, shop database.Shop) (*database.Shop, error)
	GetEvaluation(ctx context.Context, key compliance.VariantKey) (*database.EvaluationRecord, error)
	ListEvaluations(ctx context.Context, shop string, filter database.EvaluationFilter) ([]database.EvaluationRecord, error)
	Summary(ctx context.Context, shop string) (*database.ShopSummary, error)
	ListObservations(ctx context.Context, key compliance.VariantKey, since time.Time) ([]compliance.PriceObservation, error)
}

// Rechecker re-evaluates a single variant synchronously
type Rechecker interface {
	RecheckVariant(ctx context.Context, domain, productID, variantID string) (*database.EvaluationRecord, error)
}

// TaskQueue schedules and reads background tasks
type TaskQueue interface {
	ScheduleTask(ctx context.Context, input taskqueue.ScheduleTaskInput) taskqueue.ScheduleTaskResult
	GetTask(ctx context.Context, taskID string) (*taskqueue.Task, error)
}

// WidgetCache caches widget payloads
type WidgetCache interface {
	Get(ctx context.Context, key compliance.VariantKey, out any) error
	Set(ctx context.Context, key compliance.VariantKey, payload any) error
}

// Dependencies are the services the handlers use. Cache and Rechecker may
// be nil.
type Dependencies struct {
	Store     Store
	Rechecker Rechecker
	Queue     TaskQueue
	Cache     WidgetCache
	// Rules returns the rule set for a shop's country.
	Rules   func(countryCode string) compliance.RuleSet
	Metrics *metrics.Recorder
	Logger  *zerolog.Logger
	Clock   func() time.Time
	// RedisPing is nil when Redis is not configured.
	RedisPing func(ctx context.Context) error
}

var deps Dependencies

// Init sets the dependencies used by every handler
func Init(d Dependencies) {
	if d.Rules == nil {
		d.Rules = func(string) compliance.RuleSet { return compliance.NorwegianRuleSet() }
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewRecorder()
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	deps = d
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// variantKey reads the shop, productId and variantId path parameters
func variantKey(c *gin.Context) compliance.VariantKey {
	return compliance.VariantKey{
		Shop:      strings.ToLower(c.Param("shop")),
		ProductID: c.Param("productId"),
		VariantID: c.Param("variantId"),
	}
}

// loadShop resolves the :shop parameter or writes a 404
func loadShop(c *gin.Context) (*database.Shop, bool) {
	shop, err := deps.Store.GetShop(c.Request.Context(), c.Param("shop"))
	if err != nil {
		respondError(c, err, "failed to load shop")
		return nil, false
	}
	return shop, true
}

// respondError maps err to a status code and writes it
func respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, taskqueue.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, compliance.ErrInvalidPrice),
		errors.Is(err, compliance.ErrUnsortedObservations),
		errors.Is(err, compliance.ErrInvalidParameters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		deps.Logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
