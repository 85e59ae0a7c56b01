package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/i18n"
	"github.com/prisvakt/compliance-service/internal/report"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// ListEvaluationsRequest represents query parameters for listing evaluations
type ListEvaluationsRequest struct {
	Compliant *bool `form:"compliant" json:"compliant"`
	OnSale    bool  `form:"onSale" json:"onSale"`
	Limit     int   `form:"limit" json:"limit" binding:"omitempty,min=1,max=1000" jsonschema:"minimum=1,maximum=1000"`
	Offset    int   `form:"offset" json:"offset" binding:"omitempty,min=0" jsonschema:"minimum=0"`
}

// ListEvaluationsResponse represents the response for listing evaluations
type ListEvaluationsResponse struct {
	Shop        string                      `json:"shop" jsonschema:"required"`
	Evaluations []database.EvaluationRecord `json:"evaluations" jsonschema:"required"`
	Limit       int                         `json:"limit"`
	Offset      int                         `json:"offset"`
}

// HistoryResponse is the observation history of a variant with its detected sale periods
type HistoryResponse struct {
	compliance.VariantKey
	Since        time.Time                     `json:"since"`
	Observations []compliance.PriceObservation `json:"observations" jsonschema:"required"`
	SalePeriods  []compliance.SalePeriod       `json:"salePeriods" jsonschema:"required"`
}

// ListEvaluations returns the latest evaluations of a shop, non-compliant first
// @Summary List evaluations
// @Description Returns the latest compliance evaluation of every variant of a shop
// @Tags compliance
// @Produce json
// @Param shop path string true "Shop domain"
// @Param compliant query bool false "Only compliant (true) or non-compliant (false) variants"
// @Param onSale query bool false "Only variants on sale"
// @Param limit query int false "Number of items to return" default(100) minimum(1) maximum(1000)
// @Param offset query int false "Number of items to skip" default(0) minimum(0)
// @Success 200 {object} ListEvaluationsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /internal/compliance/{shop} [get]
func ListEvaluations(c *gin.Context) {
	var req ListEvaluationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	shop, ok := loadShop(c)
	if !ok {
		return
	}

	filter := database.EvaluationFilter{OnlyOnSale: req.OnSale, Limit: req.Limit, Offset: req.Offset}
	if req.Compliant != nil {
		filter.OnlyCompliant = *req.Compliant
		filter.OnlyNonCompliant = !*req.Compliant
	}

	records, err := deps.Store.ListEvaluations(c.Request.Context(), shop.Domain, filter)
	if err != nil {
		respondError(c, err, "failed to list evaluations")
		return
	}

	c.JSON(http.StatusOK, ListEvaluationsResponse{
		Shop:        shop.Domain,
		Evaluations: records,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
}

// GetEvaluation returns the latest evaluation of one variant
// @Summary Get evaluation
// @Tags compliance
// @Produce json
// @Param shop path string true "Shop domain"
// @Param productId path string true "Product ID"
// @Param variantId path string true "Variant ID"
// @Success 200 {object} database.EvaluationRecord
// @Failure 404 {object} ErrorResponse
// @Router /internal/compliance/{shop}/{productId}/{variantId} [get]
func GetEvaluation(c *gin.Context) {
	record, err := deps.Store.GetEvaluation(c.Request.Context(), variantKey(c))
	if err != nil {
		respondError(c, err, "failed to load evaluation")
		return
	}
	c.JSON(http.StatusOK, record)
}

// RecheckVariant re-evaluates one variant. With async=true the re-check is
// queued and 202 is returned with the task id.
// @Summary Re-check variant
// @Tags compliance
// @Produce json
// @Param shop path string true "Shop domain"
// @Param productId path string true "Product ID"
// @Param variantId path string true "Variant ID"
// @Param async query bool false "Queue the re-check instead of running it"
// @Success 200 {object} database.EvaluationRecord
// @Success 202 {object} ScheduleResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /internal/compliance/{shop}/{productId}/{variantId}/recheck [post]
func RecheckVariant(c *gin.Context) {
	key := variantKey(c)

	if c.Query("async") == "true" || deps.Rechecker == nil {
		result := deps.Queue.ScheduleTask(c.Request.Context(), taskqueue.ScheduleTaskInput{
			TaskType: taskqueue.TaskTypeRecheckVariant,
			Payload:  taskqueue.RecheckVariantPayload{Shop: key.Shop, ProductID: key.ProductID, VariantID: key.VariantID},
			Priority: 20,
			Dedupe:   true,
		})
		respondScheduled(c, result)
		return
	}

	record, err := deps.Rechecker.RecheckVariant(c.Request.Context(), key.Shop, key.ProductID, key.VariantID)
	if err != nil {
		respondError(c, err, "failed to re-check variant")
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetHistory returns the recorded observations of a variant and the sale
// periods detected in them
// @Summary Variant price history
// @Tags compliance
// @Produce json
// @Param shop path string true "Shop domain"
// @Param productId path string true "Product ID"
// @Param variantId path string true "Variant ID"
// @Param days query int false "Days of history" default(90) minimum(1) maximum(730)
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Router /internal/compliance/{shop}/{productId}/{variantId}/history [get]
func GetHistory(c *gin.Context) {
	var req struct {
		Days int `form:"days" binding:"omitempty,min=1,max=730"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Days == 0 {
		req.Days = 90
	}

	key := variantKey(c)
	since := deps.Clock().AddDate(0, 0, -req.Days)
	history, err := deps.Store.ListObservations(c.Request.Context(), key, since)
	if err != nil {
		respondError(c, err, "failed to load history")
		return
	}

	periods, err := compliance.DetectSalePeriods(history)
	if err != nil {
		respondError(c, err, "failed to detect sale periods")
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		VariantKey:   key,
		Since:        since,
		Observations: history,
		SalePeriods:  periods,
	})
}

// GetSummary returns aggregate compliance numbers for a shop
// @Summary Shop summary
// @Tags compliance
// @Produce json
// @Param shop path string true "Shop domain"
// @Success 200 {object} database.ShopSummary
// @Failure 404 {object} ErrorResponse
// @Router /internal/compliance/{shop}/summary [get]
func GetSummary(c *gin.Context) {
	shop, ok := loadShop(c)
	if !ok {
		return
	}

	summary, err := deps.Store.Summary(c.Request.Context(), shop.Domain)
	if err != nil {
		respondError(c, err, "failed to summarize shop")
		return
	}
	c.JSON(http.StatusOK, summary)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetReport streams an XLSX compliance report of a shop
// @Summary Compliance report
// @Tags compliance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param shop path string true "Shop domain"
// @Param lang query string false "Report language" Enums(nb, en)
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /internal/compliance/{shop}/report.xlsx [get]
func GetReport(c *gin.Context) {
	shop, ok := loadShop(c)
	if !ok {
		return
	}
	now := deps.Clock()
	var buf bytes.Buffer
	if err := report.Generate(c.Request.Context(), deps.Store, shop.Domain, &buf, localizer(c), now); err != nil {
		respondError(c, err, "failed to render report")
		return
	}

	filename := fmt.Sprintf("compliance-%s-%s.xlsx", shop.Domain, now.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// localizer picks the language from ?lang= or Accept-Language
func localizer(c *gin.Context) *i18n.Localizer {
	if lang := c.Query("lang"); lang != "" {
		return i18n.New(lang)
	}
	if accept := c.GetHeader("Accept-Language"); accept != "" {
		return i18n.New(accept)
	}
	return i18n.New()
}
