package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/prisvakt/compliance-service/internal/cache"
	"github.com/prisvakt/compliance-service/internal/compliance"
	"github.com/prisvakt/compliance-service/internal/i18n"
)

// PricePoint is one day of the widget price chart
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Price  decimal.Decimal `json:"price"`
	OnSale bool            `json:"onSale"`
}

// WidgetLabels are the localized strings the storefront widget renders
type WidgetLabels struct {
	Status      string `json:"status"`
	LowestPrice string `json:"lowestPrice,omitempty"`
	SaleSince   string `json:"saleSince,omitempty"`
}

// WidgetResponse is the public price-transparency payload of one variant
type WidgetResponse struct {
	compliance.VariantKey
	IsOnSale      bool                `json:"isOnSale"`
	IsCompliant   bool                `json:"isCompliant"`
	Price         decimal.NullDecimal `json:"price"`
	LowestPrice   decimal.NullDecimal `json:"lowestPrice"`
	LookbackDays  int                 `json:"lookbackDays"`
	SaleStartDate *time.Time          `json:"saleStartDate,omitempty"`
	LastChecked   time.Time           `json:"lastChecked"`
	Series        []PricePoint        `json:"series"`
	Language      string              `json:"language"`
	Labels        WidgetLabels        `json:"labels"`
}

// GetWidget returns the storefront widget payload of a variant: the verdict,
// the lowest regular price in the lookback window before the sale and a
// daily price series for the chart.
// @Summary Storefront widget
// @Tags widget
// @Produce json
// @Param shop path string true "Shop domain"
// @Param productId path string true "Product ID"
// @Param variantId path string true "Variant ID"
// @Param lang query string false "Label language" Enums(nb, en)
// @Success 200 {object} WidgetResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /widget/{shop}/{productId}/{variantId} [get]
func GetWidget(c *gin.Context) {
	ctx := c.Request.Context()
	key := variantKey(c)

	var resp WidgetResponse
	hit := false
	if deps.Cache != nil {
		err := deps.Cache.Get(ctx, key, &resp)
		switch {
		case err == nil:
			hit = true
		case !errors.Is(err, cache.ErrMiss):
			deps.Logger.Warn().Err(err).Str("variant", key.String()).Msg("Widget cache read failed")
		}
	}
	deps.Metrics.RecordWidgetCache(hit)

	if !hit {
		built, ok := buildWidget(c, key)
		if !ok {
			return
		}
		resp = *built
		if deps.Cache != nil {
			if err := deps.Cache.Set(ctx, key, resp); err != nil {
				deps.Logger.Warn().Err(err).Str("variant", key.String()).Msg("Widget cache write failed")
			}
		}
	}

	loc := localizer(c)
	resp.Language = loc.Language().String()
	resp.Labels = widgetLabels(loc, &resp)

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, resp)
}

func buildWidget(c *gin.Context, key compliance.VariantKey) (*WidgetResponse, bool) {
	ctx := c.Request.Context()

	shop, err := deps.Store.GetShop(ctx, key.Shop)
	if err != nil {
		respondError(c, err, "failed to load shop")
		return nil, false
	}
	record, err := deps.Store.GetEvaluation(ctx, key)
	if err != nil {
		respondError(c, err, "failed to load evaluation")
		return nil, false
	}

	lookback := deps.Rules(shop.CountryCode).LookbackDays()
	now := deps.Clock()
	anchor := now
	if record.IsOnSale && record.SaleStartDate != nil {
		anchor = *record.SaleStartDate
	}
	since := anchor.AddDate(0, 0, -lookback)
	if chartStart := now.AddDate(0, 0, -lookback); chartStart.Before(since) {
		since = chartStart
	}

	history, err := deps.Store.ListObservations(ctx, key, since)
	if err != nil {
		respondError(c, err, "failed to load history")
		return nil, false
	}

	resp := &WidgetResponse{
		VariantKey:    key,
		IsOnSale:      record.IsOnSale,
		IsCompliant:   record.IsCompliant,
		Price:         record.Price,
		LookbackDays:  lookback,
		SaleStartDate: record.SaleStartDate,
		LastChecked:   record.LastChecked,
		Series:        dailySeries(history, now.AddDate(0, 0, -lookback)),
	}
	if lowest, ok := compliance.LowestPriceBefore(history, anchor, lookback); ok {
		resp.LowestPrice = decimal.NewNullDecimal(lowest)
	}
	return resp, true
}

// dailySeries keeps the last observation of each UTC day from since onward
func dailySeries(history []compliance.PriceObservation, since time.Time) []PricePoint {
	points := make([]PricePoint, 0)
	for _, obs := range history {
		if obs.ObservedAt.Before(since) {
			continue
		}
		day := obs.ObservedAt.UTC().Truncate(24 * time.Hour)
		point := PricePoint{Date: day, Price: obs.Price, OnSale: obs.OnSale()}
		if n := len(points); n > 0 && points[n-1].Date.Equal(day) {
			points[n-1] = point
			continue
		}
		points = append(points, point)
	}
	return points
}

func widgetLabels(loc *i18n.Localizer, resp *WidgetResponse) WidgetLabels {
	labels := WidgetLabels{Status: loc.T(i18n.KeyNotOnSale)}
	if resp.IsOnSale {
		labels.Status = loc.T(i18n.KeyOnSale)
		if resp.SaleStartDate != nil {
			labels.SaleSince = loc.T(i18n.KeySaleSince) + " " + resp.SaleStartDate.Format("02.01.2006")
		}
	}
	if resp.LowestPrice.Valid {
		labels.LowestPrice = loc.LowestPrice(resp.LookbackDays) + ": " + loc.Price(resp.LowestPrice.Decimal)
	}
	return labels
}
