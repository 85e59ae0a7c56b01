package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// ScheduleResponse is returned when work is queued
type ScheduleResponse struct {
	TaskID string `json:"taskId,omitempty"`
	Status string `json:"status" jsonschema:"enum=queued,enum=already_queued"`
}

// UpsertShopRequest registers or updates a shop
type UpsertShopRequest struct {
	AccessToken string `json:"accessToken" binding:"required" jsonschema:"required"`
	CountryCode string `json:"countryCode" binding:"omitempty,len=2" jsonschema:"minLength=2,maxLength=2"`
	Active      *bool  `json:"active"`
}

func respondScheduled(c *gin.Context, result taskqueue.ScheduleTaskResult) {
	if result.Err != nil {
		respondError(c, result.Err, "failed to schedule task")
		return
	}
	if result.Duplicate {
		c.JSON(http.StatusOK, ScheduleResponse{Status: "already_queued"})
		return
	}
	c.JSON(http.StatusAccepted, ScheduleResponse{TaskID: result.ID, Status: "queued"})
}

// EnqueueScan queues a full scan of a shop
// @Summary Enqueue shop scan
// @Tags scans
// @Produce json
// @Param shop path string true "Shop domain"
// @Success 202 {object} ScheduleResponse
// @Success 200 {object} ScheduleResponse "A scan is already queued"
// @Failure 404 {object} ErrorResponse
// @Router /internal/scans/{shop} [post]
func EnqueueScan(c *gin.Context) {
	shop, ok := loadShop(c)
	if !ok {
		return
	}
	if !shop.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop is not active"})
		return
	}

	result := deps.Queue.ScheduleTask(c.Request.Context(), taskqueue.ScheduleTaskInput{
		TaskType: taskqueue.TaskTypeScanShop,
		Payload:  taskqueue.ScanShopPayload{Shop: shop.Domain},
		Priority: 10,
		Dedupe:   true,
	})
	respondScheduled(c, result)
}

// GetTask returns a queued task
// @Summary Get task
// @Tags scans
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} taskqueue.Task
// @Failure 404 {object} ErrorResponse
// @Router /internal/tasks/{taskId} [get]
func GetTask(c *gin.Context) {
	task, err := deps.Queue.GetTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		respondError(c, err, "failed to load task")
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpsertShop registers a shop and its access token
// @Summary Register shop
// @Tags shops
// @Accept json
// @Produce json
// @Param shop path string true "Shop domain"
// @Param request body UpsertShopRequest true "Shop settings"
// @Success 200 {object} database.Shop
// @Failure 400 {object} ErrorResponse
// @Router /internal/shops/{shop} [put]
func UpsertShop(c *gin.Context) {
	var req UpsertShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	shop, err := deps.Store.UpsertShop(c.Request.Context(), database.Shop{
		Domain:      strings.ToLower(c.Param("shop")),
		AccessToken: req.AccessToken,
		CountryCode: strings.ToUpper(req.CountryCode),
		Active:      active,
	})
	if err != nil {
		respondError(c, err, "failed to save shop")
		return
	}
	c.JSON(http.StatusOK, shop)
}
