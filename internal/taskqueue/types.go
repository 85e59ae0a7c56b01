package taskqueue

import (
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

const (
	TaskTypeScanShop       = "scan_shop"
	TaskTypeRecheckVariant = "recheck_variant"
	TaskTypeCleanup        = "cleanup"
)

// TaskTypes lists every task type the service schedules
var TaskTypes = []string{TaskTypeScanShop, TaskTypeRecheckVariant, TaskTypeCleanup}

type Task struct {
	ID           string          `json:"id"`
	TaskType     string          `json:"taskType"`
	Payload      json.RawMessage `json:"payload"`
	Priority     int             `json:"priority"`
	Status       TaskStatus      `json:"status"`
	ScheduledFor time.Time       `json:"scheduledFor"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	FailedAt     *time.Time      `json:"failedAt,omitempty"`
	WorkerID     *string         `json:"workerId,omitempty"`
	RetryCount   int             `json:"retryCount"`
	MaxRetries   int             `json:"maxRetries"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Result       json.RawMessage `json:"result,omitempty" swaggertype:"object"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type ClaimedTask struct {
	ID         string
	TaskType   string
	Payload    json.RawMessage
	RetryCount int
}

// ScanShopPayload asks a worker to scan every variant of a shop
type ScanShopPayload struct {
	Shop string `json:"shop"`
}

// RecheckVariantPayload asks a worker to re-evaluate one variant
type RecheckVariantPayload struct {
	Shop      string `json:"shop"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
}

// CleanupPayload asks a worker to apply the retention policy
type CleanupPayload struct{}
