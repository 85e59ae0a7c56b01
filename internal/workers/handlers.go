package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prisvakt/compliance-service/internal/database"
	"github.com/prisvakt/compliance-service/internal/jobs"
	"github.com/prisvakt/compliance-service/internal/scanner"
	"github.com/prisvakt/compliance-service/internal/taskqueue"
)

// ShopScanner runs full shop scans
type ShopScanner interface {
	ScanShop(ctx context.Context, domain string) (*scanner.ScanResult, error)
}

// VariantRechecker re-evaluates single variants
type VariantRechecker interface {
	RecheckVariant(ctx context.Context, domain, productID, variantID string) (*database.EvaluationRecord, error)
}

// RetentionRunner applies the retention policy
type RetentionRunner interface {
	Run(ctx context.Context) (*jobs.RetentionResult, error)
}

// Register wires the handlers for every task type
func Register(w *Worker, s interface {
	ShopScanner
	VariantRechecker
}, retention RetentionRunner) {
	w.RegisterHandler(taskqueue.TaskTypeScanShop, NewScanShopHandler(s))
	w.RegisterHandler(taskqueue.TaskTypeRecheckVariant, NewRecheckVariantHandler(s))
	w.RegisterHandler(taskqueue.TaskTypeCleanup, NewCleanupHandler(retention))
}

func NewScanShopHandler(s ShopScanner) Handler {
	return func(ctx context.Context, payload []byte) (interface{}, error) {
		var req taskqueue.ScanShopPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, Permanent(fmt.Errorf("failed to unmarshal scan payload: %w", err))
		}
		if req.Shop == "" {
			return nil, Permanent(errors.New("scan payload has no shop"))
		}

		result, err := s.ScanShop(ctx, req.Shop)
		if errors.Is(err, database.ErrNotFound) {
			return nil, Permanent(err)
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func NewRecheckVariantHandler(s VariantRechecker) Handler {
	return func(ctx context.Context, payload []byte) (interface{}, error) {
		var req taskqueue.RecheckVariantPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, Permanent(fmt.Errorf("failed to unmarshal recheck payload: %w", err))
		}
		if req.Shop == "" || req.ProductID == "" || req.VariantID == "" {
			return nil, Permanent(errors.New("recheck payload needs shop, productId and variantId"))
		}

		record, err := s.RecheckVariant(ctx, req.Shop, req.ProductID, req.VariantID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, Permanent(err)
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"variant":     record.VariantKey.String(),
			"isCompliant": record.IsCompliant,
			"issues":      len(record.Issues),
		}, nil
	}
}

func NewCleanupHandler(r RetentionRunner) Handler {
	return func(ctx context.Context, _ []byte) (interface{}, error) {
		return r.Run(ctx)
	}
}
