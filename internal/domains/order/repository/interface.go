package repository

import (
	"context"

	"github.com/google/uuid"

	"returns-backend/internal/domains/order/model"
)

// OrderReader is the read-only boundary to the external order store
type OrderReader interface {
	// GetSnapshot loads the order with its items and billing totals
	GetSnapshot(ctx context.Context, orderID uuid.UUID) (*model.OrderSnapshot, error)
}
