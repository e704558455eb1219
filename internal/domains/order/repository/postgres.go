package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"returns-backend/internal/domains/order/model"
	"returns-backend/pkg/cache"
)

// =====================================================
// POSTGRES ORDER READER
// =====================================================
// Reads the platform's orders/order_items tables. Delivered orders never
// change, so snapshots are cached in redis with a short TTL.

const snapshotCacheTTL = 10 * time.Minute

type postgresOrderReader struct {
	pool  *pgxpool.Pool
	cache cache.Cache
}

func NewPostgresOrderReader(pool *pgxpool.Pool, c cache.Cache) OrderReader {
	return &postgresOrderReader{
		pool:  pool,
		cache: c,
	}
}

func snapshotCacheKey(orderID uuid.UUID) string {
	return "order:snapshot:" + orderID.String()
}

func (r *postgresOrderReader) GetSnapshot(ctx context.Context, orderID uuid.UUID) (*model.OrderSnapshot, error) {
	var cached model.OrderSnapshot
	if r.cache != nil {
		found, err := r.cache.Get(ctx, snapshotCacheKey(orderID), &cached)
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID.String()).Msg("order snapshot cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	snapshot, err := r.loadSnapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && snapshot.Status == model.OrderStatusDelivered {
		if err := r.cache.Set(ctx, snapshotCacheKey(orderID), snapshot, snapshotCacheTTL); err != nil {
			log.Warn().Err(err).Str("order_id", orderID.String()).Msg("order snapshot cache write failed")
		}
	}

	return snapshot, nil
}

func (r *postgresOrderReader) loadSnapshot(ctx context.Context, orderID uuid.UUID) (*model.OrderSnapshot, error) {
	query := `
		SELECT
			id, order_number, customer_id, status,
			subtotal_with_tax, discount_total, delivery_charge,
			warehouse_state, delivery_state, interstate,
			delivered_at
		FROM orders
		WHERE id = $1
	`

	var snapshot model.OrderSnapshot
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&snapshot.ID,
		&snapshot.OrderNumber,
		&snapshot.CustomerID,
		&snapshot.Status,
		&snapshot.SubtotalWithTax,
		&snapshot.DiscountTotal,
		&snapshot.DeliveryCharge,
		&snapshot.WarehouseState,
		&snapshot.DeliveryState,
		&snapshot.Interstate,
		&snapshot.DeliveredAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order snapshot: %w", err)
	}

	items, err := r.loadItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	snapshot.Items = items

	return &snapshot, nil
}

func (r *postgresOrderReader) loadItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItemSnapshot, error) {
	query := `
		SELECT
			product_id, name, price, quantity,
			price_includes_tax, tax_name, tax_percentage
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItemSnapshot
	for rows.Next() {
		var item model.OrderItemSnapshot
		if err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.Quantity,
			&item.PriceIncludesTax,
			&item.TaxName,
			&item.TaxPercentage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return items, nil
}
