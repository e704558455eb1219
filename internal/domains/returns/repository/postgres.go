package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"returns-backend/internal/domains/returns/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresReturnRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReturnRepository(pool *pgxpool.Pool) ReturnRepository {
	return &postgresReturnRepository{
		pool: pool,
	}
}

// =====================================================
// TRANSACTION MANAGEMENT
// =====================================================

func (r *postgresReturnRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *postgresReturnRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return tx.Commit(ctx)
}

func (r *postgresReturnRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return tx.Rollback(ctx)
}

// =====================================================
// CREATE RETURN REQUEST
// =====================================================

func (r *postgresReturnRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	query := `
		INSERT INTO return_requests (
			id, order_id, customer_id, customer_phone, customer_email, status,
			refund_preference, refunded_amount,
			otp_attempts_remaining, customer_note, version
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8,
			$9, $10, $11
		)
		RETURNING return_number, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		req.ID,
		req.OrderID,
		req.CustomerID,
		req.CustomerPhone,
		req.CustomerEmail,
		req.Status,
		req.RefundPreference,
		req.RefundedAmount,
		req.OtpAttemptsRemaining,
		req.CustomerNote,
		req.Version,
	).Scan(&req.ReturnNumber, &req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create return request: %w", err)
	}

	return nil
}

func (r *postgresReturnRepository) CreateItemsWithTx(ctx context.Context, tx pgx.Tx, items []model.ReturnItem) error {
	query := `
		INSERT INTO return_items (
			id, return_id, product_id, name, price, quantity,
			price_includes_tax, tax_name, tax_percentage,
			return_reason, images, return_status
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12
		)
	`

	for i := range items {
		_, err := tx.Exec(ctx, query,
			items[i].ID,
			items[i].ReturnID,
			items[i].ProductID,
			items[i].Name,
			items[i].Price,
			items[i].Quantity,
			items[i].PriceIncludesTax,
			items[i].TaxName,
			items[i].TaxPercentage,
			items[i].ReturnReason,
			items[i].Images,
			items[i].ReturnStatus,
		)
		if err != nil {
			return fmt.Errorf("failed to create return item: %w", err)
		}
	}

	return nil
}

// =====================================================
// READS
// =====================================================

const returnColumns = `
	id, return_number, order_id, customer_id, customer_phone, customer_email, status,
	pickup_agent, refund_preference, refunded_amount,
	otp_code_hash, otp_expires_at, otp_attempts_remaining,
	otp_resend_available_at, otp_verified_at,
	customer_note, created_at, updated_at, version
`

func (r *postgresReturnRepository) scanReturn(row pgx.Row) (*model.ReturnRequest, error) {
	var req model.ReturnRequest
	err := row.Scan(
		&req.ID,
		&req.ReturnNumber,
		&req.OrderID,
		&req.CustomerID,
		&req.CustomerPhone,
		&req.CustomerEmail,
		&req.Status,
		&req.PickupAgent,
		&req.RefundPreference,
		&req.RefundedAmount,
		&req.OtpCodeHash,
		&req.OtpExpiresAt,
		&req.OtpAttemptsRemaining,
		&req.OtpResendAvailableAt,
		&req.OtpVerifiedAt,
		&req.CustomerNote,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrReturnNotFound
		}
		return nil, fmt.Errorf("failed to scan return request: %w", err)
	}
	return &req, nil
}

func (r *postgresReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1`

	req, err := r.scanReturn(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	return r.loadRelations(ctx, req)
}

func (r *postgresReturnRepository) GetByIDAndCustomer(ctx context.Context, id, customerID uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM return_requests WHERE id = $1 AND customer_id = $2`

	req, err := r.scanReturn(r.pool.QueryRow(ctx, query, id, customerID))
	if err != nil {
		return nil, err
	}

	return r.loadRelations(ctx, req)
}

func (r *postgresReturnRepository) loadRelations(ctx context.Context, req *model.ReturnRequest) (*model.ReturnRequest, error) {
	items, err := r.getItems(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.Items = items

	history, err := r.getHistory(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.StatusHistory = history

	return req, nil
}

func (r *postgresReturnRepository) getItems(ctx context.Context, returnID uuid.UUID) ([]model.ReturnItem, error) {
	query := `
		SELECT
			id, return_id, product_id, name, price, quantity,
			price_includes_tax, tax_name, tax_percentage,
			return_reason, images, return_status, refund_amount, created_at
		FROM return_items
		WHERE return_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get return items: %w", err)
	}
	defer rows.Close()

	var items []model.ReturnItem
	for rows.Next() {
		var item model.ReturnItem
		if err := rows.Scan(
			&item.ID,
			&item.ReturnID,
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.Quantity,
			&item.PriceIncludesTax,
			&item.TaxName,
			&item.TaxPercentage,
			&item.ReturnReason,
			&item.Images,
			&item.ReturnStatus,
			&item.RefundAmount,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan return item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *postgresReturnRepository) getHistory(ctx context.Context, returnID uuid.UUID) ([]model.ReturnStatusHistory, error) {
	query := `
		SELECT id, return_id, from_status, to_status, actor_id, actor_role, note, changed_at
		FROM return_status_history
		WHERE return_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []model.ReturnStatusHistory
	for rows.Next() {
		var entry model.ReturnStatusHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.ReturnID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Note,
			&entry.ChangedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, entry)
	}

	return history, rows.Err()
}

// =====================================================
// LIST
// =====================================================

func (r *postgresReturnRepository) List(ctx context.Context, filter ListFilter) ([]model.ReturnRequest, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filter.CustomerID)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM return_requests` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count return requests: %w", err)
	}

	query := `SELECT ` + returnColumns + ` FROM return_requests` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list return requests: %w", err)
	}
	defer rows.Close()

	var results []model.ReturnRequest
	for rows.Next() {
		req, err := r.scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Listing loads items (needed for admin export); history stays detail-only
	for i := range results {
		items, err := r.getItems(ctx, results[i].ID)
		if err != nil {
			return nil, 0, err
		}
		results[i].Items = items
	}

	return results, total, nil
}

// =====================================================
// STATUS TRANSITION (VERSION-CHECKED)
// =====================================================

func (r *postgresReturnRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, params UpdateStatusParams) error {
	query := `
		UPDATE return_requests
		SET status = $1,
			pickup_agent = COALESCE($2, pickup_agent),
			refunded_amount = refunded_amount + COALESCE($3, 0),
			otp_verified_at = CASE WHEN $4 THEN NULL ELSE otp_verified_at END,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $5 AND version = $6
	`

	tag, err := tx.Exec(ctx, query,
		params.Status,
		params.PickupAgent,
		params.RefundedDelta,
		params.ClearOtpVerified,
		params.ID,
		params.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update return status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrConflictingUpdate
	}

	return nil
}

func (r *postgresReturnRepository) AppendHistoryWithTx(ctx context.Context, tx pgx.Tx, entry *model.ReturnStatusHistory) error {
	query := `
		INSERT INTO return_status_history (
			id, return_id, from_status, to_status, actor_id, actor_role, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING changed_at
	`

	err := tx.QueryRow(ctx, query,
		entry.ID,
		entry.ReturnID,
		entry.FromStatus,
		entry.ToStatus,
		entry.ActorID,
		entry.ActorRole,
		entry.Note,
	).Scan(&entry.ChangedAt)

	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	return nil
}

func (r *postgresReturnRepository) MarkItemRefundedWithTx(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, amount decimal.Decimal) error {
	// refund_amount is written at most once; the guard makes a double write a
	// visible failure instead of a silent overwrite
	query := `
		UPDATE return_items
		SET return_status = $1, refund_amount = $2
		WHERE id = $3 AND return_status = $4 AND refund_amount IS NULL
	`

	tag, err := tx.Exec(ctx, query, model.ItemStatusRefunded, amount, itemID, model.ItemStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark item refunded: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrItemAlreadyRefunded
	}

	return nil
}

// =====================================================
// OTP STATE (VERSION-CHECKED)
// =====================================================

func (r *postgresReturnRepository) SetOtp(ctx context.Context, id uuid.UUID, version int, codeHash string, expiresAt, resendAvailableAt time.Time) error {
	query := `
		UPDATE return_requests
		SET otp_code_hash = $1,
			otp_expires_at = $2,
			otp_resend_available_at = $3,
			otp_attempts_remaining = $4,
			otp_verified_at = NULL,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $5 AND version = $6
	`

	tag, err := r.pool.Exec(ctx, query, codeHash, expiresAt, resendAvailableAt, model.OtpMaxAttempts, id, version)
	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConflictingUpdate
	}
	return nil
}

func (r *postgresReturnRepository) SetOtpAttempts(ctx context.Context, id uuid.UUID, version int, attemptsRemaining int) error {
	query := `
		UPDATE return_requests
		SET otp_attempts_remaining = $1,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	tag, err := r.pool.Exec(ctx, query, attemptsRemaining, id, version)
	if err != nil {
		return fmt.Errorf("failed to update otp attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConflictingUpdate
	}
	return nil
}

func (r *postgresReturnRepository) InvalidateOtp(ctx context.Context, id uuid.UUID, version int) error {
	query := `
		UPDATE return_requests
		SET otp_code_hash = NULL,
			otp_expires_at = NULL,
			otp_attempts_remaining = 0,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, version)
	if err != nil {
		return fmt.Errorf("failed to invalidate otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConflictingUpdate
	}
	return nil
}

func (r *postgresReturnRepository) MarkOtpVerified(ctx context.Context, id uuid.UUID, version int, verifiedAt time.Time) error {
	// Verification is single-use: the hash is cleared so the same code can
	// never match again
	query := `
		UPDATE return_requests
		SET otp_verified_at = $1,
			otp_code_hash = NULL,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	tag, err := r.pool.Exec(ctx, query, verifiedAt, id, version)
	if err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConflictingUpdate
	}
	return nil
}

// =====================================================
// MAINTENANCE
// =====================================================

func (r *postgresReturnRepository) SweepExpiredOtps(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE return_requests
		SET otp_code_hash = NULL,
			otp_expires_at = NULL,
			otp_attempts_remaining = 0,
			version = version + 1,
			updated_at = NOW()
		WHERE otp_code_hash IS NOT NULL AND otp_expires_at < $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired otps: %w", err)
	}

	return tag.RowsAffected(), nil
}
