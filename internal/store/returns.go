package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/retroryan/shopledger/internal/model"
)

// InsertReturn writes a return request.
func InsertReturn(ctx context.Context, q Querier, r model.ReturnRequest) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO returns (id, order_id, user_id, item_id, quantity, reason, status, refund_cents, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, r.ID, r.OrderID, r.UserID, r.ItemID, r.Quantity, r.Reason, string(r.Status),
		int64(r.RefundAmount), toNanos(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert return %s: %w", r.ID, err)
	}
	return nil
}

// GetReturn returns a return request or ErrNotFound. An empty userID skips
// the ownership filter.
func GetReturn(ctx context.Context, q Querier, userID, returnID string) (model.ReturnRequest, error) {
	query := `
		SELECT id, order_id, user_id, item_id, quantity, reason, status, refund_cents, created_at, processed_at
		FROM returns WHERE id = ?`
	args := []any{returnID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	r, err := scanReturn(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReturnRequest{}, ErrNotFound
	}
	if err != nil {
		return model.ReturnRequest{}, fmt.Errorf("get return %s: %w", returnID, err)
	}
	return r, nil
}

// ListReturns returns a user's return requests, newest first.
func ListReturns(ctx context.Context, q Querier, userID string) ([]model.ReturnRequest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, user_id, item_id, quantity, reason, status, refund_cents, created_at, processed_at
		FROM returns WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list returns for %s: %w", userID, err)
	}
	defer rows.Close()

	out := []model.ReturnRequest{}
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("list returns for %s: scan: %w", userID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OpenReturnExists reports whether a pending or approved return already
// covers the given order line.
func OpenReturnExists(ctx context.Context, q Querier, orderID, itemID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM returns
		WHERE order_id = ? AND item_id = ? AND status IN ('pending', 'approved')
	`, orderID, itemID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check open return %s/%s: %w", orderID, itemID, err)
	}
	return n > 0, nil
}

// ApprovedReturnQuantities sums approved return quantities per item of an
// order.
func ApprovedReturnQuantities(ctx context.Context, q Querier, orderID string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, SUM(quantity) FROM returns
		WHERE order_id = ? AND status = 'approved'
		GROUP BY item_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("approved returns for %s: %w", orderID, err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			itemID string
			qty    int
		)
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("approved returns for %s: scan: %w", orderID, err)
		}
		out[itemID] = qty
	}
	return out, rows.Err()
}

// ResolveReturn moves a pending return to a terminal status. The update is
// guarded on status = 'pending'; a return resolved concurrently yields
// ErrConflict.
func ResolveReturn(ctx context.Context, q Querier, returnID string, to model.ReturnStatus, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE returns SET status = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(to), toNanos(at), returnID)
	if err != nil {
		return fmt.Errorf("resolve return %s: %w", returnID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("resolve return %s: %w", returnID, err)
	}
	return nil
}

func scanReturn(r rowScanner) (model.ReturnRequest, error) {
	var (
		rr        model.ReturnRequest
		status    string
		refund    int64
		created   int64
		processed sql.NullInt64
	)
	if err := r.Scan(&rr.ID, &rr.OrderID, &rr.UserID, &rr.ItemID, &rr.Quantity, &rr.Reason,
		&status, &refund, &created, &processed); err != nil {
		return model.ReturnRequest{}, err
	}
	rr.Status = model.ReturnStatus(status)
	rr.RefundAmount = model.Money(refund)
	rr.CreatedAt = fromNanos(created)
	rr.ProcessedAt = fromNullNanos(processed)
	return rr, nil
}
