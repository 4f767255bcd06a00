package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// CAPACITY MOVEMENTS (generic.MovementStore interface)
// =============================================================================

// AppendMovement adds a movement to the ledger.
func (q *queries) AppendMovement(ctx context.Context, mv generic.Movement) error {
	query := `
		INSERT INTO capacity_movements
		(id, warehouse_id, booking_id, movement_type, delta_value, delta_unit,
		 reason, idempotency_key, effective_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		string(mv.ID),
		string(mv.WarehouseID),
		nullString(string(mv.BookingID)),
		string(mv.Type),
		mv.Delta.Value.String(),
		string(mv.Delta.Unit),
		mv.Reason,
		nullString(mv.IdempotencyKey),
		mv.EffectiveAt.String(),
		mv.CreatedBy,
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// Movements returns all movements of a warehouse, oldest first.
func (q *queries) Movements(ctx context.Context, warehouseID generic.WarehouseID) ([]generic.Movement, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, warehouse_id, booking_id, movement_type, delta_value, delta_unit,
		       reason, idempotency_key, effective_at, created_by
		FROM capacity_movements
		WHERE warehouse_id = ?
		ORDER BY effective_at ASC, seq ASC
	`, string(warehouseID))
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []generic.Movement
	for rows.Next() {
		var (
			mv             generic.Movement
			bookingID      sql.NullString
			deltaValue     string
			deltaUnit      string
			reason         sql.NullString
			idempotencyKey sql.NullString
			effectiveAt    string
			createdBy      sql.NullString
		)
		if err := rows.Scan(&mv.ID, &mv.WarehouseID, &bookingID, &mv.Type, &deltaValue, &deltaUnit,
			&reason, &idempotencyKey, &effectiveAt, &createdBy); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		mv.BookingID = generic.BookingID(bookingID.String)
		mv.Delta = parseAmount(deltaValue, deltaUnit)
		mv.Reason = reason.String
		mv.IdempotencyKey = idempotencyKey.String
		mv.EffectiveAt = parseDate(sql.NullString{String: effectiveAt, Valid: true})
		mv.CreatedBy = createdBy.String
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// MovementExists checks if an idempotency key exists.
func (q *queries) MovementExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM capacity_movements WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (q *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	payload, err := toJSON(e.Payload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, warehouse_id, booking_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		formatTime(e.Timestamp),
		e.ActorID,
		string(e.Action),
		nullString(string(e.WarehouseID)),
		nullString(string(e.BookingID)),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (q *queries) AuditTrail(ctx context.Context, bookingID generic.BookingID) ([]generic.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, action, warehouse_id, booking_id, payload_json
		FROM audit_log
		WHERE booking_id = ?
		ORDER BY seq ASC
	`, string(bookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e           generic.AuditEntry
			timestamp   string
			warehouseID sql.NullString
			bID         sql.NullString
			payload     sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &e.ActorID, &e.Action, &warehouseID, &bID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(timestamp)
		e.WarehouseID = generic.WarehouseID(warehouseID.String)
		e.BookingID = generic.BookingID(bID.String)
		if err := fromJSON(payload, &e.Payload); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
