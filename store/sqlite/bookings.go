package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, booking_no, user_id, warehouse_id, from_date, from_day, to_date, to_day,
	contact_json, product_name, requested_capacity, capacity_unit, items_json, total_price,
	pending_price, total_weight, no_of_bags, bag_size, status, stage, accepted_by, rejected_by,
	reasons_json, deposit_id, weighbridge_id, grade_json, deposit_expiry, withdrawal_id,
	committed_capacity, released_capacity, version, created_at, updated_at`

// bookingArgs encodes b in bookingColumns order, without id, version and the
// timestamps.
func bookingArgs(b *warehousing.Booking) ([]any, error) {
	contact, err := toJSON(b.Contact)
	if err != nil {
		return nil, err
	}
	items, err := toJSON(b.Items)
	if err != nil {
		return nil, err
	}
	reasons, err := toJSON(b.Reasons)
	if err != nil {
		return nil, err
	}
	var grade sql.NullString
	if b.Grade != nil {
		g, err := toJSON(b.Grade)
		if err != nil {
			return nil, err
		}
		grade = nullString(g)
	}
	return []any{
		b.BookingNo, b.UserID, string(b.WarehouseID),
		b.Dates.From.String(), int(b.Dates.From.DayKey()),
		b.Dates.To.String(), int(b.Dates.To.DayKey()),
		contact, nullString(b.ProductName),
		b.RequestedCapacity.Value.String(), string(b.RequestedCapacity.Unit),
		items, b.TotalPrice.String(), b.PendingPrice.String(),
		b.TotalWeight.Value.String(), b.NoOfBags, b.BagSize.String(),
		string(b.Status), int(b.Stage),
		nullString(b.AcceptedBy), nullString(b.RejectedBy), reasons,
		nullString(b.DepositID), nullString(b.WeighbridgeID), grade,
		formatDate(b.DepositExpiry), nullString(b.WithdrawalID),
		b.CommittedCapacity.Value.String(), b.ReleasedCapacity.Value.String(),
	}, nil
}

// SaveBooking inserts when b.Version is 0, otherwise updates if the stored
// version still matches.
func (q *queries) SaveBooking(ctx context.Context, b *warehousing.Booking) error {
	args, err := bookingArgs(b)
	if err != nil {
		return err
	}

	if b.Version == 0 {
		insertArgs := append([]any{string(b.ID)}, args...)
		insertArgs = append(insertArgs, 1, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
		_, err = q.db.ExecContext(ctx,
			"INSERT INTO bookings ("+bookingColumns+") VALUES ("+placeholders(len(insertArgs))+")",
			insertArgs...)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("booking %s: %w", b.BookingNo, generic.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		b.Version = 1
		return nil
	}

	updateArgs := append(args, formatTime(b.UpdatedAt), string(b.ID), b.Version)
	res, err := q.db.ExecContext(ctx, `
		UPDATE bookings SET
			booking_no = ?, user_id = ?, warehouse_id = ?, from_date = ?, from_day = ?,
			to_date = ?, to_day = ?, contact_json = ?, product_name = ?,
			requested_capacity = ?, capacity_unit = ?, items_json = ?, total_price = ?,
			pending_price = ?, total_weight = ?, no_of_bags = ?, bag_size = ?,
			status = ?, stage = ?, accepted_by = ?, rejected_by = ?, reasons_json = ?,
			deposit_id = ?, weighbridge_id = ?, grade_json = ?, deposit_expiry = ?,
			withdrawal_id = ?, committed_capacity = ?, released_capacity = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, updateArgs...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if err := rowsAffectedOrConflict(res, "booking", string(b.ID)); err != nil {
		return err
	}
	b.Version++
	return nil
}

func (q *queries) GetBooking(ctx context.Context, id generic.BookingID) (*warehousing.Booking, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", string(id))
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (q *queries) BookingNoExists(ctx context.Context, bookingNo string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE booking_no = ?", bookingNo).Scan(&count)
	return count > 0, err
}

func (q *queries) ListBookings(ctx context.Context, filter warehousing.BookingFilter) ([]warehousing.Booking, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(filter.WarehouseIDs) > 0 {
		where = append(where, "warehouse_id IN ("+placeholders(len(filter.WarehouseIDs))+")")
		for _, id := range filter.WarehouseIDs {
			args = append(args, string(id))
		}
	}
	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, booking_no"
	return q.queryBookings(ctx, query, args...)
}

// ExpiryCandidates returns pending or accepted bookings that are not yet
// deposited and whose from-date is before cutoff.
func (q *queries) ExpiryCandidates(ctx context.Context, cutoff generic.DayKey) ([]warehousing.Booking, error) {
	return q.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status IN (?, ?) AND stage < ? AND from_day < ?
		ORDER BY created_at, booking_no
	`, string(warehousing.BookingPending), string(warehousing.BookingAccepted),
		int(warehousing.StageDeposited), int(cutoff))
}

func (q *queries) queryBookings(ctx context.Context, query string, args ...any) ([]warehousing.Booking, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row rowScanner) (*warehousing.Booking, error) {
	var (
		b                warehousing.Booking
		fromDate, toDate string
		fromDay, toDay   int
		contact          sql.NullString
		productName      sql.NullString
		requested        string
		unit             string
		items            sql.NullString
		totalPrice       string
		pendingPrice     string
		totalWeight      string
		bagSize          string
		stage            int
		acceptedBy       sql.NullString
		rejectedBy       sql.NullString
		reasons          sql.NullString
		depositID        sql.NullString
		weighbridgeID    sql.NullString
		grade            sql.NullString
		depositExpiry    sql.NullString
		withdrawalID     sql.NullString
		committed        string
		released         string
		createdAt        string
		updatedAt        string
	)
	err := row.Scan(&b.ID, &b.BookingNo, &b.UserID, &b.WarehouseID, &fromDate, &fromDay, &toDate, &toDay,
		&contact, &productName, &requested, &unit, &items, &totalPrice,
		&pendingPrice, &totalWeight, &b.NoOfBags, &bagSize, &b.Status, &stage, &acceptedBy, &rejectedBy,
		&reasons, &depositID, &weighbridgeID, &grade, &depositExpiry, &withdrawalID,
		&committed, &released, &b.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	// from_day is authoritative; from_date is kept for humans and must agree.
	b.Dates = generic.DateRange{
		From: generic.DayKey(fromDay).TimePoint(),
		To:   generic.DayKey(toDay).TimePoint(),
	}
	if b.Dates.From.String() != fromDate || b.Dates.To.String() != toDate {
		return nil, fmt.Errorf("booking %s: stored dates disagree (%s/%d, %s/%d)", b.ID, fromDate, fromDay, toDate, toDay)
	}
	if err := fromJSON(contact, &b.Contact); err != nil {
		return nil, err
	}
	b.ProductName = productName.String
	b.RequestedCapacity = parseAmount(requested, unit)
	if err := fromJSON(items, &b.Items); err != nil {
		return nil, err
	}
	b.TotalPrice = parseDecimal(totalPrice)
	b.PendingPrice = parseDecimal(pendingPrice)
	b.TotalWeight = parseAmount(totalWeight, unit)
	b.BagSize = parseDecimal(bagSize)
	b.Stage = warehousing.Stage(stage)
	b.AcceptedBy = acceptedBy.String
	b.RejectedBy = rejectedBy.String
	if err := fromJSON(reasons, &b.Reasons); err != nil {
		return nil, err
	}
	b.DepositID = depositID.String
	b.WeighbridgeID = weighbridgeID.String
	if grade.Valid {
		b.Grade = &warehousing.GradeDetails{}
		if err := fromJSON(grade, b.Grade); err != nil {
			return nil, err
		}
	}
	b.DepositExpiry = parseDate(depositExpiry)
	b.WithdrawalID = withdrawalID.String
	b.CommittedCapacity = parseAmount(committed, unit)
	b.ReleasedCapacity = parseAmount(released, unit)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}
