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
// WEIGHBRIDGES
// =============================================================================

func (q *queries) SaveWeighbridge(ctx context.Context, wb *warehousing.Weighbridge) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO weighbridges
		(id, booking_id, warehouse_id, date, time, gross, tare, net, unit,
		 truck_number, driver_name, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		wb.ID, string(wb.BookingID), string(wb.WarehouseID), wb.Date.String(), nullString(wb.Time),
		wb.Gross.Value.String(), wb.Tare.Value.String(), wb.Net.Value.String(), string(wb.Net.Unit),
		nullString(wb.TruckNumber), nullString(wb.DriverName), wb.RecordedBy, formatTime(wb.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("weighbridge for booking %s: %w", wb.BookingID, generic.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert weighbridge: %w", err)
	}
	return nil
}

func (q *queries) GetWeighbridgeByBooking(ctx context.Context, bookingID generic.BookingID) (*warehousing.Weighbridge, error) {
	var (
		wb                     warehousing.Weighbridge
		date                   string
		tm, truck, driver      sql.NullString
		gross, tare, net, unit string
		createdAt              string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, booking_id, warehouse_id, date, time, gross, tare, net, unit,
		       truck_number, driver_name, recorded_by, created_at
		FROM weighbridges WHERE booking_id = ?
	`, string(bookingID)).Scan(&wb.ID, &wb.BookingID, &wb.WarehouseID, &date, &tm, &gross, &tare, &net, &unit,
		&truck, &driver, &wb.RecordedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weighbridge: %w", err)
	}
	wb.Date = parseDate(sql.NullString{String: date, Valid: true})
	wb.Time = tm.String
	wb.Gross = parseAmount(gross, unit)
	wb.Tare = parseAmount(tare, unit)
	wb.Net = parseAmount(net, unit)
	wb.TruckNumber = truck.String
	wb.DriverName = driver.String
	wb.CreatedAt = parseTime(createdAt)
	return &wb, nil
}

// =============================================================================
// DEPOSITS
// =============================================================================

const depositColumns = `id, booking_id, warehouse_id, deposit_date, slot, commodity_type, revalidation_date,
	expiry_date, total_weight, weight_unit, total_price, status, grade, grade_json, created_by,
	created_at, updated_at`

// SaveDeposit upserts; the booking_id uniqueness keeps a second deposit for
// the same booking out.
func (q *queries) SaveDeposit(ctx context.Context, d *warehousing.Deposit) error {
	var grade, gradeJSON sql.NullString
	if d.Grade != nil {
		g, err := toJSON(d.Grade)
		if err != nil {
			return err
		}
		grade = nullString(d.Grade.Grade)
		gradeJSON = nullString(g)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO deposits (`+depositColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deposit_date = excluded.deposit_date,
			slot = excluded.slot,
			commodity_type = excluded.commodity_type,
			revalidation_date = excluded.revalidation_date,
			expiry_date = excluded.expiry_date,
			total_weight = excluded.total_weight,
			weight_unit = excluded.weight_unit,
			total_price = excluded.total_price,
			status = excluded.status,
			grade = excluded.grade,
			grade_json = excluded.grade_json,
			updated_at = excluded.updated_at
	`,
		d.ID, string(d.BookingID), string(d.WarehouseID), d.DepositDate.String(), nullString(d.Slot),
		string(d.CommodityType), formatDate(d.RevalidationDate), formatDate(d.ExpiryDate),
		d.TotalWeight.Value.String(), string(d.TotalWeight.Unit), d.TotalPrice.String(),
		string(d.Status), grade, gradeJSON, d.CreatedBy,
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("deposit for booking %s: %w", d.BookingID, generic.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save deposit: %w", err)
	}
	return nil
}

func (q *queries) GetDeposit(ctx context.Context, id string) (*warehousing.Deposit, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+depositColumns+" FROM deposits WHERE id = ?", id)
	d, err := scanDeposit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (q *queries) ListDeposits(ctx context.Context, filter warehousing.DepositFilter) ([]warehousing.Deposit, error) {
	var where []string
	var args []any
	if filter.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, string(filter.WarehouseID))
	}
	if filter.BookingID != "" {
		where = append(where, "booking_id = ?")
		args = append(args, string(filter.BookingID))
	}
	if filter.Grade != "" {
		where = append(where, "grade = ?")
		args = append(args, filter.Grade)
	}
	query := "SELECT " + depositColumns + " FROM deposits"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY deposit_date, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDeposit(row rowScanner) (*warehousing.Deposit, error) {
	var (
		d                    warehousing.Deposit
		depositDate          string
		slot                 sql.NullString
		revalidation, expiry sql.NullString
		weight, unit, price  string
		grade, gradeJSON     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&d.ID, &d.BookingID, &d.WarehouseID, &depositDate, &slot, &d.CommodityType, &revalidation,
		&expiry, &weight, &unit, &price, &d.Status, &grade, &gradeJSON, &d.CreatedBy,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan deposit: %w", err)
	}
	d.DepositDate = parseDate(sql.NullString{String: depositDate, Valid: true})
	d.Slot = slot.String
	d.RevalidationDate = parseDate(revalidation)
	d.ExpiryDate = parseDate(expiry)
	d.TotalWeight = parseAmount(weight, unit)
	d.TotalPrice = parseDecimal(price)
	if gradeJSON.Valid {
		d.Grade = &warehousing.GradeDetails{}
		if err := fromJSON(gradeJSON, d.Grade); err != nil {
			return nil, err
		}
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// =============================================================================
// SHIPMENTS
// =============================================================================

func (q *queries) SaveShipment(ctx context.Context, sh *warehousing.Shipment) error {
	lines, err := toJSON(sh.Lines)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO shipments
		(id, seq, booking_id, warehouse_id, withdrawal_id, mode, lines_json, total_bags,
		 truck_number, driver_name, status, quantity, released_capacity, unit, late_fee,
		 shipped_at, created_by)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM shipments WHERE booking_id = ?),
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sh.ID, string(sh.BookingID), string(sh.BookingID), string(sh.WarehouseID), nullString(sh.WithdrawalID),
		string(sh.Mode), lines, sh.TotalBags, nullString(sh.TruckNumber), nullString(sh.DriverName),
		sh.Status, sh.Quantity.Value.String(), sh.ReleasedCapacity.Value.String(), string(sh.Quantity.Unit),
		sh.LateFee.String(), formatTime(sh.ShippedAt), sh.CreatedBy,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("shipment %s: %w", sh.ID, generic.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

// ListShipments returns the shipments of a booking in the order they left.
func (q *queries) ListShipments(ctx context.Context, bookingID generic.BookingID) ([]warehousing.Shipment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, booking_id, warehouse_id, withdrawal_id, mode, lines_json, total_bags,
		       truck_number, driver_name, status, quantity, released_capacity, unit, late_fee,
		       shipped_at, created_by
		FROM shipments WHERE booking_id = ?
		ORDER BY seq
	`, string(bookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Shipment
	for rows.Next() {
		var (
			sh                                warehousing.Shipment
			withdrawalID, truck, driver       sql.NullString
			lines                             sql.NullString
			quantity, released, unit, lateFee string
			shippedAt                         string
		)
		if err := rows.Scan(&sh.ID, &sh.BookingID, &sh.WarehouseID, &withdrawalID, &sh.Mode, &lines, &sh.TotalBags,
			&truck, &driver, &sh.Status, &quantity, &released, &unit, &lateFee,
			&shippedAt, &sh.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		sh.WithdrawalID = withdrawalID.String
		if err := fromJSON(lines, &sh.Lines); err != nil {
			return nil, err
		}
		sh.TruckNumber = truck.String
		sh.DriverName = driver.String
		sh.Quantity = parseAmount(quantity, unit)
		sh.ReleasedCapacity = parseAmount(released, unit)
		sh.LateFee = parseDecimal(lateFee)
		sh.ShippedAt = parseTime(shippedAt)
		out = append(out, sh)
	}
	return out, rows.Err()
}
