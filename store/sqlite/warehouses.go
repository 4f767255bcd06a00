package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// WAREHOUSES
// =============================================================================

const warehouseColumns = `id, name, owner_id, manager_id, address, total_capacity, filled_capacity,
	capacity_unit, commodities_json, ratings_json, avg_rating, active, archived, version,
	created_at, updated_at`

// SaveWarehouse inserts when w.Version is 0, otherwise updates if the stored
// version still matches.
func (q *queries) SaveWarehouse(ctx context.Context, w *warehousing.Warehouse) error {
	commodities, err := toJSON(w.Commodities)
	if err != nil {
		return err
	}
	ratings, err := toJSON(w.Ratings)
	if err != nil {
		return err
	}

	if w.Version == 0 {
		_, err = q.db.ExecContext(ctx, `
			INSERT INTO warehouses (`+warehouseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			string(w.ID), w.Name, w.OwnerID, nullString(w.ManagerID), nullString(w.Address),
			w.Capacity.Total.Value.String(), w.Capacity.Filled.Value.String(), string(w.Capacity.Total.Unit),
			commodities, ratings, w.AvgRating.String(), w.Active, w.Archived,
			formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("warehouse %s: %w", w.ID, generic.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert warehouse: %w", err)
		}
		w.Version = 1
		return nil
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE warehouses SET
			name = ?, owner_id = ?, manager_id = ?, address = ?,
			total_capacity = ?, filled_capacity = ?, capacity_unit = ?,
			commodities_json = ?, ratings_json = ?, avg_rating = ?,
			active = ?, archived = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		w.Name, w.OwnerID, nullString(w.ManagerID), nullString(w.Address),
		w.Capacity.Total.Value.String(), w.Capacity.Filled.Value.String(), string(w.Capacity.Total.Unit),
		commodities, ratings, w.AvgRating.String(),
		w.Active, w.Archived, formatTime(w.UpdatedAt),
		string(w.ID), w.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update warehouse: %w", err)
	}
	if err := rowsAffectedOrConflict(res, "warehouse", string(w.ID)); err != nil {
		return err
	}
	w.Version++
	return nil
}

func (q *queries) GetWarehouse(ctx context.Context, id generic.WarehouseID) (*warehousing.Warehouse, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+warehouseColumns+" FROM warehouses WHERE id = ?", string(id))
	w, err := scanWarehouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (q *queries) ListWarehouses(ctx context.Context, filter warehousing.WarehouseFilter) ([]warehousing.Warehouse, error) {
	query := "SELECT " + warehouseColumns + " FROM warehouses WHERE 1=1"
	var args []any
	if !filter.IncludeArchived {
		query += " AND archived = FALSE"
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	query += " ORDER BY name, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWarehouse(row rowScanner) (*warehousing.Warehouse, error) {
	var (
		w           warehousing.Warehouse
		managerID   sql.NullString
		address     sql.NullString
		total       string
		filled      string
		unit        string
		commodities sql.NullString
		ratings     sql.NullString
		avgRating   string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&w.ID, &w.Name, &w.OwnerID, &managerID, &address, &total, &filled,
		&unit, &commodities, &ratings, &avgRating, &w.Active, &w.Archived, &w.Version,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan warehouse: %w", err)
	}
	w.ManagerID = managerID.String
	w.Address = address.String
	w.Capacity = generic.Capacity{Total: parseAmount(total, unit), Filled: parseAmount(filled, unit)}
	if err := fromJSON(commodities, &w.Commodities); err != nil {
		return nil, err
	}
	if err := fromJSON(ratings, &w.Ratings); err != nil {
		return nil, err
	}
	w.AvgRating = parseDecimal(avgRating)
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return &w, nil
}
