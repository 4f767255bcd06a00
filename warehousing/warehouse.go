package warehousing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// WAREHOUSE REGISTRY
// =============================================================================

type CreateWarehouseCommand struct {
	ID             generic.WarehouseID // optional, generated when empty
	Name           string
	OwnerID        string // required when an admin creates on behalf of an owner
	ManagerID      string
	Address        string
	TotalCapacity  decimal.Decimal
	FilledCapacity decimal.Decimal
	Unit           generic.Unit
	Commodities    []Commodity
}

// CreateWarehouse registers a warehouse. An opening fill is recorded as an
// adjustment movement so the ledger replays to the stored value.
func (s *Service) CreateWarehouse(ctx context.Context, actor Identity, cmd CreateWarehouseCommand) (*Warehouse, error) {
	if err := authorize(actor, RoleOwner, RoleAdmin); err != nil {
		return nil, err
	}

	ownerID := cmd.OwnerID
	if actor.Role == RoleOwner {
		ownerID = actor.UserID
	}
	if ownerID == "" {
		return nil, generic.NewValidationError("owner_id", "is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, generic.NewValidationError("name", "is required")
	}
	unit := cmd.Unit
	if unit == "" {
		unit = generic.UnitMT
	}

	capacity := generic.Capacity{
		Total:  generic.NewAmountFromDecimal(cmd.TotalCapacity, unit),
		Filled: generic.NewAmountFromDecimal(cmd.FilledCapacity, unit),
	}
	if err := capacity.Validate(); err != nil {
		return nil, err
	}
	if err := validateCommodities(cmd.Commodities); err != nil {
		return nil, err
	}

	id := cmd.ID
	if id == "" {
		id = generic.WarehouseID(uuid.NewString())
	}
	now := s.now()
	w := &Warehouse{
		ID:          id,
		Name:        strings.TrimSpace(cmd.Name),
		OwnerID:     ownerID,
		ManagerID:   cmd.ManagerID,
		Address:     cmd.Address,
		Capacity:    capacity,
		Commodities: cmd.Commodities,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range w.Commodities {
		if w.Commodities[i].AddedBy == "" {
			w.Commodities[i].AddedBy = actor.UserID
		}
	}

	err := s.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetWarehouse(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("warehouse %s: %w", id, generic.ErrAlreadyExists)
		}
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return err
		}
		if capacity.Filled.IsPositive() {
			if err := tx.AppendMovement(ctx, generic.Movement{
				ID:             generic.MovementID(uuid.NewString()),
				WarehouseID:    id,
				Type:           generic.MoveAdjustment,
				Delta:          capacity.Filled,
				Reason:         "opening fill",
				IdempotencyKey: "opening:" + string(id),
				EffectiveAt:    s.today(),
				CreatedBy:      actor.UserID,
			}); err != nil {
				return err
			}
		}
		return s.audit(ctx, tx, actor, generic.AuditWarehouseCreated, nil, map[string]any{
			"warehouse_id": string(id),
			"total":        capacity.Total.Value.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("warehouse_id", string(id)).Str("owner_id", ownerID).Msg("warehouse created")
	return w, nil
}

func validateCommodities(commodities []Commodity) error {
	seen := make(map[string]bool)
	for _, c := range commodities {
		if err := validateCommodity(c); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			return generic.NewValidationError("commodities", fmt.Sprintf("duplicate commodity %q", c.Name))
		}
		seen[key] = true
	}
	return nil
}

func validateCommodity(c Commodity) error {
	if strings.TrimSpace(c.Name) == "" {
		return generic.NewValidationError("commodity.name", "is required")
	}
	if len(c.Tiers) == 0 {
		return generic.NewValidationError("commodity.price_per_day", fmt.Sprintf("%s has no price tiers", c.Name))
	}
	for _, t := range c.Tiers {
		if !t.Weight.IsPositive() {
			return generic.NewValidationError("commodity.price_per_day.weight", "must be positive")
		}
		if t.PricePerDay.IsNegative() {
			return generic.NewValidationError("commodity.price_per_day.price", "must not be negative")
		}
	}
	return nil
}

func (s *Service) GetWarehouse(ctx context.Context, id generic.WarehouseID) (*Warehouse, error) {
	return loadWarehouse(ctx, s.Store, id)
}

func (s *Service) ListWarehouses(ctx context.Context, filter WarehouseFilter) ([]Warehouse, error) {
	return s.Store.ListWarehouses(ctx, filter)
}

// ArchiveWarehouse soft-deletes a warehouse. Archived warehouses take no new
// bookings; existing bookings run to completion.
func (s *Service) ArchiveWarehouse(ctx context.Context, actor Identity, id generic.WarehouseID) (*Warehouse, error) {
	var w *Warehouse
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		w, err = loadWarehouse(ctx, tx, id)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && !(actor.Role == RoleOwner && w.OwnerID == actor.UserID) {
			return fmt.Errorf("%w: only the owner may archive a warehouse", generic.ErrForbidden)
		}
		if w.Archived {
			return fmt.Errorf("warehouse %s: %w", id, generic.ErrAlreadyInState)
		}
		w.Archived = true
		w.Active = false
		w.UpdatedAt = s.now()
		if err := tx.SaveWarehouse(ctx, w); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditWarehouseArchived, nil, map[string]any{"warehouse_id": string(id)})
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpsertCommodity adds a commodity or replaces the tiers of an existing one.
func (s *Service) UpsertCommodity(ctx context.Context, actor Identity, id generic.WarehouseID, c Commodity) (*Warehouse, error) {
	if err := validateCommodity(c); err != nil {
		return nil, err
	}
	var w *Warehouse
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		w, err = loadWarehouse(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorizeStaff(actor, w); err != nil {
			return err
		}
		c.Name = strings.TrimSpace(c.Name)
		c.AddedBy = actor.UserID
		replaced := false
		for i := range w.Commodities {
			if strings.EqualFold(w.Commodities[i].Name, c.Name) {
				w.Commodities[i] = c
				replaced = true
			}
		}
		if !replaced {
			w.Commodities = append(w.Commodities, c)
		}
		w.UpdatedAt = s.now()
		return tx.SaveWarehouse(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// RateWarehouse records one 1..5 rating per user and recomputes the average.
func (s *Service) RateWarehouse(ctx context.Context, actor Identity, id generic.WarehouseID, rating int) (*Warehouse, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", generic.ErrForbidden)
	}
	if rating < 1 || rating > 5 {
		return nil, generic.NewValidationError("rating", "must be between 1 and 5")
	}
	var w *Warehouse
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		w, err = loadWarehouse(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := false
		for i := range w.Ratings {
			if w.Ratings[i].UserID == actor.UserID {
				w.Ratings[i].Rating = rating
				updated = true
			}
		}
		if !updated {
			w.Ratings = append(w.Ratings, Rating{UserID: actor.UserID, Rating: rating})
		}
		sum := 0
		for _, r := range w.Ratings {
			sum += r.Rating
		}
		w.AvgRating = generic.Round2(decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(w.Ratings)))))
		w.UpdatedAt = s.now()
		return tx.SaveWarehouse(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
