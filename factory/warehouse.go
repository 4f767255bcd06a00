/*
Package factory provides JSON to Go warehouse conversion.

PURPOSE:
  Converts JSON warehouse definitions into warehousing.CreateWarehouseCommand
  values. Operators describe a warehouse (capacity, commodities, price tiers)
  in JSON; the API create endpoint and the seed command both go through this
  parser so the two accept exactly the same documents.

JSON SCHEMA:
  {
    "id": "wh-nashik-1",
    "name": "Nashik Central",
    "owner_id": "owner-1",
    "manager_id": "manager-1",
    "address": "MIDC, Nashik",
    "unit": "MT",
    "total_capacity": "1000",
    "filled_capacity": "120.5",
    "commodities": [
      {
        "name": "Wheat",
        "tiers": [
          {"weight": "50", "price_per_day": "2.5"},
          {"weight": "100", "price_per_day": "4"}
        ]
      }
    ]
  }

  Quantities are decimal strings or JSON numbers. A seed file holds either one
  document or an array of them.

KEY FEATURES:
  - Validates structure and decimals before anything reaches the service
  - Defaults unit to MT
  - Round-trips: ToJSON(w) parses back to an equivalent command

USAGE:
  f := factory.NewWarehouseFactory()
  cmd, err := f.ParseWarehouse(body)
  w, err := svc.CreateWarehouse(ctx, actor, cmd)

SEE ALSO:
  - warehousing/warehouse.go: CreateWarehouse and commodity validation
  - cmd/server/seed.go: Loads a file of definitions
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// WarehouseJSON is the JSON representation of a warehouse.
type WarehouseJSON struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name"`
	OwnerID        string          `json:"owner_id,omitempty"`
	ManagerID      string          `json:"manager_id,omitempty"`
	Address        string          `json:"address,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	TotalCapacity  decimal.Decimal `json:"total_capacity"`
	FilledCapacity decimal.Decimal `json:"filled_capacity"`
	Commodities    []CommodityJSON `json:"commodities,omitempty"`
}

// CommodityJSON represents one stored commodity and its price tiers.
type CommodityJSON struct {
	Name  string     `json:"name"`
	Tiers []TierJSON `json:"tiers"`
}

// TierJSON is the per-day price for a bag weight.
type TierJSON struct {
	Weight      decimal.Decimal `json:"weight"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

// =============================================================================
// WAREHOUSE FACTORY
// =============================================================================

// WarehouseFactory converts JSON warehouses to commands.
type WarehouseFactory struct{}

// NewWarehouseFactory creates a new warehouse factory.
func NewWarehouseFactory() *WarehouseFactory {
	return &WarehouseFactory{}
}

// ParseWarehouse parses a single JSON document.
func (f *WarehouseFactory) ParseWarehouse(data []byte) (warehousing.CreateWarehouseCommand, error) {
	var wj WarehouseJSON
	if err := json.Unmarshal(data, &wj); err != nil {
		return warehousing.CreateWarehouseCommand{}, fmt.Errorf("failed to parse warehouse JSON: %w", err)
	}
	return f.FromJSON(wj)
}

// ParseWarehouses accepts one document or an array of them.
func (f *WarehouseFactory) ParseWarehouses(data []byte) ([]warehousing.CreateWarehouseCommand, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty warehouse document")
	}
	if trimmed[0] != '[' {
		cmd, err := f.ParseWarehouse(trimmed)
		if err != nil {
			return nil, err
		}
		return []warehousing.CreateWarehouseCommand{cmd}, nil
	}

	var list []WarehouseJSON
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("failed to parse warehouse JSON: %w", err)
	}
	cmds := make([]warehousing.CreateWarehouseCommand, 0, len(list))
	for i, wj := range list {
		cmd, err := f.FromJSON(wj)
		if err != nil {
			return nil, fmt.Errorf("warehouse %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// FromJSON converts WarehouseJSON to a CreateWarehouseCommand.
func (f *WarehouseFactory) FromJSON(wj WarehouseJSON) (warehousing.CreateWarehouseCommand, error) {
	if strings.TrimSpace(wj.Name) == "" {
		return warehousing.CreateWarehouseCommand{}, generic.NewValidationError("name", "is required")
	}
	unit, err := parseUnit(wj.Unit)
	if err != nil {
		return warehousing.CreateWarehouseCommand{}, err
	}

	cmd := warehousing.CreateWarehouseCommand{
		ID:             generic.WarehouseID(wj.ID),
		Name:           wj.Name,
		OwnerID:        wj.OwnerID,
		ManagerID:      wj.ManagerID,
		Address:        wj.Address,
		TotalCapacity:  wj.TotalCapacity,
		FilledCapacity: wj.FilledCapacity,
		Unit:           unit,
	}
	for _, cj := range wj.Commodities {
		c := warehousing.Commodity{Name: strings.TrimSpace(cj.Name)}
		for _, tj := range cj.Tiers {
			c.Tiers = append(c.Tiers, warehousing.PriceTier{
				Weight:      tj.Weight,
				PricePerDay: tj.PricePerDay,
			})
		}
		cmd.Commodities = append(cmd.Commodities, c)
	}
	return cmd, nil
}

// ToJSON converts a Warehouse back to its JSON form.
func (f *WarehouseFactory) ToJSON(w *warehousing.Warehouse) WarehouseJSON {
	wj := WarehouseJSON{
		ID:             string(w.ID),
		Name:           w.Name,
		OwnerID:        w.OwnerID,
		ManagerID:      w.ManagerID,
		Address:        w.Address,
		Unit:           string(w.Capacity.Total.Unit),
		TotalCapacity:  w.Capacity.Total.Value,
		FilledCapacity: w.Capacity.Filled.Value,
	}
	for _, c := range w.Commodities {
		cj := CommodityJSON{Name: c.Name}
		for _, t := range c.Tiers {
			cj.Tiers = append(cj.Tiers, TierJSON{Weight: t.Weight, PricePerDay: t.PricePerDay})
		}
		wj.Commodities = append(wj.Commodities, cj)
	}
	return wj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseUnit(s string) (generic.Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mt", "tonnes", "tons":
		return generic.UnitMT, nil
	case "kg", "kgs":
		return generic.UnitKG, nil
	case "bags":
		return generic.UnitBags, nil
	default:
		return "", generic.NewValidationError("unit", fmt.Sprintf("unknown capacity unit %q", s))
	}
}
