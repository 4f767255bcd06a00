package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/warehouse-engine/factory"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

const nashik = `{
  "id": "wh-nashik-1",
  "name": "Nashik Central",
  "owner_id": "owner-1",
  "total_capacity": "1000",
  "filled_capacity": 120.5,
  "commodities": [
    {"name": " Wheat ", "tiers": [{"weight": "50", "price_per_day": "2.5"}]}
  ]
}`

func TestParseWarehouse(t *testing.T) {
	f := factory.NewWarehouseFactory()

	cmd, err := f.ParseWarehouse([]byte(nashik))

	require.NoError(t, err)
	assert.Equal(t, generic.WarehouseID("wh-nashik-1"), cmd.ID)
	assert.Equal(t, "owner-1", cmd.OwnerID)
	assert.Equal(t, generic.UnitMT, cmd.Unit, "unit defaults to MT")
	assert.True(t, cmd.TotalCapacity.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "120.5", cmd.FilledCapacity.String())
	require.Len(t, cmd.Commodities, 1)
	assert.Equal(t, "Wheat", cmd.Commodities[0].Name)
	assert.Equal(t, "2.5", cmd.Commodities[0].Tiers[0].PricePerDay.String())
}

func TestParseWarehouse_Invalid(t *testing.T) {
	f := factory.NewWarehouseFactory()

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing name", `{"total_capacity": "10"}`},
		{"unknown unit", `{"name": "x", "unit": "litres", "total_capacity": "10"}`},
		{"bad decimal", `{"name": "x", "total_capacity": "ten"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseWarehouse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := f.ParseWarehouse([]byte(`{"total_capacity": "10"}`))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestParseWarehouses_SingleOrArray(t *testing.T) {
	f := factory.NewWarehouseFactory()

	one, err := f.ParseWarehouses([]byte("  " + nashik))
	require.NoError(t, err)
	assert.Len(t, one, 1)

	many, err := f.ParseWarehouses([]byte(`[` + nashik + `, {"name": "Pune", "unit": "kg", "total_capacity": 5000}]`))
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, generic.UnitKG, many[1].Unit)

	_, err = f.ParseWarehouses([]byte(`[{"name": ""}]`))
	assert.ErrorContains(t, err, "warehouse 0")

	_, err = f.ParseWarehouses(nil)
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewWarehouseFactory()
	w := &warehousing.Warehouse{
		ID:      "wh-1",
		Name:    "Nashik Central",
		OwnerID: "owner-1",
		Capacity: generic.Capacity{
			Total:  generic.NewAmountFromInt(1000, generic.UnitMT),
			Filled: generic.NewAmountFromInt(100, generic.UnitMT),
		},
		Commodities: []warehousing.Commodity{{
			Name:  "Rice",
			Tiers: []warehousing.PriceTier{{Weight: decimal.NewFromInt(50), PricePerDay: decimal.NewFromInt(3)}},
		}},
	}

	cmd, err := f.FromJSON(f.ToJSON(w))

	require.NoError(t, err)
	assert.Equal(t, w.ID, cmd.ID)
	assert.True(t, cmd.FilledCapacity.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Rice", cmd.Commodities[0].Name)
}
