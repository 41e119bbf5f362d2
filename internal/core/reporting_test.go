package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestValueLots_WeightedAverage(t *testing.T) {
	p := &Product{ID: uuid.New(), Name: "Coca-Cola 1.5L"}
	lots := []StockLot{
		{QuantityIn: 10, QuantityOut: 6, UnitCostGross: ptr(int64(1000))}, // 4 left
		{QuantityIn: 2, QuantityOut: 0, UnitCostGross: ptr(int64(1300))},  // 2 left
		{QuantityIn: 3, QuantityOut: 0},                                   // uncosted
	}

	r := valueLots(p, lots)
	assert.Equal(t, int64(9), r.Available)
	assert.Equal(t, 3, r.Lots)
	assert.True(t, r.StockValue.Equal(decimal.NewFromInt(6600)), r.StockValue.String())
	require.NotNil(t, r.AverageUnitCost)
	assert.True(t, r.AverageUnitCost.Equal(decimal.NewFromInt(1100)), r.AverageUnitCost.String())
}

func TestValueLots_NoCosts(t *testing.T) {
	r := valueLots(&Product{Name: "Pan"}, []StockLot{{QuantityIn: 5}})
	assert.Nil(t, r.AverageUnitCost)
	assert.True(t, r.StockValue.IsZero())
	assert.Equal(t, int64(5), r.Available)
}
