package data

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveensg/folioagent/internal/models"
)

func TestYearlyLifecycle(t *testing.T) {
	mgr := testManager(t)
	store := mgr.YearlyDataStore()
	ctx := testContext()

	now := time.Now().Truncate(time.Second).UTC()
	record := &models.YearlyRecord{
		ID:        "yl_2024",
		Year:      2024,
		Income:    120000,
		Expenses:  70000,
		Savings:   50000,
		NetWorth:  340000,
		Currency:  models.CurrencySGD,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Create
	require.NoError(t, store.Create(ctx, record))

	// GetByYear
	got, err := store.GetByYear(ctx, 2024)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "yl_2024", got.ID)
	assert.Equal(t, 120000.0, got.Income)
	assert.Equal(t, 50000.0, got.Savings)

	// Update
	record.Income = 130000
	require.NoError(t, store.Update(ctx, record))

	updated, err := store.GetByYear(ctx, 2024)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 130000.0, updated.Income)

	// Delete
	require.NoError(t, store.Delete(ctx, "yl_2024"))
	gone, err := store.GetByYear(ctx, 2024)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestYearlyGetByYearMissing(t *testing.T) {
	mgr := testManager(t)
	store := mgr.YearlyDataStore()
	ctx := testContext()

	got, err := store.GetByYear(ctx, 1999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestYearlyListOrderedByYear(t *testing.T) {
	mgr := testManager(t)
	store := mgr.YearlyDataStore()
	ctx := testContext()

	for _, year := range []int{2025, 2022, 2024} {
		require.NoError(t, store.Create(ctx, &models.YearlyRecord{
			ID:       fmt.Sprintf("ylo_%d", year),
			Year:     year,
			Income:   100000,
			Currency: models.CurrencySGD,
		}))
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 2022, records[0].Year)
	assert.Equal(t, 2024, records[1].Year)
	assert.Equal(t, 2025, records[2].Year)
}
