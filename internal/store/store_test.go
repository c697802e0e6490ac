package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBill(account, start, end string) *models.Bill {
	return &models.Bill{
		ParsedBill: models.ParsedBill{
			AccountNumber:      account,
			BillAmount:         decimal.RequireFromString("186.59"),
			BillDate:           end,
			BillDateRangeStart: start,
			BillDateRangeEnd:   end,
			TotalUnitsConsumed: decimal.NewFromInt(268),
			UnitsPerDay:        decimal.RequireFromString("9.2414"),
			IsEstimated:        true,
			MeterReading:       decimal.NewFromInt(84220),
		},
		PDFFilePath: "march.pdf",
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestInsertAndGetBill(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := sampleBill("291431120", "2018-02-13", "2018-03-14")
	require.NoError(t, s.InsertBill(ctx, b))
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := s.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "291431120", got.AccountNumber)
	assert.True(t, got.BillAmount.Equal(b.BillAmount))
	assert.True(t, got.UnitsPerDay.Equal(b.UnitsPerDay))
	assert.True(t, got.MeterReading.Equal(b.MeterReading))
	assert.True(t, got.IsEstimated)
	assert.Equal(t, "march.pdf", got.PDFFilePath)
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt))
}

func TestInsertBillDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBill(ctx, sampleBill("291431120", "2018-02-13", "2018-03-14")))
	err := s.InsertBill(ctx, sampleBill("291431120", "2018-02-13", "2018-03-14"))
	assert.ErrorIs(t, err, ErrDuplicateBill)

	// Same account, different period.
	require.NoError(t, s.InsertBill(ctx, sampleBill("291431120", "2018-03-15", "2018-04-14")))
}

func TestListBillsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.ListBills(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, s.InsertBill(ctx, sampleBill("111111111", "2018-01-01", "2018-01-31")))
	require.NoError(t, s.InsertBill(ctx, sampleBill("222222222", "2018-03-01", "2018-03-31")))
	require.NoError(t, s.InsertBill(ctx, sampleBill("333333333", "2018-02-01", "2018-02-28")))

	bills, err := s.ListBills(ctx)
	require.NoError(t, err)
	require.Len(t, bills, 3)
	assert.Equal(t, "2018-03-31", bills[0].BillDate)
	assert.Equal(t, "2018-02-28", bills[1].BillDate)
	assert.Equal(t, "2018-01-31", bills[2].BillDate)
}

func TestDeleteBill(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := sampleBill("291431120", "2018-02-13", "2018-03-14")
	require.NoError(t, s.InsertBill(ctx, b))
	require.NoError(t, s.DeleteBill(ctx, b.ID))

	_, err := s.GetBill(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteBill(ctx, b.ID), ErrNotFound)
}

func TestParties(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.CreateParty(ctx, &models.Party{Name: "  "}))

	landlord := &models.Party{Name: "Landlord", ElectricityAccountNumber: "291431120"}
	tenant := &models.Party{Name: "Tenant", ElectricityAccountNumber: "291431120"}
	other := &models.Party{Name: "Acme"}
	for _, p := range []*models.Party{landlord, tenant, other} {
		require.NoError(t, s.CreateParty(ctx, p))
		assert.NotEqual(t, uuid.Nil, p.ID)
	}

	all, err := s.ListParties(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Acme", all[0].Name)

	linked, err := s.PartiesByAccount(ctx, "291431120")
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, "Landlord", linked[0].Name)
	assert.Equal(t, "Tenant", linked[1].Name)

	none, err := s.PartiesByAccount(ctx, "999")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteParty(ctx, other.ID))
	assert.ErrorIs(t, s.DeleteParty(ctx, other.ID), ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "pgx"}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "WHERE x = ?", lite.rebind("WHERE x = ?"))
}
