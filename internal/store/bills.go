package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

const billColumns = `id, account_number, bill_amount, bill_date, bill_date_range_start,
	bill_date_range_end, total_units_consumed, units_per_day, is_estimated,
	meter_reading, pdf_file_path, created_at, updated_at`

// InsertBill stores b, assigning its ID and timestamps. A second bill for
// the same account and date range fails with ErrDuplicateBill.
func (s *Store) InsertBill(ctx context.Context, b *models.Bill) error {
	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	query := s.rebind(`INSERT INTO electricity_bills (` + billColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		b.ID.String(), b.AccountNumber, b.BillAmount.String(), b.BillDate,
		b.BillDateRangeStart, b.BillDateRangeEnd, b.TotalUnitsConsumed.String(),
		b.UnitsPerDay.String(), b.IsEstimated, b.MeterReading.String(),
		b.PDFFilePath, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBill
		}
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	s.logger.Debug("bill inserted", zap.String("id", b.ID.String()), zap.String("account", b.AccountNumber))
	return nil
}

// ListBills returns every stored bill, most recent bill date first.
func (s *Store) ListBills(ctx context.Context) ([]models.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+billColumns+`
		FROM electricity_bills ORDER BY bill_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

// GetBill returns one bill or ErrNotFound.
func (s *Store) GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+billColumns+`
		FROM electricity_bills WHERE id = ?`), id.String())
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// DeleteBill removes one bill or returns ErrNotFound.
func (s *Store) DeleteBill(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM electricity_bills WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (*models.Bill, error) {
	var (
		b                models.Bill
		id               string
		created, updated string
	)
	err := row.Scan(&id, &b.AccountNumber, &b.BillAmount, &b.BillDate,
		&b.BillDateRangeStart, &b.BillDateRangeEnd, &b.TotalUnitsConsumed,
		&b.UnitsPerDay, &b.IsEstimated, &b.MeterReading, &b.PDFFilePath,
		&created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bill: %w", err)
	}
	if b.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad bill id %q: %w", id, err)
	}
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
