package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// CreateParty stores a bookkeeping party, assigning its ID.
func (s *Store) CreateParty(ctx context.Context, p *models.Party) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("party name is required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO parties
		(id, name, electricity_account_number, created_at) VALUES (?, ?, ?, ?)`),
		p.ID.String(), p.Name, p.ElectricityAccountNumber, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert party: %w", err)
	}
	return nil
}

// ListParties returns all parties ordered by name.
func (s *Store) ListParties(ctx context.Context) ([]models.Party, error) {
	return s.queryParties(ctx, `SELECT id, name, electricity_account_number, created_at
		FROM parties ORDER BY name, created_at`)
}

// PartiesByAccount returns the parties linked to an electricity account.
func (s *Store) PartiesByAccount(ctx context.Context, account string) ([]models.Party, error) {
	return s.queryParties(ctx, s.rebind(`SELECT id, name, electricity_account_number, created_at
		FROM parties WHERE electricity_account_number = ? ORDER BY name, created_at`), account)
}

// DeleteParty removes one party or returns ErrNotFound.
func (s *Store) DeleteParty(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM parties WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryParties(ctx context.Context, query string, args ...any) ([]models.Party, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	parties := []models.Party{}
	for rows.Next() {
		var (
			p       models.Party
			id      string
			created string
		)
		if err := rows.Scan(&id, &p.Name, &p.ElectricityAccountNumber, &created); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad party id %q: %w", id, err)
		}
		p.CreatedAt = parseTime(created)
		parties = append(parties, p)
	}
	return parties, rows.Err()
}
