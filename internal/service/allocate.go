package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// ExpenseAllocation is a bill summary split between parties.
type ExpenseAllocation struct {
	models.BillSummary
	Allocations []models.Allocation `json:"allocations"`
	Description string              `json:"description"`
	EqualSplit  bool                `json:"equalSplit"`
}

var hundred = decimal.NewFromInt(100)

// SummarizeUpload extracts a bill summary and allocates it between parties.
func (s *Service) SummarizeUpload(ctx context.Context, u Upload) (*ExpenseAllocation, error) {
	text, err := s.ExtractText(ctx, u)
	if err != nil {
		return nil, err
	}
	summary, err := s.parser.ParseSummary(text)
	if err != nil {
		return nil, err
	}
	return s.AllocateSummary(ctx, *summary)
}

// AllocateSummary splits a bill equally between the parties linked to its
// account number, or between all parties when none are linked.
func (s *Service) AllocateSummary(ctx context.Context, summary models.BillSummary) (*ExpenseAllocation, error) {
	parties, err := s.store.PartiesByAccount(ctx, summary.AccountNumber)
	if err != nil {
		return nil, err
	}

	result := &ExpenseAllocation{
		BillSummary: summary,
		Description: "Synergy bill for " + summary.AccountNumber,
	}
	if len(parties) == 0 {
		if parties, err = s.store.ListParties(ctx); err != nil {
			return nil, err
		}
		if len(parties) == 0 {
			return nil, ErrNoParties
		}
		result.EqualSplit = true
		result.Description += " (equal split)"
	}

	result.Allocations = equalSplit(parties)
	s.logger.Info("bill allocated",
		zap.String("account", summary.AccountNumber),
		zap.Int("parties", len(parties)),
		zap.Bool("equal_split", result.EqualSplit),
	)
	return result, nil
}

// equalSplit gives each party 100/n percent at two decimal places; the last
// party absorbs the rounding so the shares always total 100.
func equalSplit(parties []models.Party) []models.Allocation {
	n := decimal.NewFromInt(int64(len(parties)))
	share := hundred.DivRound(n, 2)

	allocations := make([]models.Allocation, len(parties))
	remaining := hundred
	for i, p := range parties {
		pct := share
		if i == len(parties)-1 {
			pct = remaining
		}
		remaining = remaining.Sub(pct)
		allocations[i] = models.Allocation{PartyID: p.ID, Percentage: pct}
	}
	return allocations
}

// CreateParty registers a party bills can be allocated to.
func (s *Service) CreateParty(ctx context.Context, p *models.Party) error {
	p.Name = strings.TrimSpace(p.Name)
	p.ElectricityAccountNumber = strings.Join(strings.Fields(p.ElectricityAccountNumber), "")
	if p.Name == "" {
		return &MissingFieldsError{Fields: []string{"name"}}
	}
	if err := s.store.CreateParty(ctx, p); err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

// ListParties returns every party.
func (s *Service) ListParties(ctx context.Context) ([]models.Party, error) {
	return s.store.ListParties(ctx)
}

// DeleteParty removes a party so later summaries no longer allocate to it.
func (s *Service) DeleteParty(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteParty(ctx, id); err != nil {
		return err
	}
	s.logger.Info("party deleted", zap.String("id", id.String()))
	return nil
}
