package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/electricity-bill-converter/internal/extractor"
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
	"github.com/insightdelivered/electricity-bill-converter/internal/parser"
	"github.com/insightdelivered/electricity-bill-converter/internal/publish"
	"github.com/insightdelivered/electricity-bill-converter/internal/writer"
)

var (
	// ErrNoParties is returned when a bill cannot be allocated because no
	// parties exist.
	ErrNoParties = errors.New("no parties found in the system")
	// ErrInvalidBill wraps a bill that breaks the record invariants.
	ErrInvalidBill = errors.New("invalid bill")
	// ErrUnsupportedFormat is returned for export formats other than csv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// MissingFieldsError lists the required fields absent from a submitted bill.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "Missing required fields: " + strings.Join(e.Fields, ", ")
}

// BillStore is the persistence the service needs.
type BillStore interface {
	InsertBill(ctx context.Context, b *models.Bill) error
	ListBills(ctx context.Context) ([]models.Bill, error)
	GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	DeleteBill(ctx context.Context, id uuid.UUID) error
	CreateParty(ctx context.Context, p *models.Party) error
	ListParties(ctx context.Context) ([]models.Party, error)
	PartiesByAccount(ctx context.Context, account string) ([]models.Party, error)
	DeleteParty(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// Upload is one PDF submitted for parsing.
type Upload struct {
	Filename string
	Data     []byte
	Password string
}

// BatchResult is the outcome for one document of a batch.
type BatchResult struct {
	Filename string
	Bill     *models.ParsedBill
	Err      error
}

// Service ties extraction, parsing, storage and publishing together.
type Service struct {
	store     BillStore
	publisher publish.Publisher
	parser    *parser.ElectricityParser
	extract   func(data []byte, password string) (string, error)
	workers   int
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor replaces PDF text extraction, for callers that already
// hold bill text.
func WithExtractor(fn func(data []byte, password string) (string, error)) Option {
	return func(s *Service) { s.extract = fn }
}

// New returns a Service. publisher may be nil; workers < 1 means 1.
func New(store BillStore, publisher publish.Publisher, workers int, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = publish.Nop{}
	}
	if workers < 1 {
		workers = 1
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		parser:    parser.NewElectricityParser(logger),
		extract:   extractor.ExtractTextCombined,
		workers:   workers,
		logger:    logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractText returns the bill text of an uploaded PDF.
func (s *Service) ExtractText(ctx context.Context, u Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := s.extract(u.Data, u.Password)
	if err != nil {
		s.logger.Warn("text extraction failed", zap.String("file", u.Filename), zap.Error(err))
		return "", err
	}
	return text, nil
}

// ParseUpload extracts and parses one bill.
func (s *Service) ParseUpload(ctx context.Context, u Upload) (*models.ParsedBill, error) {
	text, err := s.ExtractText(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.ParseText(text, u.Filename)
}

// ParseText parses already-extracted bill text.
func (s *Service) ParseText(text, filename string) (*models.ParsedBill, error) {
	bill, err := s.parser.Parse(text)
	if err != nil {
		s.logger.Info("bill parse failed", zap.String("file", filename), zap.Error(err))
		return nil, err
	}
	s.logger.Info("bill parsed",
		zap.String("file", filename),
		zap.String("account", bill.AccountNumber),
		zap.String("bill_date", bill.BillDate),
	)
	return bill, nil
}

// ParseBatch parses uploads concurrently. Results keep the input order and a
// failing document never affects the others.
func (s *Service) ParseBatch(ctx context.Context, uploads []Upload) []BatchResult {
	results := make([]BatchResult, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, u := range uploads {
		results[i].Filename = u.Filename
		g.Go(func() error {
			bill, err := s.ParseUpload(gctx, u)
			results[i].Bill = bill
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SubmitBill stores a client-submitted bill. Absent required fields are
// reported together before any other check.
func (s *Service) SubmitBill(ctx context.Context, in models.BillInput) (*models.Bill, error) {
	if missing := in.MissingFields(); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	return s.SaveBill(ctx, in.ParsedBill(), in.PDFFilePath)
}

// SaveBill validates and stores a bill, then announces it. A publish failure
// is logged; the bill stays stored.
func (s *Service) SaveBill(ctx context.Context, parsed models.ParsedBill, pdfPath string) (*models.Bill, error) {
	if err := parsed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBill, err)
	}

	bill := &models.Bill{ParsedBill: parsed, PDFFilePath: pdfPath}
	if err := s.store.InsertBill(ctx, bill); err != nil {
		return nil, err
	}
	s.logger.Info("bill saved", zap.String("id", bill.ID.String()), zap.String("account", bill.AccountNumber))

	if err := s.publisher.PublishBill(ctx, *bill); err != nil {
		s.logger.Warn("bill saved but not published", zap.String("id", bill.ID.String()), zap.Error(err))
	}
	return bill, nil
}

// ListBills returns stored bills, newest bill date first.
func (s *Service) ListBills(ctx context.Context) ([]models.Bill, error) {
	return s.store.ListBills(ctx)
}

// GetBill returns one stored bill.
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	return s.store.GetBill(ctx, id)
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DeleteBill removes a stored bill.
func (s *Service) DeleteBill(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteBill(ctx, id); err != nil {
		return err
	}
	s.logger.Info("bill deleted", zap.String("id", id.String()))
	return nil
}

// ExportBills writes every stored bill to w as csv or xlsx.
func (s *Service) ExportBills(ctx context.Context, format string, w io.Writer) error {
	var out interface {
		Write(io.Writer, *writer.Export) error
	}
	switch strings.ToLower(format) {
	case "", "csv":
		out = &writer.CSVWriter{IncludeHeader: false}
	case "xlsx":
		out = &writer.XLSXWriter{IncludeHeader: false}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return err
	}
	return out.Write(w, &writer.Export{Source: "electricity_bills", Bills: bills})
}
