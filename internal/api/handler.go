package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/insightdelivered/electricity-bill-converter/internal/extractor"
	"github.com/insightdelivered/electricity-bill-converter/internal/models"
	"github.com/insightdelivered/electricity-bill-converter/internal/parser"
	"github.com/insightdelivered/electricity-bill-converter/internal/service"
	"github.com/insightdelivered/electricity-bill-converter/internal/store"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

const mimePDF = "application/pdf"

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// BatchItem is one document's outcome in a batch parse.
type BatchItem struct {
	Filename string             `json:"filename"`
	Success  bool               `json:"success"`
	Error    string             `json:"error,omitempty"`
	Code     string             `json:"code,omitempty"`
	Data     *models.ParsedBill `json:"data,omitempty"`
}

// SaveBillRequest is the body of POST /api/bills.
type SaveBillRequest = models.BillInput

// Handler holds the HTTP handlers for the API.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler returns handlers backed by svc.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("api")}
}

// HandleHealth reports liveness and whether the database answers.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	if err := h.svc.Ping(c.UserContext()); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": "unreachable",
			"engine":   "fiber",
			"version":  Version,
		})
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"database": "ok",
		"engine":   "fiber",
		"version":  Version,
	})
}

// HandleParse parses one uploaded bill PDF (form field "file", optional
// "password").
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	upload, err := readUpload(c, "file")
	if err != nil {
		return writeFailure(c, fiber.StatusBadRequest, err)
	}

	bill, err := h.svc.ParseUpload(c.UserContext(), *upload)
	if err != nil {
		return h.parseFailure(c, upload.Filename, err)
	}
	return c.JSON(Response{Success: true, Data: bill})
}

// HandleParseBatch parses every PDF in the "files" form field.
func (h *Handler) HandleParseBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No files provided. Use form field 'files'.")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return writeError(c, fiber.StatusBadRequest, "No files provided. Use form field 'files'.")
	}

	password := c.FormValue("password")
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := openUpload(fh, password)
		if err != nil {
			return writeFailure(c, fiber.StatusBadRequest, err)
		}
		uploads = append(uploads, *u)
	}

	results := h.svc.ParseBatch(c.UserContext(), uploads)
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = BatchItem{Filename: r.Filename, Success: r.Err == nil, Data: r.Bill}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
			var billErr *parser.BillError
			if errors.As(r.Err, &billErr) {
				items[i].Code = billErr.Code
			}
		}
	}
	return c.JSON(Response{Success: true, Data: items})
}

// HandleSummary parses a bill summary and splits it between parties.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	upload, err := readUpload(c, "file")
	if err != nil {
		return writeFailure(c, fiber.StatusBadRequest, err)
	}

	allocation, err := h.svc.SummarizeUpload(c.UserContext(), *upload)
	switch {
	case err == nil:
		return c.JSON(Response{Success: true, Data: allocation})
	case errors.Is(err, service.ErrNoParties):
		return writeFailure(c, fiber.StatusNotFound, err)
	default:
		var billErr *parser.BillError
		if errors.As(err, &billErr) || errors.Is(err, extractor.ErrNotPDF) {
			return writeFailure(c, fiber.StatusBadRequest, err)
		}
		return h.parseFailure(c, upload.Filename, err)
	}
}

// HandleListBills returns stored bills, newest first.
func (h *Handler) HandleListBills(c *fiber.Ctx) error {
	bills, err := h.svc.ListBills(c.UserContext())
	if err != nil {
		h.logger.Error("list bills failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to fetch bills")
	}
	return c.JSON(Response{Success: true, Data: bills})
}

// HandleSaveBill stores a parsed or manually entered bill.
func (h *Handler) HandleSaveBill(c *fiber.Ctx) error {
	var req SaveBillRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid bill body: %v", err))
	}

	bill, err := h.svc.SubmitBill(c.UserContext(), req)
	if err != nil {
		var missing *service.MissingFieldsError
		switch {
		case errors.As(err, &missing):
			return writeFailure(c, fiber.StatusBadRequest, err)
		case errors.Is(err, store.ErrDuplicateBill):
			return writeFailure(c, fiber.StatusConflict, err)
		case errors.Is(err, service.ErrInvalidBill):
			return writeFailure(c, fiber.StatusBadRequest, err)
		}
		h.logger.Error("save bill failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to save bill")
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: bill})
}

// HandleGetBill returns one stored bill.
func (h *Handler) HandleGetBill(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Bill ID must be a UUID")
	}
	bill, err := h.svc.GetBill(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "Bill not found")
		}
		h.logger.Error("get bill failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to fetch bill")
	}
	return c.JSON(Response{Success: true, Data: bill})
}

// HandleDeleteBill removes a bill by ID.
func (h *Handler) HandleDeleteBill(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Bill ID must be a UUID")
	}
	if err := h.svc.DeleteBill(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "Bill not found")
		}
		h.logger.Error("delete bill failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to delete bill")
	}
	return c.JSON(Response{Success: true})
}

// HandleExport downloads every stored bill as csv (default) or xlsx.
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	format := strings.ToLower(c.Query("format", "csv"))

	var buf bytes.Buffer
	if err := h.svc.ExportBills(c.UserContext(), format, &buf); err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			return writeFailure(c, fiber.StatusBadRequest, err)
		}
		h.logger.Error("export failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Export failed")
	}

	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	c.Attachment("electricity-bills." + format)
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(buf.Bytes())
}

// HandleListParties returns every party.
func (h *Handler) HandleListParties(c *fiber.Ctx) error {
	parties, err := h.svc.ListParties(c.UserContext())
	if err != nil {
		h.logger.Error("list parties failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to fetch parties")
	}
	return c.JSON(Response{Success: true, Data: parties})
}

// HandleCreateParty registers a party.
func (h *Handler) HandleCreateParty(c *fiber.Ctx) error {
	var p models.Party
	if err := c.BodyParser(&p); err != nil {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid party body: %v", err))
	}
	if err := h.svc.CreateParty(c.UserContext(), &p); err != nil {
		var missing *service.MissingFieldsError
		if errors.As(err, &missing) {
			return writeFailure(c, fiber.StatusBadRequest, err)
		}
		h.logger.Error("create party failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to create party")
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: p})
}

// HandleDeleteParty removes a party by ID.
func (h *Handler) HandleDeleteParty(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Party ID must be a UUID")
	}
	if err := h.svc.DeleteParty(c.UserContext(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "Party not found")
		}
		h.logger.Error("delete party failed", zap.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "Failed to delete party")
	}
	return c.JSON(Response{Success: true})
}

// parseFailure maps extraction and parse errors: bill field errors and
// unreadable PDFs are 422, a non-PDF body is 400.
func (h *Handler) parseFailure(c *fiber.Ctx, filename string, err error) error {
	h.logger.Info("bill rejected", zap.String("file", filename), zap.Error(err))
	if errors.Is(err, extractor.ErrNotPDF) {
		return writeError(c, fiber.StatusBadRequest, "File must be a PDF")
	}
	return writeFailure(c, fiber.StatusUnprocessableEntity, err)
}

func readUpload(c *fiber.Ctx, field string) (*service.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("no file provided, use form field %q", field)
	}
	return openUpload(fh, c.FormValue("password"))
}

func openUpload(fh *multipart.FileHeader, password string) (*service.Upload, error) {
	if ct := fh.Header.Get(fiber.HeaderContentType); ct != mimePDF {
		return nil, fmt.Errorf("file must be a PDF (got %q)", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return &service.Upload{Filename: fh.Filename, Data: data, Password: password}, nil
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(Response{Success: false, Error: msg})
}

// writeFailure reports err, adding the code and field of a bill error.
func writeFailure(c *fiber.Ctx, status int, err error) error {
	resp := Response{Success: false, Error: err.Error()}
	var billErr *parser.BillError
	if errors.As(err, &billErr) {
		resp.Code = billErr.Code
		resp.Field = billErr.Field
	}
	return c.Status(status).JSON(resp)
}
