package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned when the uploaded bytes are not a PDF document.
var ErrNotPDF = errors.New("file is not a PDF")

// IsPDF sniffs the content type of data.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

// ExtractText returns the text content of each page of an in-memory PDF.
// Encrypted bills are decrypted first when a password is supplied. The
// structured library is tried with several methods before falling back to
// the external pdftotext command (poppler-utils) and finally OCR.
func ExtractText(data []byte, password string) ([]string, error) {
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}

	if password != "" {
		decrypted, err := decrypt(data, password)
		if err != nil {
			return nil, err
		}
		data = decrypted
	}

	pages, libErr := extractWithLibrary(data)
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}

	popplerPages, popplerErr := extractWithPdftotext(data)
	if popplerErr == nil && isReadableText(popplerPages) {
		return popplerPages, nil
	}

	// Scanned bills have no text layer at all.
	if IsOCRAvailable() {
		ocrPages, ocrErr := extractWithOCR(data)
		if ocrErr == nil && isReadableText(ocrPages) {
			return ocrPages, nil
		}
	}

	// Never return garbage text.
	if libErr != nil {
		return nil, fmt.Errorf("PDF text extraction failed: %w. The bill may be image-based/scanned or use custom fonts", libErr)
	}
	return nil, fmt.Errorf("no readable text could be extracted from PDF. The bill may be image-based/scanned, or uses custom font encodings that cannot be decoded")
}

// ExtractTextCombined returns all pages joined into the single text the bill
// parser consumes.
func ExtractTextCombined(data []byte, password string) (string, error) {
	pages, err := ExtractText(data, password)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// decrypt removes password protection with pdfcpu.
func decrypt(data []byte, password string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return out.Bytes(), nil
}

// textQuality returns the ratio of basic ASCII readable characters to total
// characters, 0.0-1.0. unicode.IsLetter is too broad: it accepts the accented
// garbage produced by identity-encoded fonts.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(".,-/:;()'\"$%&@#!?+=*^", r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// billWords appear in virtually every electricity bill.
var billWords = []string{
	"account", "bill", "amount", "total", "usage", "kwh", "meter",
	"reading", "charges", "period", "date", "supply", "electricity",
}

func containsBillWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range billWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires >50 chars, >60% readable ASCII and at least one
// word expected on a bill.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsBillWords(pages)
}

// extractWithPdftotext shells out to poppler for PDFs the library cannot read.
func extractWithPdftotext(data []byte) ([]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	var pages []string
	err := withTempPDF(data, func(path string) error {
		numPages := max(pdfPageCount(path), 1)
		// Per page, to preserve page boundaries.
		for i := 1; i <= numPages; i++ {
			pageStr := strconv.Itoa(i)
			out, err := exec.Command("pdftotext", "-layout", "-f", pageStr, "-l", pageStr, path, "-").Output()
			if err != nil {
				continue
			}
			if text := strings.TrimSpace(string(out)); text != "" {
				pages = append(pages, text)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftotext produced no output")
	}
	return pages, nil
}

// withTempPDF writes data to a temporary file for the command-line tools.
func withTempPDF(data []byte, fn func(path string) error) error {
	tmp, err := os.CreateTemp("", "bill-*.pdf")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return fn(tmp.Name())
}

// pdfPageCount asks pdfinfo for the page count; 0 when unknown.
func pdfPageCount(path string) int {
	out, err := exec.Command("pdfinfo", path).Output()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "Pages:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// extractWithLibrary uses ledongthuc/pdf with multiple methods.
func extractWithLibrary(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	r, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return nil, openErr
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	// Method 1: GetTextByRow keeps the layout best.
	pages = extractByRow(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 2: Content() with coordinate-based row reconstruction.
	pages = extractByContent(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 3: Page.GetPlainText with the page fonts.
	pages = extractByPagePlainText(r, numPages)
	if isReadableText(pages) {
		return pages, nil
	}

	// Method 4: whole-document Reader.GetPlainText.
	plainText := extractByReaderPlainText(r)
	if isReadableText([]string{plainText}) {
		return []string{plainText}, nil
	}

	return pages, nil
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent groups text pieces by Y coordinate to rebuild rows, then
// sorts each row by X. Pieces that touch are concatenated without a space,
// which is how a bill's meter table collapses into one run-on token.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type textItem struct {
		x float64
		s string
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rowMap := make(map[int][]textItem)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			yKey := int(math.Round(t.Y))
			rowMap[yKey] = append(rowMap[yKey], textItem{x: t.X, s: t.S})
		}

		// PDF Y grows upwards.
		yKeys := make([]int, 0, len(rowMap))
		for y := range rowMap {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rowMap[y]
			sort.Slice(items, func(a, b int) bool {
				return items[a].x < items[b].x
			})

			var parts []string
			var prevX float64
			for j, item := range items {
				if j > 0 && item.x-prevX > 15 {
					parts = append(parts, "  ")
				}
				parts = append(parts, item.s)
				prevX = item.x
			}
			if line := strings.TrimSpace(strings.Join(parts, "")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
