package extractor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// IsOCRAvailable reports whether pdftoppm and tesseract are installed.
func IsOCRAvailable() bool {
	_, err1 := exec.LookPath("pdftoppm")
	_, err2 := exec.LookPath("tesseract")
	return err1 == nil && err2 == nil
}

// extractWithOCR renders each page at 300 DPI with pdftoppm and reads it
// back with Tesseract. Only used for image-only (scanned) bills.
func extractWithOCR(data []byte) ([]string, error) {
	if !IsOCRAvailable() {
		return nil, fmt.Errorf("OCR needs pdftoppm (poppler-utils) and tesseract (tesseract-ocr)")
	}

	tmpDir, err := os.MkdirTemp("", "bill-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var images []string
	err = withTempPDF(data, func(path string) error {
		prefix := filepath.Join(tmpDir, "page")
		if out, err := exec.Command("pdftoppm", "-r", "300", "-png", path, prefix).CombinedOutput(); err != nil {
			return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, out)
		}
		images, err = filepath.Glob(prefix + "*.png")
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	sort.Strings(images)

	var pages []string
	for _, img := range images {
		// PSM 6: a single uniform block, which suits bill summary boxes.
		out, err := exec.Command("tesseract", img, "stdout", "-l", "eng", "--psm", "6").Output()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("tesseract OCR produced no text from %d page images", len(images))
	}
	return pages, nil
}
