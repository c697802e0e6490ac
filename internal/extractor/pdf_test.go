package extractor

import (
	"errors"
	"strings"
	"testing"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf header", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"), true},
		{"plain text", []byte("Account Number: 291 431 120"), false},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.data); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractTextRejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("hello"), "")
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}

	_, err = ExtractTextCombined([]byte("hello"), "")
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
}

func TestExtractTextBrokenPDF(t *testing.T) {
	if _, err := ExtractText([]byte("%PDF-1.4\nnot really a pdf"), ""); err == nil {
		t.Error("expected an error for a truncated PDF")
	}
}

func TestExtractTextWrongPassword(t *testing.T) {
	_, err := ExtractText([]byte("%PDF-1.4\nnot really a pdf"), "secret")
	if err == nil || !strings.Contains(err.Error(), "decrypt") {
		t.Errorf("expected a decrypt error, got %v", err)
	}
}

func TestIsReadableText(t *testing.T) {
	billPage := "Your electricity account\nAccount Number: 291 431 120\nTotal amount due $186.59"

	tests := []struct {
		name  string
		pages []string
		want  bool
	}{
		{"bill text", []string{billPage}, true},
		{"too short", []string{"Account 1"}, false},
		{"no bill words", []string{strings.Repeat("lorem ipsum dolor sit amet ", 5)}, false},
		{"garbage glyphs", []string{strings.Repeat("ÀÁÂÃÄÅÆÇÈÉ bill ", 10)}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReadableText(tt.pages); got != tt.want {
				t.Errorf("isReadableText() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality([]string{"abc 123"}); q != 1 {
		t.Errorf("expected 1.0 for plain ASCII, got %f", q)
	}
	if q := textQuality([]string{"ÀÁ"}); q != 0 {
		t.Errorf("expected 0 for accented garbage, got %f", q)
	}
	if q := textQuality(nil); q != 0 {
		t.Errorf("expected 0 for no text, got %f", q)
	}
}
