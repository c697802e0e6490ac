package parser

import (
	"testing"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"13 Mar 2018", "2018-03-13", false},
		{"3 Jan 2021", "2021-01-03", false},
		{"3 jan 2021", "2021-01-03", false},
		{"12 April 2018", "2018-04-12", false},
		{"1 DEC 2019", "2019-12-01", false},
		{"13/3/2018", "2018-03-13", false},
		{"13-03-2018", "2018-03-13", false},
		{"1 3 / 0 3 / 2 0 1 8", "2018-03-13", false},
		{"31 Feb 2018", "", true},
		{"32/01/2018", "", true},
		{"13/2018", "", true},
		{"not a date", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := normalizeDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("normalizeDate(%q): got %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeDateAllMonths(t *testing.T) {
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	want := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}

	for i, m := range months {
		for _, day := range []string{"1", "9", "10", "28"} {
			input := day + " " + m + " 2021"
			got, err := normalizeDate(input)
			if err != nil {
				t.Fatalf("normalizeDate(%q): %v", input, err)
			}
			expected := "2021-" + want[i] + "-" + pad2(day)
			if got != expected {
				t.Errorf("normalizeDate(%q): got %q, want %q", input, got, expected)
			}
		}
	}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"186.59", "186.59", false},
		{"1,234.56", "1234.56", false},
		{"$25.99", "25.99", false},
		{" 25.99 ", "25.99", false},
		{"268", "268", false},
		{"268.", "268", false},
		{"728.0000", "728", false},
		{",", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCleanAccountNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"291 431 120", "291431120"},
		{"291431120\n", "291431120"},
		{"2 9 1 4 3 1 1 2 0 5", "2914311205"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := cleanAccountNumber(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
