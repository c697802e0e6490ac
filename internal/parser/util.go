package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/electricity-bill-converter/internal/models"
)

// Date grammars found in bill text. The month suffix absorbs full names
// ("March") and the numeric form tolerates stray spaces from PDF kerning.
const (
	monthNames  = `(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*`
	textDate    = `\d{1,2}\s+` + monthNames + `\s+\d{4}`
	numericDate = `(?:\d\s*){1,2}[/-](?:\d\s*){1,2}[/-](?:\d\s*){4}`
	// rangeSep joins the two endpoints of a metering period.
	rangeSep = `(?:\s*(?:-|–|to)\s*|\s+)`
	// number is a currency-like numeral with optional thousands separators.
	number = `([\d,]+\.?\d*)`
)

var monthMap = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	textDatePattern  = regexp.MustCompile(`(?i)^(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{4})$`)
	dateSplitPattern = regexp.MustCompile(`[/-]`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// normalizeDate converts "13 Mar 2018", "13/3/2018" or "1 3 / 0 3 / 2018"
// to "2018-03-13". The result is always a valid calendar date.
func normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)

	var day, month, year string
	if m := textDatePattern.FindStringSubmatch(s); m != nil {
		day, year = m[1], m[3]
		month = strconv.Itoa(int(monthMap[strings.ToLower(m[2])]))
	} else {
		parts := dateSplitPattern.Split(whitespace.ReplaceAllString(s, ""), -1)
		if len(parts) != 3 {
			return "", fmt.Errorf("unable to parse date: %s", s)
		}
		day, month, year = parts[0], parts[1], parts[2]
	}

	d, err1 := strconv.Atoi(day)
	mo, err2 := strconv.Atoi(month)
	y, err3 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", fmt.Errorf("unable to parse date: %s", s)
	}

	iso := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	// time.Parse rejects impossible days such as 31 Feb.
	if _, err := time.Parse(models.DateLayout, iso); err != nil {
		return "", fmt.Errorf("unable to parse date: %s", s)
	}
	return iso, nil
}

// parseDecimal converts a string like "1,234.56" or "$1,234.56" to a decimal.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "\u00A0", "") // non-breaking space
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, ".")

	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	return decimal.NewFromString(s)
}

// cleanAccountNumber strips the spacing PDF extraction leaves between digits.
func cleanAccountNumber(s string) string {
	return strings.ToUpper(whitespace.ReplaceAllString(s, ""))
}
