package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO layout every bill date is normalized to.
const DateLayout = "2006-01-02"

func init() {
	// Amounts and readings go out as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParsedBill is the structured record recovered from one electricity bill.
type ParsedBill struct {
	AccountNumber      string          `json:"accountNumber"`
	BillAmount         decimal.Decimal `json:"billAmount"`
	BillDate           string          `json:"billDate"`
	BillDateRangeStart string          `json:"billDateRangeStart"`
	BillDateRangeEnd   string          `json:"billDateRangeEnd"`
	TotalUnitsConsumed decimal.Decimal `json:"totalUnitsConsumed"`
	UnitsPerDay        decimal.Decimal `json:"unitsPerDay"`
	IsEstimated        bool            `json:"isEstimated"`
	MeterReading       decimal.Decimal `json:"meterReading"`
}

// UnitsPerDayPlaces is how many decimals a daily average is shown with.
// Stored values keep full precision.
const UnitsPerDayPlaces = 4

// Validate checks the record invariants: calendar dates, an ordered range,
// non-negative quantities and a positive meter reading.
func (b *ParsedBill) Validate() error {
	if b.AccountNumber == "" {
		return fmt.Errorf("accountNumber is required")
	}
	dates := []struct{ name, value string }{
		{"billDate", b.BillDate},
		{"billDateRangeStart", b.BillDateRangeStart},
		{"billDateRangeEnd", b.BillDateRangeEnd},
	}
	for _, d := range dates {
		if _, err := time.Parse(DateLayout, d.value); err != nil {
			return fmt.Errorf("%s %q is not a YYYY-MM-DD date", d.name, d.value)
		}
	}
	if b.BillDateRangeEnd < b.BillDateRangeStart {
		return fmt.Errorf("billDateRangeEnd %s is before billDateRangeStart %s", b.BillDateRangeEnd, b.BillDateRangeStart)
	}
	if b.BillAmount.IsNegative() {
		return fmt.Errorf("billAmount cannot be negative")
	}
	if b.TotalUnitsConsumed.IsNegative() {
		return fmt.Errorf("totalUnitsConsumed cannot be negative")
	}
	if b.UnitsPerDay.IsNegative() {
		return fmt.Errorf("unitsPerDay cannot be negative")
	}
	if !b.MeterReading.IsPositive() {
		return fmt.Errorf("meterReading must be positive, got %s", b.MeterReading)
	}
	return nil
}

// RangeDays is the whole number of days between the range endpoints.
func (b *ParsedBill) RangeDays() int {
	start, err1 := time.Parse(DateLayout, b.BillDateRangeStart)
	end, err2 := time.Parse(DateLayout, b.BillDateRangeEnd)
	if err1 != nil || err2 != nil {
		return 0
	}
	// Unix seconds, since a time.Duration overflows past ~292 years.
	return int((end.Unix() - start.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// AverageUnitsPerDay divides consumption by the days in the range, counting
// a single-day or unknown range as one day.
func (b *ParsedBill) AverageUnitsPerDay() decimal.Decimal {
	days := max(b.RangeDays(), 1)
	return b.TotalUnitsConsumed.Div(decimal.NewFromInt(int64(days)))
}

// BillInput is a bill as submitted by a client. Quantities are nullable so
// an absent or null value is not mistaken for zero.
type BillInput struct {
	AccountNumber      string              `json:"accountNumber"`
	BillAmount         decimal.NullDecimal `json:"billAmount"`
	BillDate           string              `json:"billDate"`
	BillDateRangeStart string              `json:"billDateRangeStart"`
	BillDateRangeEnd   string              `json:"billDateRangeEnd"`
	TotalUnitsConsumed decimal.NullDecimal `json:"totalUnitsConsumed"`
	UnitsPerDay        decimal.NullDecimal `json:"unitsPerDay"`
	IsEstimated        bool                `json:"isEstimated"`
	MeterReading       decimal.NullDecimal `json:"meterReading"`
	PDFFilePath        string              `json:"pdfFilePath"`
}

// MissingFields lists the required fields that are absent, in the order the
// bills endpoint reports them.
func (in *BillInput) MissingFields() []string {
	var missing []string
	if in.BillDate == "" {
		missing = append(missing, "billDate")
	}
	if in.BillDateRangeStart == "" {
		missing = append(missing, "billDateRangeStart")
	}
	if in.BillDateRangeEnd == "" {
		missing = append(missing, "billDateRangeEnd")
	}
	if !in.TotalUnitsConsumed.Valid {
		missing = append(missing, "totalUnitsConsumed")
	}
	if in.AccountNumber == "" {
		missing = append(missing, "accountNumber")
	}
	if !in.BillAmount.Valid {
		missing = append(missing, "billAmount")
	}
	return missing
}

// ParsedBill converts the input to a record. An absent daily average is
// derived from consumption and range; an absent meter reading stays zero
// and fails Validate.
func (in *BillInput) ParsedBill() ParsedBill {
	b := ParsedBill{
		AccountNumber:      in.AccountNumber,
		BillAmount:         in.BillAmount.Decimal,
		BillDate:           in.BillDate,
		BillDateRangeStart: in.BillDateRangeStart,
		BillDateRangeEnd:   in.BillDateRangeEnd,
		TotalUnitsConsumed: in.TotalUnitsConsumed.Decimal,
		IsEstimated:        in.IsEstimated,
		MeterReading:       in.MeterReading.Decimal,
	}
	if in.UnitsPerDay.Valid {
		b.UnitsPerDay = in.UnitsPerDay.Decimal
	} else {
		b.UnitsPerDay = b.AverageUnitsPerDay()
	}
	return b
}

// Bill is a ParsedBill as stored, keyed uniquely by account number and range.
type Bill struct {
	ID uuid.UUID `json:"id"`
	ParsedBill
	PDFFilePath string    `json:"pdfFilePath,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BillSummary is the lighter parse used to book a bill as an expense.
type BillSummary struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
}

// Party is a bookkeeping party an expense can be split between.
type Party struct {
	ID                       uuid.UUID `json:"id"`
	Name                     string    `json:"name"`
	ElectricityAccountNumber string    `json:"electricityAccountNumber,omitempty"`
	CreatedAt                time.Time `json:"createdAt"`
}

// Allocation is one party's share of an expense, in percent.
type Allocation struct {
	PartyID    uuid.UUID       `json:"partyId"`
	Percentage decimal.Decimal `json:"percentage"`
}
